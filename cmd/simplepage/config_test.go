package main

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "HEADLESS", "REMOTE_URL", "USER_DATA_DIR", "SCREENSHOT",
		"TMPDIR", "LOG_LEVEL", "CORS_ORIGIN", "DEBUG_AXTREE", "SIMPLEPAGE_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3100 || cfg.LogLevel != "info" {
		t.Errorf("defaults: %+v", cfg)
	}
	// Opt-in toggles stay off until asked for.
	if cfg.Headless {
		t.Error("headless on by default")
	}
	if cfg.Screenshot {
		t.Error("screenshots on by default")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("HEADLESS", "true")
	t.Setenv("SCREENSHOT", "true")
	t.Setenv("REMOTE_URL", "ws://127.0.0.1:9222/devtools")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || !cfg.Headless || !cfg.Screenshot {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.RemoteURL != "ws://127.0.0.1:9222/devtools" {
		t.Errorf("remote url: %q", cfg.RemoteURL)
	}

	t.Setenv("PORT", "nope")
	if _, err := loadConfig(); err == nil {
		t.Error("bad PORT accepted")
	}
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "port: 4000\nheadless: true\nchromeFlags:\n  proxy-server: http://127.0.0.1:8888\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SIMPLEPAGE_CONFIG", path)
	t.Setenv("PORT", "5000")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	// Env wins over the file; the file wins over defaults.
	if cfg.Port != 5000 || !cfg.Headless {
		t.Errorf("layering wrong: %+v", cfg)
	}
	if cfg.ChromeFlags["proxy-server"] != "http://127.0.0.1:8888" {
		t.Errorf("chrome flags not parsed: %v", cfg.ChromeFlags)
	}
}
