package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// config is the service configuration: defaults, then the optional YAML file
// named by SIMPLEPAGE_CONFIG, then environment overrides, in that order.
type config struct {
	Port        int               `yaml:"port"`
	Headless    bool              `yaml:"headless"`
	RemoteURL   string            `yaml:"remoteUrl"`
	UserDataDir string            `yaml:"userDataDir"`
	ChromeFlags map[string]string `yaml:"chromeFlags"`
	Screenshot  bool              `yaml:"screenshot"`
	TmpDir      string            `yaml:"tmpDir"`
	LogLevel    string            `yaml:"logLevel"`
	CORSOrigin  string            `yaml:"corsOrigin"`
	DebugAXTree bool              `yaml:"debugAxTree"`
}

func loadConfig() (config, error) {
	// HEADLESS and SCREENSHOT are opt-in: "true" enables, anything else
	// leaves them off.
	cfg := config{
		Port:     3100,
		TmpDir:   os.TempDir(),
		LogLevel: "info",
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.UserDataDir = filepath.Join(home, ".simplepage", "user-data")
	}

	if path := os.Getenv("SIMPLEPAGE_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		cfg.Headless = v == "true"
	}
	if v := os.Getenv("REMOTE_URL"); v != "" {
		cfg.RemoteURL = v
	}
	if v := os.Getenv("USER_DATA_DIR"); v != "" {
		cfg.UserDataDir = v
	}
	if v := os.Getenv("SCREENSHOT"); v != "" {
		cfg.Screenshot = v == "true"
	}
	if v := os.Getenv("TMPDIR"); v != "" {
		cfg.TmpDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.CORSOrigin = v
	}
	if v := os.Getenv("DEBUG_AXTREE"); v != "" {
		cfg.DebugAXTree = v == "true"
	}
	return cfg, nil
}
