// Command simplepage is the headless-browser control plane: a REST +
// WebSocket service that owns a pool of browser pages, extracts accessibility
// views, executes interactions and records every step for replay.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/simplepage/api"
	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/session"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "simplepage:", err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("simplepage: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config) error {
	br := browser.NewManager(browser.Config{
		RemoteURL:   cfg.RemoteURL,
		UserDataDir: cfg.UserDataDir,
		Headless:    cfg.Headless,
		ExtraFlags:  cfg.ChromeFlags,
		Logger:      logger,
	})
	if err := br.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer br.Close()

	mgr := session.NewManager(br, session.Config{
		Base:        cfg.TmpDir,
		Screenshots: cfg.Screenshot,
		DebugAXTree: cfg.DebugAXTree,
		Logger:      logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := api.NewServer(mgr, api.Config{
		CORSOrigin: cfg.CORSOrigin,
		SelfURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Port),
		Logger:     logger,
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("simplepage: listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Warn("simplepage: shutdown", "error", err)
	}
	logger.Info("simplepage: stopped")
	return nil
}
