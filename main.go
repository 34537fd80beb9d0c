package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/map-align-go/app"
	"github.com/soocke/map-align-go/assets"
	"github.com/soocke/map-align-go/config"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Defaults are still usable; report and keep going.
		NewLogger(slog.LevelInfo).Warn("config load failed, using defaults", "path", *configPath, "err", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if path, err := assets.EnsureReferenceMap(ctx, cfg.MapURL, cfg.AssetName, logger); err != nil {
		if errors.Is(err, assets.ErrNoURL) {
			logger.Info("no reference map configured, matcher downstream must supply one")
		} else {
			logger.Error("reference map unavailable", "err", err)
			os.Exit(1)
		}
	} else {
		logger.Info("reference map ready", "path", path)
	}

	application, err := app.NewApp(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	application.Start()
	logger.Info("running", "captureIntervalMs", cfg.CaptureIntervalMs)

	<-ctx.Done()
	logger.Info("shutting down")
	application.Stop()
}
