package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/programme-lv/contest-client/conf"
	"github.com/programme-lv/contest-client/logger"
	"github.com/programme-lv/contest-client/mockbackend"
)

func main() {
	defaultPath, err := conf.DefaultPath()
	if err != nil {
		slog.Error("failed to locate config", "error", err)
		os.Exit(1)
	}
	configPath := flag.String("config", defaultPath, "config file")
	flag.Parse()

	cfg, err := conf.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if cfg.Mock.JWTKey == "" {
		slog.Error("JWT_KEY is not set")
		os.Exit(1)
	}

	store, err := mockbackend.LoadSeed(cfg.Mock.SeedFile)
	if err != nil {
		slog.Error("failed to load seed", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.Log.Level))
	srv, err := mockbackend.NewServer(store, mockbackend.Options{
		JWTKey:          []byte(cfg.Mock.JWTKey),
		StageDelay:      cfg.Mock.StageDelay.Duration,
		RateLimit:       cfg.Mock.RateLimit,
		RateLimitWindow: cfg.Mock.RateLimitWindow.Duration,
		LogLevel:        level,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	err = srv.Start(cfg.Mock.Addr)
	slog.Error("server stopped", "error", err)
}
