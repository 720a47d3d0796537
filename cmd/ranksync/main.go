// Package main содержит точку входа воркера синхронизации рангов.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/rankshop/internal/app/ranksync"
	"github.com/magabrotheeeer/rankshop/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting ranksync worker", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := ranksync.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize ranksync worker", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("ranksync worker stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("ranksync worker stopped gracefully")
}
