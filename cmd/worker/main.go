package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"brandkit/internal/bootstrap"
	"brandkit/internal/infra"
	"brandkit/internal/worker"
)

func main() {
	infra.LoadEnvFiles()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: bootstrap failed")
	}
	defer deps.Close()

	w := worker.New(deps.Jobs, deps.Service, worker.Options{
		Concurrency:  cfg.WorkerConcurrency,
		IdleInterval: cfg.WorkerIdleInterval,
		StaleAfter:   2 * cfg.PredictionTimeout,
	}, logger)

	if err := w.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	logger.Info().Msg("worker: stopped")
}
