package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dreamboard/internal/bootstrap"
	"dreamboard/internal/infra"
)

func main() {
	// .env is optional outside development.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.New(ctx, cfg, logger, "api")
	if err != nil {
		logger.Fatal().Err(err).Msg("api: bootstrap failed")
	}
	defer container.Close()

	if id, ok := container.SeedSandbox(); ok {
		logger.Info().Str("dream_board_id", id).Msg("api: sandbox board ready")
	}

	server := infra.NewHTTPServer(cfg, container.Handler())
	logger.Info().Str("addr", server.Addr()).Bool("sandbox", cfg.SandboxMode).Msg("api: listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("api: server stopped with error")
		return
	}
	logger.Info().Msg("api: stopped")
}
