package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"dreamboard/internal/infra"
	"dreamboard/internal/migrations"
)

func main() {
	_ = godotenv.Load()

	list := flag.Bool("list", false, "print embedded migrations and exit")
	flag.Parse()

	logger := infra.NewLogger(os.Getenv("APP_ENV"), "migrate")

	if *list {
		names, err := migrations.Names()
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate: read embedded files")
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal().Msg("migrate: DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: open database")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate: ping database")
	}

	applied, err := migrations.Apply(ctx, db, logger)
	if err != nil {
		logger.Fatal().Err(err).Int("applied", applied).Msg("migrate: failed")
	}
	logger.Info().Int("applied", applied).Msg("migrate: done")
}
