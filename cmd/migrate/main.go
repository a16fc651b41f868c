package main

import (
	"context"
	"os"
	"time"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/config"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/database"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.NewWithOptions(os.Stdout, cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer store.Close()

	applied, err := store.Migrate(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if applied {
		log.Info().Str("version", database.SchemaVersion).Msg("schema applied")
		return
	}
	log.Info().Str("version", database.SchemaVersion).Msg("schema already up to date")
}
