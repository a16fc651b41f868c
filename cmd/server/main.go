package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/config"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/database"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/fixtures"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/handlers"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/logger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/memstore"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/notify"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/routes"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	seedDemo := flag.Bool("seed-demo", false, "create a demo owner (user 1) when running on the memory store")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.NewWithOptions(os.Stdout, cfg.Log)
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("storage unavailable")
	}
	defer closeRepo()

	svc := ledger.NewService(repo)
	if *seedDemo && cfg.Store == config.StoreMemory {
		owner, err := fixtures.NewOwner(ctx, svc, 1, "USD", "EUR", "PLN")
		if err != nil {
			log.Fatal().Err(err).Msg("seed demo owner")
		}
		log.Info().Int("user_id", owner.UserID).Int("accounts", len(owner.Accounts)).Msg("demo owner created")
	}

	notifier := notify.Multi{notify.LogNotifier{Log: log}, notify.StoreNotifier{Store: repo}}
	loop, err := scheduler.New(repo, notifier, cfg.Scheduler, log)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler configuration")
	}
	if err := loop.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}

	router := routes.SetupRouter(handlers.New(svc, log), cfg.AllowedOrigins, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := loop.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
}

func openRepository(ctx context.Context, cfg *config.Config, log zerolog.Logger) (scheduler.Repository, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return memstore.New(), func() {}, nil
	}

	store, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if applied {
		log.Info().Str("version", database.SchemaVersion).Msg("schema applied")
	}
	return store, store.Close, nil
}
