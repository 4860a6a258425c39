package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/virtushot/photoshoot-api/internal/api"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
	"github.com/virtushot/photoshoot-api/internal/core/service"
	redisstore "github.com/virtushot/photoshoot-api/internal/infrastructure/db/redis"
	"github.com/virtushot/photoshoot-api/internal/infrastructure/gemini"
	"github.com/virtushot/photoshoot-api/internal/infrastructure/queue"
	"github.com/virtushot/photoshoot-api/internal/pkg/config"
	"github.com/virtushot/photoshoot-api/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
		Version: appVersion,
	})

	model, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	})
	if err != nil {
		log.Error().Err(err).Str("operator_action", "set GEMINI_API_KEY").Msg("image model unavailable")
		return err
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("store unavailable")
		return err
	}

	var guard ports.IdempotencyGuard
	closeRedis := func() error { return nil }
	if cfg.Redis.Enabled {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error().Err(err).Msg("redis unavailable")
			_ = st.close(ctx)
			return err
		}
		guard = redisstore.NewIdempotencyGuard(rdb, 0)
		st.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		closeRedis = rdb.Close
	} else {
		log.Warn().Msg("redis disabled; Idempotency-Key headers are ignored")
	}

	// --- Core services ---
	ledger := service.NewLedgerService(st.accounts, log)
	auth := service.NewAuthService(st.accounts, service.AuthConfig{
		JWTSecret:          cfg.JWTSecret,
		TokenTTL:           cfg.TokenTTL,
		SignupBonus:        cfg.Credits.SignupBonus,
		DefaultCreditLimit: cfg.Credits.DefaultLimit,
	}, log)

	dispatcher := queue.NewDispatcher(cfg.Generation.UsageWorkers, service.NewUsageService(st.usage, log), log)
	dispatcher.Start(ctx)

	generation := service.NewGenerationService(
		ledger,
		service.NewGateway(model, cfg.Generation.Timeout, log),
		dispatcher,
		guard,
		service.GenerationConfig{
			MaxVariations: cfg.Generation.MaxVariations,
			MaxAttempts:   cfg.Generation.MaxAttempts,
			RetryDelay:    cfg.Generation.RetryDelay,
			Parallelism:   cfg.Generation.Parallelism,
		},
		log,
	)

	go queue.NewSweeper(ledger, cfg.Credits.ReservationTTL, log).Run(ctx)

	e := api.NewRouter(api.Deps{
		Auth:              auth,
		Generation:        generation,
		Accounts:          service.NewAccountService(st.accounts, st.usage, ledger, cfg.Credits.SelfPurchaseEnabled, log),
		Admin:             service.NewAdminService(st.accounts, st.usage, ledger, cfg.Credits.DefaultLimit, log),
		Checks:            st.checks,
		Logger:            log,
		BodyLimit:         cfg.BodyLimit,
		GenerateRateLimit: cfg.RateLimit.Generate,
		AuthRateLimit:     cfg.RateLimit.Auth,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("http server failed")
	}

	shutdown(e.Shutdown, dispatcher, st, closeRedis, log)
	return serveErr
}

// shutdown stops accepting requests first so in-flight generations can still
// settle and enqueue usage before the queue drains.
func shutdown(stopHTTP func(context.Context) error, dispatcher *queue.Dispatcher, st *store, closeRedis func() error, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := stopHTTP(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("usage queue did not drain")
	}
	if err := closeRedis(); err != nil {
		log.Error().Err(err).Msg("redis close")
	}
	if err := st.close(ctx); err != nil {
		log.Error().Err(err).Msg("store close")
	}
	log.Info().Msg("shutdown complete")
}
