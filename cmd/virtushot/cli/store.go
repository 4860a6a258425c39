package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/handler"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
	"github.com/virtushot/photoshoot-api/internal/infrastructure/db/memory"
	"github.com/virtushot/photoshoot-api/internal/infrastructure/db/mongo"
	"github.com/virtushot/photoshoot-api/internal/pkg/config"
)

// store is the account and usage persistence selected by STORE_DRIVER.
type store struct {
	accounts ports.AccountRepository
	usage    ports.UsageRepository
	checks   map[string]handler.PingFunc
	close    func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory store; accounts and credits are lost on restart")
		return &store{
			accounts: memory.NewAccountRepository(),
			usage:    memory.NewUsageRepository(),
			checks:   map[string]handler.PingFunc{},
			close:    func(context.Context) error { return nil },
		}, nil
	}

	db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	return &store{
		accounts: db.Accounts,
		usage:    db.Usage,
		checks:   map[string]handler.PingFunc{"mongodb": db.Ping},
		close:    db.Close,
	}, nil
}
