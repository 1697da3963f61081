package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/educapi/account-service/internal/api/handler"
	"github.com/educapi/account-service/internal/core/ports"
	"github.com/educapi/account-service/internal/infrastructure/config"
	"github.com/educapi/account-service/internal/infrastructure/db/memory"
	"github.com/educapi/account-service/internal/infrastructure/db/mongo"
	"github.com/educapi/account-service/internal/infrastructure/db/postgres"
	"github.com/educapi/account-service/internal/infrastructure/db/redis"
	"github.com/educapi/account-service/internal/pkg/secret"
)

// storage bundles the repositories selected by STORAGE_DRIVER with their
// readiness checks and cleanup.
type storage struct {
	accounts ports.AccountRepository
	events   ports.EventRepository
	checks   map[string]handler.Check
	closers  []func(context.Context) error
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	s := &storage{checks: make(map[string]handler.Check)}
	hasher := secret.NewHasher(cfg.Auth.BcryptCost)

	switch cfg.StorageDriver {
	case config.StorageMemory:
		s.accounts = memory.NewAccountRepository()
		s.events = memory.NewEventRepository()

	case config.StorageMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Disconnect)

		repo := mongo.NewAccountRepository(db, hasher)
		if err := repo.EnsureIndexes(ctx); err != nil {
			s.close(log)
			return nil, err
		}
		s.accounts = repo
		s.events = mongo.NewEventRepository(db)
		s.checks["mongodb"] = mongo.Pinger(db)

	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, closeSQL(db))
		s.accounts = postgres.NewAccountRepository(db, hasher)
		s.events = postgres.NewEventRepository(db)
		s.checks["postgres"] = postgres.Pinger(db)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.Redis.Addr != "" {
		client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			s.close(log)
			return nil, err
		}
		s.closers = append(s.closers, closeRedis(client))
		s.accounts = redis.NewAccountCache(s.accounts, client, cfg.Redis.CacheTTL, log.With().Str("component", "cache").Logger())
		s.checks["redis"] = redis.Pinger(client)
	}

	log.Info().Str("driver", cfg.StorageDriver).Msg("storage ready")
	return s, nil
}

// close releases connections in reverse order of opening.
func (s *storage) close(log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("storage close failed")
		}
	}
	s.closers = nil
}

func closeSQL(db *sql.DB) func(context.Context) error {
	return func(context.Context) error { return db.Close() }
}

func closeRedis(client *goredis.Client) func(context.Context) error {
	return func(context.Context) error { return client.Close() }
}
