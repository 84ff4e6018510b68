package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/leadops/leadbase-cli/internal/history"
	"github.com/leadops/leadbase-cli/internal/store"
)

// initStore opens the configured database backend. Commands that need the
// database fail fast when it is unreachable.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadbase.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initHistory opens the store and loads the in-memory history mirror.
// A failed load leaves the cache empty; cleaning still runs, without
// history dedup. The cache logs the degradation itself.
func initHistory(ctx context.Context) (store.Store, *history.Cache, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cache := history.New(st)
	_ = cache.Load(ctx)
	return st, cache, nil
}
