package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/loader"
)

func initStore(ctx context.Context) (loader.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "extractor.db"
		}
		return loader.NewSQLite(dsn)
	case "postgres":
		return loader.NewPostgres(ctx, cfg.Store.DatabaseURL, &loader.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
