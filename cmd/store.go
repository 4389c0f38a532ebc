package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shorttrack/shorttrack/internal/analytics"
	"github.com/shorttrack/shorttrack/internal/calendar"
	"github.com/shorttrack/shorttrack/internal/resilience"
	"github.com/shorttrack/shorttrack/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "shorttrack.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		// The database may still be coming up when we are; retry the
		// initial connection on transient failures.
		retry := resilience.DefaultRetryConfig()
		retry.OnRetry = resilience.RetryLogger("postgres connect")
		ps, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*store.PostgresStore, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns:        int32(cfg.Store.Pool.MaxConns),
				MinConns:        int32(cfg.Store.Pool.MinConns),
				MaxConnLifetime: time.Duration(cfg.Store.Pool.MaxLifetimeMins) * time.Minute,
				MaxConnIdleTime: time.Duration(cfg.Store.Pool.MaxIdleMins) * time.Minute,
			})
		})
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initService(st store.Store) *analytics.Service {
	opts := []analytics.Option{
		analytics.WithDirectQueryCountries(cfg.Analytics.DirectQueryCountries),
	}
	if cfg.Analytics.CacheTTLHours > 0 {
		opts = append(opts, analytics.WithCacheTTL(time.Duration(cfg.Analytics.CacheTTLHours)*time.Hour))
	}
	return analytics.NewService(st, calendar.NewBusiness(), opts...)
}
