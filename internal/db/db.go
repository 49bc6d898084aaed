package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// ApplicationName tags the service's connections in the server's session views.
	ApplicationName = "socialconnect"

	// Change feeds each hold a connection while listening, so a few stay open.
	minConns          = 2
	healthCheckPeriod = 30 * time.Second
)

// Pool is the part of the pgx pool the document store needs.
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

// Connect opens a pool for databaseURL and waits for the database to answer,
// backing off between attempts while it starts up.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	var pingErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err := Backoff(ctx, attempt); err != nil {
			pool.Close()
			return nil, err
		}
		if pingErr = pool.Ping(ctx); pingErr == nil {
			return pool, nil
		}
	}
	pool.Close()
	return nil, fmt.Errorf("ping database: %w", pingErr)
}

func poolConfig(databaseURL string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if cfg.ConnConfig.RuntimeParams["application_name"] == "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	cfg.MinConns = max(cfg.MinConns, minConns)
	if cfg.MaxConns < cfg.MinConns {
		cfg.MaxConns = cfg.MinConns
	}
	cfg.HealthCheckPeriod = healthCheckPeriod
	return cfg, nil
}
