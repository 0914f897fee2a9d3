package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reward-ledger/internal/observability"
)

const applicationName = "reward-ledger"

// Pool is the archive's PostgreSQL connection pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to the database in dsn and verifies the connection.
// application_name defaults to "reward-ledger" unless the DSN sets it.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if config.ConnConfig.RuntimeParams["application_name"] == "" {
		config.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	start := time.Now()
	err = pool.Ping(ctx)
	observability.RecordDBQuery("postgres", "ping", time.Since(start), err)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}
