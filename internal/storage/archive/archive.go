// Package archive opens the transaction store selected by configuration and
// prepares its schema.
package archive

import (
	"context"
	"errors"

	"reward-ledger/internal/storage"
	chstore "reward-ledger/internal/storage/clickhouse"
	"reward-ledger/internal/storage/memory"
	"reward-ledger/internal/storage/migrations"
	pgstore "reward-ledger/internal/storage/postgres"
)

// Backend names, also used as metrics labels.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// Archive is an opened transaction store and the backend behind it.
type Archive struct {
	Store   storage.TransactionStore
	Backend string

	close func() error
}

// Open connects to PostgreSQL or ClickHouse, whichever DSN is set, and runs its
// migrations. With neither set it returns an in-memory store.
func Open(ctx context.Context, postgresDSN, clickhouseDSN string) (*Archive, error) {
	switch {
	case postgresDSN != "" && clickhouseDSN != "":
		return nil, errors.New("archive: configure at most one backend")

	case postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Archive{
			Store:   pgstore.NewTransactionStore(pool),
			Backend: BackendPostgres,
			close:   func() error { pool.Close(); return nil },
		}, nil

	case clickhouseDSN != "":
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, err
		}
		return &Archive{
			Store:   chstore.NewTransactionStore(conn),
			Backend: BackendClickhouse,
			close:   conn.Close,
		}, nil

	default:
		return &Archive{
			Store:   memory.NewTransactionStore(),
			Backend: BackendMemory,
		}, nil
	}
}

// Close releases the underlying connection, if any.
func (a *Archive) Close() error {
	if a == nil || a.close == nil {
		return nil
	}
	return a.close()
}
