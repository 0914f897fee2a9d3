package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/observability"
	"reward-ledger/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const selectColumns = `
	SELECT id, kind, actor, amount::text, occurred_at, dataset_label, tokens::text, source_ref
	FROM reward_transactions
`

// UpsertBulk inserts transactions in one batch. Existing IDs are left untouched.
func (s *TransactionStore) UpsertBulk(ctx context.Context, txs []domain.Transaction) (err error) {
	if len(txs) == 0 {
		return nil
	}
	for _, tx := range txs {
		if err := storage.ValidateTransaction(tx); err != nil {
			return err
		}
	}

	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "upsert_transactions", time.Since(start), err) }()

	query := `
		INSERT INTO reward_transactions (
			id, kind, actor, amount, occurred_at, dataset_label, tokens, source_ref
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7::numeric, $8)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, tx := range txs {
		var tokens *string
		if tx.Tokens != nil {
			v := strconv.FormatUint(*tx.Tokens, 10)
			tokens = &v
		}
		batch.Queue(query,
			tx.ID,
			string(tx.Kind),
			tx.Actor,
			tx.Amount.String(),
			tx.OccurredAt.UTC(),
			tx.DatasetLabel,
			tokens,
			tx.SourceRef,
		)
	}

	// A batch sent outside a transaction runs as one implicit transaction.
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert transactions: %w", err)
	}
	return nil
}

// GetByActor retrieves all transactions for an actor, ordered by occurred_at DESC.
func (s *TransactionStore) GetByActor(ctx context.Context, actor string) ([]domain.Transaction, error) {
	query := selectColumns + `
		WHERE actor = $1
		ORDER BY occurred_at DESC, id ASC
	`
	return s.query(ctx, "get_by_actor", query, actor)
}

// GetByTimeRange retrieves transactions within [from, to] (inclusive), ordered by occurred_at DESC.
func (s *TransactionStore) GetByTimeRange(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	if to.Before(from) {
		return nil, storage.ErrInvalidInput
	}
	query := selectColumns + `
		WHERE occurred_at >= $1 AND occurred_at <= $2
		ORDER BY occurred_at DESC, id ASC
	`
	return s.query(ctx, "get_by_time_range", query, from.UTC(), to.UTC())
}

// Count returns the number of stored transactions.
func (s *TransactionStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM reward_transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (s *TransactionStore) query(ctx context.Context, op, query string, args ...any) (result []domain.Transaction, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", op, time.Since(start), err) }()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		tx     domain.Transaction
		kind   string
		amount string
		tokens *string
	)
	if err := row.Scan(&tx.ID, &kind, &tx.Actor, &amount, &tx.OccurredAt, &tx.DatasetLabel, &tokens, &tx.SourceRef); err != nil {
		return tx, fmt.Errorf("scan transaction: %w", err)
	}

	tx.Kind = domain.Kind(kind)
	tx.OccurredAt = tx.OccurredAt.UTC()

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return tx, fmt.Errorf("parse amount of %s: %w", tx.ID, err)
	}
	if tokens != nil {
		v, err := strconv.ParseUint(*tokens, 10, 64)
		if err != nil {
			return tx, fmt.Errorf("parse tokens of %s: %w", tx.ID, err)
		}
		tx.Tokens = &v
	}
	return tx, nil
}
