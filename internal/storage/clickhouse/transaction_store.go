package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/observability"
	"reward-ledger/internal/storage"
)

// TransactionStore implements storage.TransactionStore using ClickHouse.
// ReplacingMergeTree collapses rows sharing an id; reads use FINAL so a
// concurrent double insert is never visible.
type TransactionStore struct {
	conn *Conn
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(conn *Conn) *TransactionStore {
	return &TransactionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const selectColumns = `
	SELECT id, kind, actor, amount, occurred_at, dataset_label, tokens, source_ref
	FROM reward_transactions FINAL
`

// UpsertBulk appends transactions whose id is not stored yet.
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
	defer func() { observability.RecordDBQuery("clickhouse", "upsert_transactions", time.Since(start), err) }()

	existing, err := s.existingIDs(ctx, txs)
	if err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO reward_transactions (
			id, kind, actor, amount, occurred_at, dataset_label, tokens, source_ref
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	pending := 0
	for _, tx := range txs {
		if _, ok := existing[tx.ID]; ok {
			continue
		}
		existing[tx.ID] = struct{}{} // intra-batch duplicates
		err = batch.Append(
			tx.ID, string(tx.Kind), tx.Actor, tx.Amount,
			tx.OccurredAt.UTC(), tx.DatasetLabel, tx.Tokens, tx.SourceRef,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
		pending++
	}

	if pending == 0 {
		return batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByActor retrieves all transactions for an actor, ordered by occurred_at DESC.
func (s *TransactionStore) GetByActor(ctx context.Context, actor string) ([]domain.Transaction, error) {
	query := selectColumns + `
		WHERE actor = ?
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
		WHERE occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at DESC, id ASC
	`
	return s.query(ctx, "get_by_time_range", query, from.UTC(), to.UTC())
}

// Count returns the number of stored transactions.
func (s *TransactionStore) Count(ctx context.Context) (int, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM reward_transactions FINAL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return int(n), nil
}

func (s *TransactionStore) existingIDs(ctx context.Context, txs []domain.Transaction) (map[string]struct{}, error) {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}

	rows, err := s.conn.Query(ctx, `SELECT id FROM reward_transactions FINAL WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("check existing ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{}, len(txs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

func (s *TransactionStore) query(ctx context.Context, op, query string, args ...any) (result []domain.Transaction, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", op, time.Since(start), err) }()

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tx     domain.Transaction
			kind   string
			amount decimal.Decimal
			tokens *uint64
		)
		if err := rows.Scan(&tx.ID, &kind, &tx.Actor, &amount, &tx.OccurredAt, &tx.DatasetLabel, &tokens, &tx.SourceRef); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = domain.Kind(kind)
		tx.Amount = amount
		tx.OccurredAt = tx.OccurredAt.UTC()
		tx.Tokens = tokens
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}
