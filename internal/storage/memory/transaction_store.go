package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]domain.Transaction // keyed by transaction ID
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]domain.Transaction),
	}
}

// UpsertBulk stores transactions whose ID is not yet present.
// The batch is validated before anything is written.
func (s *TransactionStore) UpsertBulk(_ context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	for _, tx := range txs {
		if err := storage.ValidateTransaction(tx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		if _, exists := s.data[tx.ID]; exists {
			continue
		}
		s.data[tx.ID] = clone(tx)
	}
	return nil
}

// GetByActor retrieves all transactions for an actor, ordered by occurred_at DESC.
func (s *TransactionStore) GetByActor(_ context.Context, actor string) ([]domain.Transaction, error) {
	return s.filter(func(tx domain.Transaction) bool {
		return tx.Actor == actor
	}), nil
}

// GetByTimeRange retrieves transactions within [from, to] (inclusive), ordered by occurred_at DESC.
func (s *TransactionStore) GetByTimeRange(_ context.Context, from, to time.Time) ([]domain.Transaction, error) {
	if to.Before(from) {
		return nil, storage.ErrInvalidInput
	}
	return s.filter(func(tx domain.Transaction) bool {
		return !tx.OccurredAt.Before(from) && !tx.OccurredAt.After(to)
	}), nil
}

// Count returns the number of stored transactions.
func (s *TransactionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

func (s *TransactionStore) filter(keep func(domain.Transaction) bool) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, tx := range s.data {
		if keep(tx) {
			result = append(result, clone(tx))
		}
	}

	// Sort by occurred_at DESC, then id for a stable order
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.After(result[j].OccurredAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// clone copies tx so callers never share the Tokens pointer with the store.
func clone(tx domain.Transaction) domain.Transaction {
	if tx.Tokens != nil {
		tokens := *tx.Tokens
		tx.Tokens = &tokens
	}
	return tx
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
