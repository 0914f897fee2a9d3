package storage

import (
	"context"
	"fmt"
	"time"

	"reward-ledger/internal/domain"
)

// TransactionStore is an append-only archive of normalized transactions.
// Rows are keyed by transaction ID and never updated once written.
type TransactionStore interface {
	// UpsertBulk writes transactions whose ID is not yet stored.
	// Existing IDs are ignored, so replaying a batch is a no-op.
	UpsertBulk(ctx context.Context, txs []domain.Transaction) error

	// GetByActor retrieves all transactions for an actor, ordered by occurred_at DESC.
	GetByActor(ctx context.Context, actor string) ([]domain.Transaction, error)

	// GetByTimeRange retrieves transactions within [from, to] (inclusive), ordered by occurred_at DESC.
	GetByTimeRange(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)

	// Count returns the number of stored transactions.
	Count(ctx context.Context) (int, error)
}

// ValidateTransaction checks the fields every backend requires.
func ValidateTransaction(tx domain.Transaction) error {
	switch {
	case tx.ID == "":
		return fmt.Errorf("%w: empty transaction id", ErrInvalidInput)
	case !tx.Kind.IsValid():
		return fmt.Errorf("%w: transaction %s has kind %q", ErrInvalidInput, tx.ID, tx.Kind)
	case tx.Actor == "":
		return fmt.Errorf("%w: transaction %s has no actor", ErrInvalidInput, tx.ID)
	case tx.Amount.IsNegative():
		return fmt.Errorf("%w: transaction %s has negative amount", ErrInvalidInput, tx.ID)
	}
	return nil
}
