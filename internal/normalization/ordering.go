package normalization

import (
	"sort"

	"reward-ledger/internal/domain"
)

// SortTransactions orders transactions by OccurredAt DESC.
// The sort is stable: equal timestamps keep their input order.
func SortTransactions(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].OccurredAt.After(txs[j].OccurredAt)
	})
}

// ValidateOrdering checks that transactions are ordered by OccurredAt DESC.
// Returns ErrInvalidOrdering if not.
func ValidateOrdering(txs []domain.Transaction) error {
	for i := 1; i < len(txs); i++ {
		if txs[i].OccurredAt.After(txs[i-1].OccurredAt) {
			return ErrInvalidOrdering
		}
	}
	return nil
}
