package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"reward-ledger/internal/domain"
)

// Leaderboard ranks actors by total earnings, descending, and keeps at most limit entries.
// Every transaction counts toward ContributionCount regardless of kind.
// Actors with equal totals keep their first-seen order in txs.
func Leaderboard(txs []domain.Transaction, limit int) []domain.LeaderboardEntry {
	if limit <= 0 {
		return []domain.LeaderboardEntry{}
	}

	index := make(map[string]int)
	var entries []domain.LeaderboardEntry
	for _, tx := range txs {
		i, ok := index[tx.Actor]
		if !ok {
			i = len(entries)
			index[tx.Actor] = i
			entries = append(entries, domain.LeaderboardEntry{
				Actor:         tx.Actor,
				TotalEarnings: decimal.Zero,
			})
		}
		entries[i].TotalEarnings = entries[i].TotalEarnings.Add(tx.Amount)
		entries[i].ContributionCount++
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalEarnings.GreaterThan(entries[j].TotalEarnings)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if entries == nil {
		return []domain.LeaderboardEntry{}
	}
	return entries
}

// ForActor returns the transactions belonging to actor, preserving order.
// An empty actor returns txs unchanged.
func ForActor(txs []domain.Transaction, actor string) []domain.Transaction {
	if actor == "" {
		return txs
	}
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Actor == actor {
			out = append(out, tx)
		}
	}
	return out
}
