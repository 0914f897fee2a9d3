package reporting

import (
	"slices"
	"time"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/metrics"
	"reward-ledger/internal/normalization"
)

// DefaultRecentLimit is the number of transactions listed in a report.
const DefaultRecentLimit = 20

// Report is a rendered view of one scope's reward analytics.
type Report struct {
	// Metadata
	GeneratedAt      time.Time `json:"generatedAt"`
	ScopeID          string    `json:"scopeId"`
	Actor            string    `json:"actor,omitempty"` // empty means all actors
	TransactionCount int       `json:"transactionCount"`

	// Actor view
	Summary domain.EarningsSummary `json:"summary"`
	Chart   []domain.ChartPoint    `json:"chart"`
	Recent  []domain.Transaction   `json:"recent"`

	// Scope-wide ranking, independent of Actor
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`

	// Data quality
	Skipped []SkippedRow `json:"skipped,omitempty"`
}

// SkippedRow describes one malformed event left out of the report.
type SkippedRow struct {
	Kind    domain.Kind `json:"kind"`
	Ordinal int         `json:"ordinal"`
	Reason  string      `json:"reason"`
}

// Build assembles a report from the full scope transaction set. Input that is
// not ordered by OccurredAt DESC is sorted on a copy first. Summary, chart and
// recent rows cover actor only; the leaderboard always covers every actor.
func Build(scopeID, actor string, txs []domain.Transaction, skipped []normalization.SkippedEvent, now time.Time, leaderboardLimit, recent int) *Report {
	if leaderboardLimit <= 0 {
		leaderboardLimit = metrics.DefaultLeaderboardLimit
	}
	if recent <= 0 {
		recent = DefaultRecentLimit
	}

	if normalization.ValidateOrdering(txs) != nil {
		txs = slices.Clone(txs)
		normalization.SortTransactions(txs)
	}

	own := metrics.ForActor(txs, actor)

	r := &Report{
		GeneratedAt:      now.UTC(),
		ScopeID:          scopeID,
		Actor:            actor,
		TransactionCount: len(own),
		Summary:          metrics.Summarize(own, now),
		Chart:            metrics.ChartSeries(own, now),
		Recent:           own[:min(recent, len(own))],
		Leaderboard:      metrics.Leaderboard(txs, leaderboardLimit),
	}

	for _, s := range skipped {
		r.Skipped = append(r.Skipped, SkippedRow{
			Kind:    s.Kind,
			Ordinal: s.Ordinal,
			Reason:  s.Err.Error(),
		})
	}
	return r
}
