package metrics

import (
	"time"

	"github.com/jonboulle/clockwork"

	"reward-ledger/internal/domain"
)

// DefaultLeaderboardLimit matches the size of the public leaderboard.
const DefaultLeaderboardLimit = 10

// Snapshot bundles every analytic derived from one transaction set.
type Snapshot struct {
	Summary          domain.EarningsSummary    `json:"summary"`
	Chart            []domain.ChartPoint       `json:"chart"`
	Leaderboard      []domain.LeaderboardEntry `json:"leaderboard"`
	TransactionCount int                       `json:"transactionCount"`
	ComputedAt       time.Time                 `json:"computedAt"`
}

// Aggregator computes snapshots using an injected clock for "now".
type Aggregator struct {
	clock            clockwork.Clock
	leaderboardLimit int
}

// NewAggregator creates a new aggregator. A nil clock uses the real clock and
// a non-positive limit uses DefaultLeaderboardLimit.
func NewAggregator(clock clockwork.Clock, leaderboardLimit int) *Aggregator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if leaderboardLimit <= 0 {
		leaderboardLimit = DefaultLeaderboardLimit
	}
	return &Aggregator{
		clock:            clock,
		leaderboardLimit: leaderboardLimit,
	}
}

// Compute derives a snapshot from txs. The input is not modified.
func (a *Aggregator) Compute(txs []domain.Transaction) *Snapshot {
	now := a.clock.Now()
	return &Snapshot{
		Summary:          Summarize(txs, now),
		Chart:            ChartSeries(txs, now),
		Leaderboard:      Leaderboard(txs, a.leaderboardLimit),
		TransactionCount: len(txs),
		ComputedAt:       now.UTC(),
	}
}
