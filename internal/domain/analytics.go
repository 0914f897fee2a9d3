package domain

import "github.com/shopspring/decimal"

// EarningsSummary holds windowed earnings sums formatted to 4 decimal places.
type EarningsSummary struct {
	Total   string `json:"total"`
	Monthly string `json:"monthly"` // last 30 days
	Weekly  string `json:"weekly"`  // last 7 days
}

// ChartPoint is one UTC calendar day of the 30-day earnings series.
type ChartPoint struct {
	Date     string          `json:"date"` // YYYY-MM-DD
	Earnings decimal.Decimal `json:"earnings"`
}

// LeaderboardEntry is one ranked actor on the contributor leaderboard.
type LeaderboardEntry struct {
	Actor             string          `json:"actor"`
	TotalEarnings     decimal.Decimal `json:"totalEarnings"`
	ContributionCount int             `json:"contributionCount"`
	Rank              int             `json:"rank"` // 1-based
}
