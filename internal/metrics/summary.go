package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"reward-ledger/internal/domain"
)

// Window lengths used for rollups.
const (
	WeekWindow  = 7 * 24 * time.Hour
	MonthWindow = 30 * 24 * time.Hour

	// DisplayPlaces is the fixed precision of formatted amounts.
	DisplayPlaces = 4
)

// Summarize computes total, monthly and weekly earnings relative to now.
// A transaction is inside a window when OccurredAt >= now - window.
func Summarize(txs []domain.Transaction, now time.Time) domain.EarningsSummary {
	weekStart := now.Add(-WeekWindow)
	monthStart := now.Add(-MonthWindow)

	total, monthly, weekly := decimal.Zero, decimal.Zero, decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
		if !tx.OccurredAt.Before(monthStart) {
			monthly = monthly.Add(tx.Amount)
		}
		if !tx.OccurredAt.Before(weekStart) {
			weekly = weekly.Add(tx.Amount)
		}
	}

	return domain.EarningsSummary{
		Total:   FormatAmount(total),
		Monthly: FormatAmount(monthly),
		Weekly:  FormatAmount(weekly),
	}
}

// FormatAmount renders an amount with DisplayPlaces decimals. Negative values
// clamp to zero.
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d.StringFixed(DisplayPlaces)
}
