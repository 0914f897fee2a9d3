package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"reward-ledger/internal/domain"
)

// ChartDays is the fixed length of the daily earnings series.
const ChartDays = 30

const dateLayout = "2006-01-02"

// ChartSeries buckets earnings by UTC calendar day for the ChartDays days
// ending on now's day, oldest first. Days without activity are zero.
// Transactions before the first day or after now are left out.
// Buckets are truncated to DisplayPlaces so the series never sums past the total.
func ChartSeries(txs []domain.Transaction, now time.Time) []domain.ChartPoint {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first := today.AddDate(0, 0, -(ChartDays - 1))

	sums := make([]decimal.Decimal, ChartDays)
	for i := range sums {
		sums[i] = decimal.Zero
	}

	for _, tx := range txs {
		at := tx.OccurredAt.UTC()
		if at.Before(first) || at.After(now) {
			continue
		}
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		idx := daysBetween(first, day)
		sums[idx] = sums[idx].Add(tx.Amount)
	}

	points := make([]domain.ChartPoint, ChartDays)
	for i := range points {
		points[i] = domain.ChartPoint{
			Date:     first.AddDate(0, 0, i).Format(dateLayout),
			Earnings: sums[i].Truncate(DisplayPlaces),
		}
	}
	return points
}

// daysBetween counts whole calendar days from a to b; both must be UTC midnights.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
