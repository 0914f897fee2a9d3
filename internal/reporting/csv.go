package reporting

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"reward-ledger/internal/domain"
)

// RenderChartCSV renders the daily series as CSV string.
func RenderChartCSV(points []domain.ChartPoint) string {
	rows := [][]string{{"date", "earnings"}}
	for _, p := range points {
		rows = append(rows, []string{p.Date, p.Earnings.StringFixed(4)})
	}
	return writeCSV(rows)
}

// RenderLeaderboardCSV renders leaderboard entries as CSV string. Addresses are not truncated.
func RenderLeaderboardCSV(entries []domain.LeaderboardEntry) string {
	rows := [][]string{{"rank", "actor", "total_earnings", "contribution_count"}}
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Rank),
			e.Actor,
			e.TotalEarnings.StringFixed(4),
			strconv.Itoa(e.ContributionCount),
		})
	}
	return writeCSV(rows)
}

// RenderTransactionsCSV renders transactions as CSV string.
func RenderTransactionsCSV(txs []domain.Transaction) string {
	rows := [][]string{{"id", "kind", "actor", "amount", "occurred_at", "dataset_label", "tokens", "source_ref"}}
	for _, tx := range txs {
		tokens := ""
		if tx.Tokens != nil {
			tokens = strconv.FormatUint(*tx.Tokens, 10)
		}
		rows = append(rows, []string{
			tx.ID,
			string(tx.Kind),
			tx.Actor,
			tx.Amount.String(),
			tx.OccurredAt.UTC().Format(time.RFC3339),
			tx.DatasetLabel,
			tokens,
			tx.SourceRef,
		})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Writes to a bytes.Buffer cannot fail.
	_ = w.WriteAll(rows)
	return buf.String()
}
