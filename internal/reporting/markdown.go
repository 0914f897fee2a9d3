package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reward-ledger/internal/domain"
)

// RenderMarkdown renders report as Markdown string. conv may be nil.
func RenderMarkdown(r *Report, conv PriceConverter) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Reward Ledger Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	actor := "all actors"
	if r.Actor != "" {
		actor = "`" + r.Actor + "`"
	}
	sb.WriteString(fmt.Sprintf("Scope: `%s` | Actor: %s | Transactions: %d\n\n", r.ScopeID, actor, r.TransactionCount))

	// Summary
	sb.WriteString("## Earnings Summary\n\n")
	if conv != nil {
		sb.WriteString("| Window | Earnings | Converted |\n")
		sb.WriteString("|--------|----------|-----------|\n")
	} else {
		sb.WriteString("| Window | Earnings |\n")
		sb.WriteString("|--------|----------|\n")
	}
	for _, row := range []struct{ name, value string }{
		{"Total", r.Summary.Total},
		{"Last 30 days", r.Summary.Monthly},
		{"Last 7 days", r.Summary.Weekly},
	} {
		if conv != nil {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", row.name, row.value, conv(decimal.RequireFromString(row.value))))
		} else {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", row.name, row.value))
		}
	}
	sb.WriteString("\n")

	// Leaderboard
	sb.WriteString("## Leaderboard\n\n")
	if len(r.Leaderboard) > 0 {
		sb.WriteString("| Rank | Actor | Earnings | Transactions |\n")
		sb.WriteString("|------|-------|----------|--------------|\n")
		for _, e := range r.Leaderboard {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d |\n",
				e.Rank, TruncateAddress(e.Actor), e.TotalEarnings.StringFixed(4), e.ContributionCount))
		}
	} else {
		sb.WriteString("No contributors yet.\n")
	}
	sb.WriteString("\n")

	// Chart
	sb.WriteString("## Daily Earnings (30 days)\n\n")
	sb.WriteString("| Date | Earnings |\n")
	sb.WriteString("|------|----------|\n")
	for _, p := range r.Chart {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", p.Date, p.Earnings.StringFixed(4)))
	}
	sb.WriteString("\n")

	// Recent
	sb.WriteString("## Recent Transactions\n\n")
	if len(r.Recent) > 0 {
		sb.WriteString("| Time | Kind | Actor | Amount | Detail |\n")
		sb.WriteString("|------|------|-------|--------|--------|\n")
		for _, tx := range r.Recent {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				tx.OccurredAt.UTC().Format(time.RFC3339), tx.Kind, TruncateAddress(tx.Actor),
				tx.Amount.StringFixed(4), detail(tx)))
		}
	} else {
		sb.WriteString("No transactions.\n")
	}
	sb.WriteString("\n")

	if len(r.Skipped) > 0 {
		sb.WriteString("## Skipped Events\n\n")
		for _, s := range r.Skipped {
			sb.WriteString(fmt.Sprintf("- %s #%d: %s\n", s.Kind, s.Ordinal, s.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func detail(tx domain.Transaction) string {
	switch {
	case tx.DatasetLabel != "":
		return tx.DatasetLabel
	case tx.Tokens != nil:
		return fmt.Sprintf("%d tokens", *tx.Tokens)
	default:
		return ""
	}
}
