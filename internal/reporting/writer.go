package reporting

import (
	"fmt"
	"os"
	"path/filepath"
)

// Output file names written by WriteFiles.
const (
	ReportFile       = "REWARDS_REPORT.md"
	ChartFile        = "daily_earnings.csv"
	LeaderboardFile  = "leaderboard.csv"
	TransactionsFile = "transactions.csv"
)

// WriteFiles renders r into dir, creating it if needed, and returns the written paths.
func WriteFiles(dir string, r *Report, conv PriceConverter) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name    string
		content string
	}{
		{ReportFile, RenderMarkdown(r, conv)},
		{ChartFile, RenderChartCSV(r.Chart)},
		{LeaderboardFile, RenderLeaderboardCSV(r.Leaderboard)},
		{TransactionsFile, RenderTransactionsCSV(r.Recent)},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
