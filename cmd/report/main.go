// Package main fetches a scope's reward history once and renders the report
// to stdout and, optionally, to Markdown and CSV files.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	flag "github.com/spf13/pflag"

	"reward-ledger/internal/config"
	"reward-ledger/internal/fixtures"
	"reward-ledger/internal/ingestion"
	"reward-ledger/internal/logging"
	"reward-ledger/internal/normalization"
	"reward-ledger/internal/observability"
	"reward-ledger/internal/reporting"
	"reward-ledger/internal/storage/archive"
	"reward-ledger/internal/sui"
	"reward-ledger/internal/sui/stub"
)

// fixtureTime pins fixture reports so their output is reproducible.
var fixtureTime = time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.BindFlags(flag.CommandLine, cfg)
	useFixtures := flag.Bool("use-fixtures", false, "report on built-in demo events instead of the ledger")
	format := flag.String("format", "md", "stdout format: md or json")
	outputDir := flag.String("output-dir", "", "also write REWARDS_REPORT.md and CSVs to this directory")
	priceRate := flag.String("price-rate", "", "convert rewards at this fixed rate (optional)")
	priceSymbol := flag.String("price-symbol", "USD", "symbol for converted amounts")
	recent := flag.Int("recent", reporting.DefaultRecentLimit, "number of recent transactions listed")
	flag.Parse()

	if *useFixtures && cfg.ScopeID == "" {
		cfg.ScopeID = fixtures.ScopeID
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *format != "md" && *format != "json" {
		return fmt.Errorf("unknown format %q", *format)
	}
	var conv reporting.PriceConverter
	if *priceRate != "" {
		rate, err := decimal.NewFromString(*priceRate)
		if err != nil {
			return fmt.Errorf("price rate: %w", err)
		}
		conv = reporting.FixedRate(rate, *priceSymbol)
	}

	// Logs go to stderr so stdout carries only the report.
	logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()

	var (
		rpc   sui.RPCClient
		clock = clockwork.NewRealClock()
	)
	if *useFixtures {
		fake := stub.NewRPCClient()
		fixtures.LoadLedger(fake, fixtureTime)
		rpc = fake
		clock = clockwork.NewFakeClockAt(fixtureTime)
	} else {
		client := sui.NewHTTPClient(cfg.RPCEndpoint,
			sui.WithTimeout(cfg.FetchTimeout),
			sui.WithLatencyObserver(observability.RecordRPCLatency),
		)
		defer client.Close()
		rpc = client
	}

	arch, err := archive.Open(ctx, cfg.PostgresDSN, cfg.ClickhouseDSN)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arch.Close()

	norm, err := normalization.NewNormalizer(normalization.NewPolicy(cfg.BaseReward, cfg.TokenRate))
	if err != nil {
		return err
	}
	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Source:         ingestion.NewLedgerSource(rpc),
		Normalizer:     norm,
		Archive:        arch.Store,
		ArchiveBackend: arch.Backend,
		Limit:          cfg.FetchLimit,
		Logger:         logger,
	})

	// Fetch every actor so the leaderboard covers the whole scope.
	res, err := mgr.Run(ctx, cfg.ScopeID, "")
	if err != nil {
		return err
	}

	rep := reporting.Build(cfg.ScopeID, cfg.Actor, res.Transactions, res.Skipped, clock.Now(), cfg.LeaderboardLimit, *recent)

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	default:
		fmt.Print(reporting.RenderMarkdown(rep, conv))
	}

	if *outputDir != "" {
		paths, err := reporting.WriteFiles(*outputDir, rep, conv)
		if err != nil {
			return err
		}
		for _, p := range paths {
			logger.Info("wrote report file", "path", p)
		}
	}
	return nil
}
