// Package main syncs a scope's reward events from the ledger into the
// configured archive in a single pass.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	flag "github.com/spf13/pflag"

	"reward-ledger/internal/config"
	"reward-ledger/internal/ingestion"
	"reward-ledger/internal/logging"
	"reward-ledger/internal/normalization"
	"reward-ledger/internal/observability"
	"reward-ledger/internal/storage/archive"
	"reward-ledger/internal/sui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.BindFlags(flag.CommandLine, cfg)
	dryRun := flag.Bool("dry-run", false, "fetch and normalize without an archive backend")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !*dryRun && cfg.PostgresDSN == "" && cfg.ClickhouseDSN == "" {
		return fmt.Errorf("--postgres-dsn or --clickhouse-dsn is required (use --dry-run to skip archiving)")
	}

	logger, err := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	arch, err := archive.Open(ctx, cfg.PostgresDSN, cfg.ClickhouseDSN)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arch.Close()

	rpc := sui.NewHTTPClient(cfg.RPCEndpoint,
		sui.WithTimeout(cfg.FetchTimeout),
		sui.WithLatencyObserver(observability.RecordRPCLatency),
	)
	defer rpc.Close()

	norm, err := normalization.NewNormalizer(normalization.NewPolicy(cfg.BaseReward, cfg.TokenRate))
	if err != nil {
		return err
	}
	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Source:          ingestion.NewLedgerSource(rpc),
		Normalizer:      norm,
		Archive:         arch.Store,
		ArchiveBackend:  arch.Backend,
		ArchiveRequired: true,
		Limit:           cfg.FetchLimit,
		Logger:          logger,
	})

	start := time.Now()
	res, err := backoff.Retry(ctx, func() (*ingestion.Result, error) {
		runCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
		return mgr.Run(runCtx, cfg.ScopeID, cfg.Actor)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(cfg.RetryAttempts+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Warn("ingest attempt failed, retrying", "error", err, "backoff", d)
		}),
	)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", cfg.ScopeID, err)
	}

	stored, err := arch.Store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count archive: %w", err)
	}

	logger.Info("ingest complete",
		"scopeID", cfg.ScopeID,
		"actor", cfg.Actor,
		"contributions", res.ContributionsFetched,
		"usages", res.UsagesFetched,
		"transactions", len(res.Transactions),
		"skipped", len(res.Skipped),
		"archive", arch.Backend,
		"archived", stored,
		"duration", time.Since(start),
	)
	for _, s := range res.Skipped {
		logger.Warn("skipped event", "kind", s.Kind, "ordinal", s.Ordinal, "reason", s.Err)
	}
	return nil
}
