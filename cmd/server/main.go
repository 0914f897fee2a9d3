// Package main runs the live reward service: it keeps one scope's transaction
// set current and serves summaries, charts and the leaderboard over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"reward-ledger/internal/config"
	"reward-ledger/internal/domain"
	"reward-ledger/internal/ingestion"
	"reward-ledger/internal/logging"
	"reward-ledger/internal/metrics"
	"reward-ledger/internal/normalization"
	"reward-ledger/internal/observability"
	"reward-ledger/internal/refresh"
	"reward-ledger/internal/reporting"
	"reward-ledger/internal/server"
	"reward-ledger/internal/storage/archive"
	"reward-ledger/internal/sui"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.BindFlags(flag.CommandLine, cfg)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		return err
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
		Source:         ingestion.NewLedgerSource(rpc),
		Normalizer:     norm,
		Archive:        arch.Store,
		ArchiveBackend: arch.Backend,
		Limit:          cfg.FetchLimit,
		Logger:         logger,
	})

	sched, err := refresh.NewScheduler(refresh.Options{
		Cycle:         mgr,
		Logger:        logger,
		FetchTimeout:  cfg.FetchTimeout,
		RetryAttempts: cfg.RetryAttempts,
	})
	if err != nil {
		return err
	}

	trigger, closeWS, err := ledgerTrigger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWS()

	agg := metrics.NewAggregator(nil, cfg.LeaderboardLimit)

	// The subscription covers every actor so the leaderboard stays scope-wide;
	// per-actor views are filtered at read time.
	handle, err := sched.Start(ctx, refresh.Subscription{
		ScopeID:  cfg.ScopeID,
		Interval: cfg.RefreshInterval,
		Trigger:  trigger,
		OnUpdate: func(txs []domain.Transaction) {
			logUpdate(logger, agg.Compute(txs))
		},
		OnError: func(err error) {
			logger.Warn("refresh failed, serving previous set", "error", err)
		},
	})
	if err != nil {
		return err
	}

	var httpSrv *http.Server
	if cfg.MetricsAddr != "" {
		srv := server.New(handle, server.Options{
			ScopeID:          cfg.ScopeID,
			Actor:            cfg.Actor,
			LeaderboardLimit: cfg.LeaderboardLimit,
			Logger:           logger,
		})
		httpSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server listening", "addr", cfg.MetricsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "error", err)
				stop()
			}
		}()
	}

	logger.Info("reward service started",
		"scopeID", cfg.ScopeID,
		"actor", cfg.Actor,
		"interval", cfg.RefreshInterval,
		"archive", arch.Backend,
		"push", trigger != nil,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	handle.Cancel()
	<-handle.Done()

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// ledgerTrigger subscribes to the scope's reward events when a websocket
// endpoint is configured. Without one it returns a nil channel and polling alone
// drives refreshes.
func ledgerTrigger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (<-chan struct{}, func(), error) {
	if cfg.WSEndpoint == "" {
		return nil, func() {}, nil
	}

	wsCfg := sui.DefaultWSConfig()
	wsCfg.Logger = logger
	ws, err := sui.NewWSClient(ctx, cfg.WSEndpoint, &wsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect websocket: %w", err)
	}

	trigger, err := refresh.LedgerTrigger(ctx, ws, logger,
		sui.EventFilter{MoveEventType: sui.EventTypeTag(cfg.ScopeID, ingestion.EventModule, ingestion.ContributedEvent)},
		sui.EventFilter{MoveEventType: sui.EventTypeTag(cfg.ScopeID, ingestion.EventModule, ingestion.UsageRecordedEvent)},
	)
	if err != nil {
		ws.Close()
		return nil, nil, err
	}
	return trigger, func() { ws.Close() }, nil
}

func logUpdate(logger *slog.Logger, snap *metrics.Snapshot) {
	logger.Info("rewards updated",
		"transactions", snap.TransactionCount,
		"total", snap.Summary.Total,
		"monthly", snap.Summary.Monthly,
		"weekly", snap.Summary.Weekly,
	)
	for _, e := range snap.Leaderboard[:min(3, len(snap.Leaderboard))] {
		logger.Debug("leaderboard",
			"rank", e.Rank,
			"actor", reporting.TruncateAddress(e.Actor),
			"earnings", metrics.FormatAmount(e.TotalEarnings),
			"transactions", e.ContributionCount,
		)
	}
}
