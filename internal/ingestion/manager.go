package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/normalization"
	"reward-ledger/internal/observability"
	"reward-ledger/internal/storage"
)

// DefaultFetchLimit is the number of events requested per kind.
const DefaultFetchLimit = 100

// Result is the outcome of one fetch and normalize pass.
type Result struct {
	Transactions         []domain.Transaction // OccurredAt DESC
	Skipped              []normalization.SkippedEvent
	ContributionsFetched int
	UsagesFetched        int
}

// Manager runs one fetch, normalize and archive pass over an EventSource.
type Manager struct {
	source          EventSource
	normalizer      *normalization.Normalizer
	archive         storage.TransactionStore
	archiveBackend  string
	archiveRequired bool
	limit           int
	logger          *slog.Logger
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Source     EventSource
	Normalizer *normalization.Normalizer

	// Archive is optional. Archive failures are logged and do not fail a run
	// unless ArchiveRequired is set.
	Archive         storage.TransactionStore
	ArchiveBackend  string // metrics label, e.g. "postgres"
	ArchiveRequired bool

	Limit  int // events per kind; defaults to DefaultFetchLimit
	Logger *slog.Logger
}

// NewManager creates a new ingestion manager with the provided source and normalizer.
func NewManager(opts ManagerOptions) *Manager {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backend := opts.ArchiveBackend
	if backend == "" {
		backend = "memory"
	}
	return &Manager{
		source:          opts.Source,
		normalizer:      opts.Normalizer,
		archive:         opts.Archive,
		archiveBackend:  backend,
		archiveRequired: opts.ArchiveRequired,
		limit:           limit,
		logger:          logger,
	}
}

// Run fetches contributions and usages for scopeID in parallel and normalizes
// them for actor. An empty actor keeps every transaction.
// Fetch errors wrap ErrSourceUnavailable; no partial result is returned.
// With ArchiveRequired, a failed archive write fails the run with ErrArchiveWrite.
func (m *Manager) Run(ctx context.Context, scopeID, actor string) (*Result, error) {
	var (
		contribs []domain.RawContributionEvent
		usages   []domain.RawUsageEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contribs, err = m.source.FetchContributions(gctx, scopeID, m.limit)
		return err
	})
	g.Go(func() error {
		var err error
		usages, err = m.source.FetchUsages(gctx, scopeID, m.limit)
		return err
	})
	if err := g.Wait(); err != nil {
		observability.RecordError("ingestion")
		return nil, err
	}

	observability.RecordEventsFetched(domain.KindContribution.String(), len(contribs))
	observability.RecordEventsFetched(domain.KindUsage.String(), len(usages))

	norm := m.normalizer.Normalize(contribs, usages, actor)
	for _, s := range norm.Skipped {
		observability.RecordEventSkipped(s.Kind.String())
		m.logger.Warn("ingestion: skipped malformed event",
			"scopeID", scopeID,
			"kind", s.Kind,
			"ordinal", s.Ordinal,
			"error", s.Err,
		)
	}

	if m.archive != nil && len(norm.Transactions) > 0 {
		err := m.archive.UpsertBulk(ctx, norm.Transactions)
		observability.RecordArchiveWrite(m.archiveBackend, err)
		if err != nil {
			if m.archiveRequired {
				return nil, fmt.Errorf("%w: %s: %w", ErrArchiveWrite, m.archiveBackend, err)
			}
			m.logger.Error("ingestion: archive write failed",
				"backend", m.archiveBackend,
				"count", len(norm.Transactions),
				"error", err,
			)
		}
	}

	m.logger.Debug("ingestion: run complete",
		"scopeID", scopeID,
		"contributions", len(contribs),
		"usages", len(usages),
		"transactions", len(norm.Transactions),
		"skipped", len(norm.Skipped),
	)

	return &Result{
		Transactions:         norm.Transactions,
		Skipped:              norm.Skipped,
		ContributionsFetched: len(contribs),
		UsagesFetched:        len(usages),
	}, nil
}
