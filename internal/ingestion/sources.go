package ingestion

import (
	"context"

	"reward-ledger/internal/domain"
)

// EventSource provides raw reward events for a scope (the ledger package id).
type EventSource interface {
	// FetchContributions returns at most limit contribution events, newest first.
	FetchContributions(ctx context.Context, scopeID string, limit int) ([]domain.RawContributionEvent, error)

	// FetchUsages returns at most limit usage events, newest first.
	FetchUsages(ctx context.Context, scopeID string, limit int) ([]domain.RawUsageEvent, error)
}
