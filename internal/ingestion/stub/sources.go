package stub

import (
	"context"
	"sync"

	"reward-ledger/internal/domain"
)

// EventSource returns fixed in-memory events for testing.
// Events are returned in the order given, truncated to the requested limit.
// Implements ingestion.EventSource interface.
type EventSource struct {
	mu            sync.Mutex
	contributions []domain.RawContributionEvent
	usages        []domain.RawUsageEvent
	err           error
	calls         int
}

// NewEventSource creates a new stub event source with the given events.
func NewEventSource(contributions []domain.RawContributionEvent, usages []domain.RawUsageEvent) *EventSource {
	return &EventSource{contributions: contributions, usages: usages}
}

// FetchContributions returns copies of the stored contributions.
func (s *EventSource) FetchContributions(_ context.Context, _ string, limit int) ([]domain.RawContributionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return head(s.contributions, limit), nil
}

// FetchUsages returns copies of the stored usages.
func (s *EventSource) FetchUsages(_ context.Context, _ string, limit int) ([]domain.RawUsageEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return head(s.usages, limit), nil
}

// SetEvents replaces the stored events.
func (s *EventSource) SetEvents(contributions []domain.RawContributionEvent, usages []domain.RawUsageEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contributions = contributions
	s.usages = usages
}

// SetError makes every subsequent fetch fail with err (nil clears it).
func (s *EventSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the number of fetch calls served so far.
func (s *EventSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func head[T any](events []T, limit int) []T {
	n := len(events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, n)
	copy(out, events[:n])
	return out
}
