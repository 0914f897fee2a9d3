// Package refresh keeps a subscription's transaction set current by re-running
// the fetch and normalize cycle on a timer, on ledger push triggers, and on demand.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/ingestion"
	"reward-ledger/internal/observability"
)

const (
	DefaultInterval             = 10 * time.Second
	DefaultFetchTimeout         = 30 * time.Second
	DefaultRetryInitialInterval = 500 * time.Millisecond
)

// Cycle runs one fetch and normalize pass. ingestion.Manager implements it.
type Cycle interface {
	Run(ctx context.Context, scopeID, actor string) (*ingestion.Result, error)
}

// Options configures a Scheduler.
type Options struct {
	Cycle  Cycle
	Clock  clockwork.Clock
	Logger *slog.Logger

	// FetchTimeout bounds a single cycle including retries.
	FetchTimeout time.Duration

	// RetryAttempts is the number of extra attempts after a failed cycle.
	RetryAttempts        int
	RetryInitialInterval time.Duration
}

// Subscription describes one scope and actor to keep current.
type Subscription struct {
	ScopeID  string
	Actor    string // empty means every actor
	Interval time.Duration

	// OnUpdate receives every successfully refreshed set. Required.
	OnUpdate func([]domain.Transaction)
	// OnError receives cycle failures. Optional.
	OnError func(error)
	// Trigger requests an early cycle on each receive. Optional.
	Trigger <-chan struct{}
}

// Scheduler starts subscriptions that share one cycle implementation.
type Scheduler struct {
	opts Options
	log  *slog.Logger
}

// NewScheduler creates a new scheduler. Zero-valued options take defaults.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Cycle == nil {
		return nil, errors.New("refresh: cycle is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = DefaultRetryInitialInterval
	}
	return &Scheduler{opts: opts, log: opts.Logger}, nil
}

// Start begins refreshing sub. The first cycle runs immediately on the
// subscription goroutine; later ones follow the interval and the trigger.
func (s *Scheduler) Start(ctx context.Context, sub Subscription) (*Handle, error) {
	if sub.ScopeID == "" {
		return nil, errors.New("refresh: scope id is required")
	}
	if sub.OnUpdate == nil {
		return nil, errors.New("refresh: OnUpdate is required")
	}
	if sub.Interval <= 0 {
		sub.Interval = DefaultInterval
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		s:      s,
		sub:    sub,
		log:    s.log.With("scopeID", sub.ScopeID, "actor", sub.Actor),
		ctx:    hctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	empty := []domain.Transaction{}
	h.current.Store(&empty)

	go h.loop()
	return h, nil
}

// run executes the cycle with retries under the fetch timeout.
func (s *Scheduler) run(ctx context.Context, scopeID, actor string) (*ingestion.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	if s.opts.RetryAttempts == 0 {
		return s.opts.Cycle.Run(ctx, scopeID, actor)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.RetryInitialInterval
	return backoff.Retry(ctx, func() (*ingestion.Result, error) {
		return s.opts.Cycle.Run(ctx, scopeID, actor)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(s.opts.RetryAttempts+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn("refresh: cycle failed, retrying", "scopeID", scopeID, "error", err, "backoff", next)
		}),
	)
}

// Handle controls a running subscription.
type Handle struct {
	s   *Scheduler
	sub Subscription
	log *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}

	current atomic.Pointer[[]domain.Transaction]

	mu       sync.Mutex
	inflight int
	status   Status
}

// Cancel stops future cycles and callbacks. A cycle already in flight runs to
// completion but its result is discarded. Cancel is safe to call more than once.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		// Taken under mu so no cycle commits after Cancel returns.
		h.mu.Lock()
		h.cancelled.Store(true)
		h.mu.Unlock()
		h.cancel()
		h.log.Info("refresh: subscription cancelled")
	})
}

// Done is closed once the subscription goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// RefreshNow runs one cycle in the caller's goroutine and returns the new set.
// It is not serialized against scheduled cycles; the last to complete wins.
func (h *Handle) RefreshNow(ctx context.Context) ([]domain.Transaction, error) {
	if h.cancelled.Load() {
		return nil, ErrCancelled
	}
	return h.cycle(ctx, "manual")
}

// Current returns the most recent successfully refreshed set. The slice must
// not be modified.
func (h *Handle) Current() []domain.Transaction {
	return *h.current.Load()
}

// Status returns a snapshot of the subscription status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.status
	if h.inflight > 0 {
		st.State = StateFetching
	}
	return st
}

func (h *Handle) loop() {
	defer close(h.done)

	ticker := h.s.opts.Clock.NewTicker(h.sub.Interval)
	defer ticker.Stop()

	h.scheduled("initial")

	trigger := h.sub.Trigger
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.Chan():
			h.scheduled("timer")
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			h.scheduled("trigger")
		}
	}
}

// scheduled runs a cycle detached from the handle's context so cancellation
// never aborts a network call mid-flight.
func (h *Handle) scheduled(trigger string) {
	if h.cancelled.Load() {
		return
	}
	_, _ = h.cycle(context.WithoutCancel(h.ctx), trigger)
}

func (h *Handle) cycle(ctx context.Context, trigger string) ([]domain.Transaction, error) {
	h.mu.Lock()
	h.inflight++
	h.mu.Unlock()

	clock := h.s.opts.Clock
	start := clock.Now()
	res, err := h.s.run(ctx, h.sub.ScopeID, h.sub.Actor)
	observability.RecordRefreshCycle(trigger, clock.Since(start), err)

	h.mu.Lock()
	h.inflight--
	if h.cancelled.Load() {
		h.mu.Unlock()
		h.log.Debug("refresh: discarded result after cancel", "trigger", trigger)
		return nil, ErrCancelled
	}

	if err != nil {
		h.status.Cycles++
		h.status.Failures++
		h.status.LastError = err
		h.status.State = StateFailed
		h.mu.Unlock()

		h.log.Error("refresh: cycle failed", "trigger", trigger, "error", err)
		if h.sub.OnError != nil && !h.cancelled.Load() {
			h.sub.OnError(err)
		}
		return nil, err
	}

	txs := res.Transactions
	if txs == nil {
		txs = []domain.Transaction{}
	}
	now := clock.Now()
	h.current.Store(&txs)
	h.status.Cycles++
	h.status.LastSuccess = now
	h.status.SkippedEvents = len(res.Skipped)
	h.status.State = StateReady
	h.mu.Unlock()

	observability.UpdateCurrentSet(len(txs), now)
	h.log.Info("refresh: cycle complete",
		"trigger", trigger,
		"transactions", len(txs),
		"skipped", len(res.Skipped),
		"duration", clock.Since(start),
	)

	if h.cancelled.Load() {
		h.log.Debug("refresh: update not delivered after cancel", "trigger", trigger)
		return txs, nil
	}
	h.sub.OnUpdate(txs)
	return txs, nil
}
