// Package server exposes a live reward subscription over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/metrics"
	"reward-ledger/internal/observability"
	"reward-ledger/internal/refresh"
	"reward-ledger/internal/reporting"
)

// Source is the live subscription served over HTTP. refresh.Handle implements it.
type Source interface {
	Current() []domain.Transaction
	Status() refresh.Status
	RefreshNow(ctx context.Context) ([]domain.Transaction, error)
}

// Compile-time interface check.
var _ Source = (*refresh.Handle)(nil)

// Options configures a Server.
type Options struct {
	ScopeID          string
	Actor            string // default actor for /rewards; empty means all
	LeaderboardLimit int
	Clock            clockwork.Clock
	Logger           *slog.Logger
}

// Server serves reward analytics computed from the subscription's current set.
type Server struct {
	src     Source
	opts    Options
	log     *slog.Logger
	started time.Time
}

// New creates a new server reading from src.
func New(src Source, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LeaderboardLimit <= 0 {
		opts.LeaderboardLimit = metrics.DefaultLeaderboardLimit
	}
	return &Server{
		src:     src,
		opts:    opts,
		log:     opts.Logger,
		started: opts.Clock.Now(),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /rewards", s.handleRewards)
	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	return mux
}

// handleHealth reports unhealthy only while no cycle has ever succeeded and the
// last one failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.src.Status()
	if st.State == refresh.StateFailed && st.LastSuccess.IsZero() {
		http.Error(w, "no successful refresh", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	ScopeID       string     `json:"scopeId"`
	State         string     `json:"state"`
	Uptime        string     `json:"uptime"`
	LastSuccess   *time.Time `json:"lastSuccess,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	Cycles        int        `json:"cycles"`
	Failures      int        `json:"failures"`
	SkippedEvents int        `json:"skippedEvents"`
	Transactions  int        `json:"transactions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.src.Status()
	resp := StatusResponse{
		ScopeID:       s.opts.ScopeID,
		State:         st.State.String(),
		Uptime:        s.opts.Clock.Since(s.started).Truncate(time.Second).String(),
		Cycles:        st.Cycles,
		Failures:      st.Failures,
		SkippedEvents: st.SkippedEvents,
		Transactions:  len(s.src.Current()),
	}
	if !st.LastSuccess.IsZero() {
		at := st.LastSuccess.UTC()
		resp.LastSuccess = &at
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRewards returns the report for ?actor=, defaulting to the configured actor.
func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor := s.opts.Actor
	if q.Has("actor") {
		actor = q.Get("actor")
	}
	recent, err := intParam(q.Get("recent"), reporting.DefaultRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "recent: "+err.Error())
		return
	}

	rep := reporting.Build(s.opts.ScopeID, actor, s.src.Current(), nil, s.opts.Clock.Now(), s.opts.LeaderboardLimit, recent)
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), s.opts.LeaderboardLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metrics.Leaderboard(s.src.Current(), limit))
}

// RefreshResponse is the JSON response for POST /refresh.
type RefreshResponse struct {
	Transactions int `json:"transactions"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	txs, err := s.src.RefreshNow(r.Context())
	switch {
	case errors.Is(err, refresh.ErrCancelled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		s.log.Warn("manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, RefreshResponse{Transactions: len(txs)})
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
