package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/refresh"
	"reward-ledger/internal/reporting"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	txs        []domain.Transaction
	status     refresh.Status
	refreshErr error
	refreshes  int
}

func (f *fakeSource) Current() []domain.Transaction { return f.txs }
func (f *fakeSource) Status() refresh.Status { return f.status }

func (f *fakeSource) RefreshNow(ctx context.Context) ([]domain.Transaction, error) {
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.txs, nil
}

func tx(id, actor, amount string, daysAgo int) domain.Transaction {
	return domain.Transaction{
		ID:         id,
		Kind:       domain.KindContribution,
		Actor:      actor,
		Amount:     decimal.RequireFromString(amount),
		OccurredAt: now.AddDate(0, 0, -daysAgo),
	}
}

func newTestServer(src *fakeSource, actor string) (*httptest.Server, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(now)
	srv := New(src, Options{
		ScopeID:          "0xscope",
		Actor:            actor,
		LeaderboardLimit: 10,
		Clock:            clock,
	})
	return httptest.NewServer(srv.Handler()), clock
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func sampleSource() *fakeSource {
	return &fakeSource{
		txs: []domain.Transaction{
			tx("t3", "0xbob", "0.25", 1),
			tx("t2", "0xalice", "0.1", 2),
			tx("t1", "0xalice", "0.1", 40),
		},
		status: refresh.Status{State: refresh.StateReady, LastSuccess: now, Cycles: 2, SkippedEvents: 1},
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(sampleSource(), "")
	defer ts.Close()

	resp := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth_NeverSucceeded(t *testing.T) {
	src := &fakeSource{status: refresh.Status{State: refresh.StateFailed, LastError: errors.New("boom"), Cycles: 1, Failures: 1}}
	ts, _ := newTestServer(src, "")
	defer ts.Close()

	resp := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	src := sampleSource()
	src.status.LastError = errors.New("rpc timeout")
	ts, clock := newTestServer(src, "")
	defer ts.Close()
	clock.Advance(90 * time.Second)

	resp := get(t, ts.URL+"/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "0xscope", body.ScopeID)
	assert.Equal(t, "ready", body.State)
	assert.Equal(t, "1m30s", body.Uptime)
	require.NotNil(t, body.LastSuccess)
	assert.True(t, body.LastSuccess.Equal(now))
	assert.Equal(t, "rpc timeout", body.LastError)
	assert.Equal(t, 2, body.Cycles)
	assert.Equal(t, 1, body.SkippedEvents)
	assert.Equal(t, 3, body.Transactions)
}

func TestRewards_DefaultActor(t *testing.T) {
	ts, _ := newTestServer(sampleSource(), "0xalice")
	defer ts.Close()

	resp := get(t, ts.URL+"/rewards")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep reporting.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "0xalice", rep.Actor)
	assert.Equal(t, "0.2000", rep.Summary.Total)
	assert.Equal(t, "0.1000", rep.Summary.Monthly)
	assert.Equal(t, 2, rep.TransactionCount)
	assert.Len(t, rep.Chart, 30)
	require.Len(t, rep.Leaderboard, 2, "leaderboard covers every actor")
	assert.Equal(t, "0xbob", rep.Leaderboard[0].Actor)
}

func TestRewards_ActorQuery(t *testing.T) {
	ts, _ := newTestServer(sampleSource(), "0xalice")
	defer ts.Close()

	resp := get(t, ts.URL+"/rewards?actor=0xbob&recent=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep reporting.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "0xbob", rep.Actor)
	assert.Equal(t, "0.2500", rep.Summary.Total)
	assert.Len(t, rep.Recent, 1)
}

func TestRewards_EmptyActorQueryMeansAll(t *testing.T) {
	ts, _ := newTestServer(sampleSource(), "0xalice")
	defer ts.Close()

	resp := get(t, ts.URL+"/rewards?actor=")
	var rep reporting.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, 3, rep.TransactionCount)
	assert.Equal(t, "0.4500", rep.Summary.Total)
}

func TestRewards_BadRecent(t *testing.T) {
	ts, _ := newTestServer(sampleSource(), "")
	defer ts.Close()

	resp := get(t, ts.URL+"/rewards?recent=-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaderboard(t *testing.T) {
	ts, _ := newTestServer(sampleSource(), "")
	defer ts.Close()

	resp := get(t, ts.URL+"/leaderboard?limit=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []domain.LeaderboardEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "0xbob", entries[0].Actor)
	assert.Equal(t, 1, entries[0].Rank)

	resp = get(t, ts.URL+"/leaderboard?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaderboard_Empty(t *testing.T) {
	ts, _ := newTestServer(&fakeSource{}, "")
	defer ts.Close()

	resp := get(t, ts.URL+"/leaderboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "[]", string(raw))
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"cancelled", refresh.ErrCancelled, http.StatusServiceUnavailable},
		{"source down", errors.New("event source unavailable"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sampleSource()
			src.refreshErr = tt.err
			ts, _ := newTestServer(src, "")
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/refresh", "application/json", strings.NewReader(""))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, 1, src.refreshes)
			if tt.err == nil {
				var body RefreshResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, 3, body.Transactions)
			}
		})
	}
}

func TestRefresh_MethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(sampleSource(), "")
	defer ts.Close()

	resp := get(t, ts.URL+"/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
