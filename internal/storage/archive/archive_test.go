package archive

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reward-ledger/internal/domain"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, "", "")
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, BackendMemory, a.Backend)

	tx := domain.Transaction{
		ID:         "tx-1",
		Kind:       domain.KindContribution,
		Actor:      "0xalice",
		Amount:     decimal.RequireFromString("0.1"),
		OccurredAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, a.Store.UpsertBulk(ctx, []domain.Transaction{tx}))

	n, err := a.Store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_BothBackends(t *testing.T) {
	_, err := Open(context.Background(), "postgres://localhost/x", "clickhouse://localhost/y")
	assert.Error(t, err)
}

func TestOpen_BadPostgresDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz", "")
	assert.Error(t, err)
}

func TestOpen_BadClickhouseDSN(t *testing.T) {
	_, err := Open(context.Background(), "", "clickhouse:///rewards")
	assert.Error(t, err)
}

func TestClose_Nil(t *testing.T) {
	var a *Archive
	assert.NoError(t, a.Close())
}
