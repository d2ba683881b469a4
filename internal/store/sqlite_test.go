package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-dashboard/internal/portfolio"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	st, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSeedAndList(t *testing.T) {
	st := openMemory(t)
	ctx := context.Background()

	n, err := st.Seed(ctx, portfolio.SampleHoldings())
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = st.Seed(ctx, portfolio.SampleHoldings())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "seeding a non-empty store is a no-op")

	got, err := st.ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.Equal(t, "INFY.NS", got[0].Symbol)
	assert.Equal(t, "ONGC.NS", got[11].Symbol)
	assert.True(t, got[0].PurchasePrice.Equal(decimal.RequireFromString("1450.50")))
}

func TestHoldingCRUD(t *testing.T) {
	st := openMemory(t)
	ctx := context.Background()

	a := portfolio.Holding{Symbol: "A.NS", Name: "A", PurchasePrice: decimal.RequireFromString("10.25"), Quantity: 3, Exchange: "NSE", Sector: "X"}
	b := portfolio.Holding{Symbol: "B.NS", Name: "B", PurchasePrice: decimal.NewFromInt(5), Quantity: 1, Exchange: "NSE", Sector: "Y"}
	require.NoError(t, st.InsertHolding(ctx, a))
	require.NoError(t, st.InsertHolding(ctx, b))
	assert.ErrorIs(t, st.InsertHolding(ctx, a), ErrDuplicate)

	a.Quantity = 7
	a.Name = "A renamed"
	require.NoError(t, st.UpdateHolding(ctx, a))

	list, err := st.ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A.NS", list[0].Symbol, "update keeps position")
	assert.Equal(t, int64(7), list[0].Quantity)
	assert.Equal(t, "A renamed", list[0].Name)

	got, err := st.GetHolding(ctx, "B.NS")
	require.NoError(t, err)
	assert.Equal(t, b.Symbol, got.Symbol)

	require.NoError(t, st.DeleteHolding(ctx, "A.NS"))
	assert.ErrorIs(t, st.DeleteHolding(ctx, "A.NS"), ErrNotFound)
	_, err = st.GetHolding(ctx, "A.NS")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.UpdateHolding(ctx, a), ErrNotFound)
}

func TestDigests(t *testing.T) {
	st := openMemory(t)
	ctx := context.Background()

	_, err := st.InsertDigest(ctx, DigestRecord{TS: 100, Channel: "dingtalk", Status: "sent", PayloadMD: "# one"})
	require.NoError(t, err)
	_, err = st.InsertDigest(ctx, DigestRecord{TS: 200, Channel: "dingtalk", Status: "failed", ErrCode: 310000, ErrMsg: "sign not match"})
	require.NoError(t, err)

	recs, err := st.RecentDigests(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(200), recs[0].TS)
	assert.Equal(t, 310000, recs[0].ErrCode)
	assert.NotEmpty(t, recs[1].CreatedAt)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.InsertHolding(context.Background(), portfolio.SampleHoldings()[0]))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()
	list, err := st.ListHoldings(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
