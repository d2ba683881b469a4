package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-dashboard/internal/market"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s got %s", want, got.String())
}

func holding(symbol, price string, qty int64, sector string) Holding {
	return Holding{Symbol: symbol, Name: symbol, PurchasePrice: dec(price), Quantity: qty, Exchange: "NSE", Sector: sector}
}

func quote(symbol string, price float64) market.Quote {
	return market.Quote{Symbol: symbol, Price: price}
}

func fixedEngine(lookup EarningsLookup) *Engine {
	e := NewEngine(lookup)
	e.now = func() time.Time { return time.Date(2026, 10, 17, 4, 30, 0, 0, time.FixedZone("IST", 19800)) }
	return e
}

func TestValueSingleHolding(t *testing.T) {
	snap, err := fixedEngine(nil).Value(context.Background(),
		[]Holding{holding("AAA", "100", 10, "Tech")},
		map[string]market.Quote{"AAA": quote("AAA", 120)})
	require.NoError(t, err)
	require.Len(t, snap.Stocks, 1)

	v := snap.Stocks[0]
	assertDec(t, "1000", v.Investment)
	assertDec(t, "1200", v.PresentValue)
	assertDec(t, "200", v.GainLoss)
	assertDec(t, "100", v.PortfolioPercentage)
	assertDec(t, "120", v.CMP)
	assertDec(t, "1000", snap.TotalInvestment)
	assertDec(t, "1200", snap.TotalPresentValue)
	assertDec(t, "200", snap.TotalGainLoss)
	assert.Equal(t, "2026-10-16T23:00:00Z", snap.LastUpdated)
}

func TestValueSectorPercentages(t *testing.T) {
	snap, err := fixedEngine(nil).Value(context.Background(),
		[]Holding{holding("A", "100", 10, "Tech"), holding("B", "200", 10, "Tech")},
		map[string]market.Quote{"A": quote("A", 100), "B": quote("B", 200)})
	require.NoError(t, err)

	require.Len(t, snap.Sectors, 1)
	assertDec(t, "3000", snap.Sectors[0].TotalInvestment)
	assert.Equal(t, "33.33", snap.Stocks[0].PortfolioPercentage.StringFixed(2))
	assert.Equal(t, "66.67", snap.Stocks[1].PortfolioPercentage.StringFixed(2))
}

func TestValuePercentagesSumToHundred(t *testing.T) {
	snap, err := fixedEngine(nil).Value(context.Background(),
		[]Holding{holding("A", "100", 10, "Tech"), holding("B", "100", 10, "Energy"), holding("C", "100", 10, "FMCG")},
		map[string]market.Quote{"A": quote("A", 100), "B": quote("B", 100), "C": quote("C", 100)})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, v := range snap.Stocks {
		assert.Equal(t, "33.33", v.PortfolioPercentage.StringFixed(2))
		sum = sum.Add(v.PortfolioPercentage)
	}
	assert.InDelta(t, 100.0, sum.InexactFloat64(), 1e-9)
}

func TestValueInvariantsOnSamplePortfolio(t *testing.T) {
	holdings := SampleHoldings()
	quotes := market.NewMockSource().Quotes(symbolsOf(holdings))
	delete(quotes, "ONGC.NS")
	quotes["TCS.NS"] = quote("TCS.NS", 3850.123456)

	snap, err := fixedEngine(nil).Value(context.Background(), holdings, quotes)
	require.NoError(t, err)
	require.Len(t, snap.Stocks, len(holdings))

	sectorSum := decimal.Zero
	for _, s := range snap.Sectors {
		sectorSum = sectorSum.Add(s.TotalInvestment)
	}
	assert.True(t, sectorSum.Equal(snap.TotalInvestment))

	pctSum := decimal.Zero
	for _, v := range snap.Stocks {
		assert.True(t, v.GainLoss.Equal(v.PresentValue.Sub(v.Investment)), v.Symbol)
		pctSum = pctSum.Add(v.PortfolioPercentage)
	}
	assert.InDelta(t, 100.0, pctSum.InexactFloat64(), 1e-9)
	assert.True(t, snap.TotalGainLoss.Equal(snap.TotalPresentValue.Sub(snap.TotalInvestment)))

	for i := 1; i < len(snap.Sectors); i++ {
		assert.False(t, snap.Sectors[i].TotalInvestment.GreaterThan(snap.Sectors[i-1].TotalInvestment),
			"sectors sorted by descending investment")
	}
}

func TestValueMissingQuote(t *testing.T) {
	snap, err := fixedEngine(nil).Value(context.Background(),
		[]Holding{holding("AAA", "100", 10, "Tech")}, nil)
	require.NoError(t, err)

	v := snap.Stocks[0]
	assert.True(t, v.CMP.IsZero())
	assert.True(t, v.PresentValue.IsZero())
	assertDec(t, "-1000", v.GainLoss)
	assert.Nil(t, v.PERatio)
}

func TestValuePERatio(t *testing.T) {
	pe, zero := 25.5, 0.0
	snap, err := fixedEngine(nil).Value(context.Background(),
		[]Holding{holding("A", "1", 1, "X"), holding("B", "1", 1, "X")},
		map[string]market.Quote{
			"A": {Symbol: "A", Price: 2, PERatio: &pe},
			"B": {Symbol: "B", Price: 2, PERatio: &zero},
		})
	require.NoError(t, err)
	require.NotNil(t, snap.Stocks[0].PERatio)
	assert.Equal(t, 25.5, *snap.Stocks[0].PERatio)
	assert.Nil(t, snap.Stocks[1].PERatio, "a zero P/E is reported as absent")
}

func TestValueEmptyPortfolio(t *testing.T) {
	snap, err := fixedEngine(nil).Value(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, snap.Stocks)
	assert.NotNil(t, snap.Sectors)
	assert.True(t, snap.TotalInvestment.IsZero())
}

type fakeEarnings map[string]any

func (f fakeEarnings) GetEarnings(_ context.Context, symbol string) (string, error) {
	switch v := f[symbol].(type) {
	case string:
		return v, nil
	case error:
		return "", v
	case func():
		v()
	}
	return "", nil
}

func TestValueEarningsEnrichment(t *testing.T) {
	lookup := fakeEarnings{
		"A": "₹63.39",
		"B": errors.New("timeout"),
		"C": "",
		"D": func() { panic("boom") },
	}
	holdings := []Holding{
		holding("A", "1", 1, "X"),
		holding("B", "1", 1, "X"),
		holding("C", "1", 1, "Y"),
		holding("D", "1", 1, "Y"),
	}

	snap, err := fixedEngine(lookup).Value(context.Background(), holdings, nil)
	require.NoError(t, err)

	require.NotNil(t, snap.Stocks[0].LatestEarnings)
	assert.Equal(t, "₹63.39", *snap.Stocks[0].LatestEarnings)
	for _, v := range snap.Stocks[1:] {
		assert.Nil(t, v.LatestEarnings, v.Symbol)
	}
}

func TestCheckInvariantsDetectsMismatch(t *testing.T) {
	s := Snapshot{
		TotalInvestment: dec("10"),
		Sectors:         []SectorAggregate{{Sector: "X", TotalInvestment: dec("9")}},
	}
	assert.ErrorIs(t, checkInvariants(s), ErrInvariant)
}
