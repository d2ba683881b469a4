package portfolio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-dashboard/internal/logger"
	"portfolio-dashboard/internal/market"
)

var hundred = decimal.NewFromInt(100)

// EarningsLookup annotates a holding with its latest earnings figure. An
// empty string means no figure is available.
type EarningsLookup interface {
	GetEarnings(ctx context.Context, symbol string) (string, error)
}

// Engine turns holdings and a quote mapping into a Snapshot. It holds no
// state between calls.
type Engine struct {
	earnings EarningsLookup
	now      func() time.Time
}

// NewEngine returns an engine. A nil lookup disables earnings enrichment.
func NewEngine(earnings EarningsLookup) *Engine {
	return &Engine{earnings: earnings, now: time.Now}
}

// Value prices every holding. A symbol missing from quotes is valued at zero.
// The only error is an internal consistency failure.
func (e *Engine) Value(ctx context.Context, holdings []Holding, quotes map[string]market.Quote) (Snapshot, error) {
	totalInvestment := decimal.Zero
	for _, h := range holdings {
		totalInvestment = totalInvestment.Add(investmentOf(h))
	}

	earnings := e.lookupEarnings(ctx, holdings)

	stocks := make([]ValuedHolding, 0, len(holdings))
	totalPresent := decimal.Zero
	for _, h := range holdings {
		v := valueHolding(h, quotes[h.Symbol], totalInvestment)
		v.LatestEarnings = earnings[h.Symbol]
		totalPresent = totalPresent.Add(v.PresentValue)
		stocks = append(stocks, v)
	}

	snap := Snapshot{
		Stocks:            stocks,
		Sectors:           groupBySector(stocks),
		TotalInvestment:   totalInvestment,
		TotalPresentValue: totalPresent,
		TotalGainLoss:     totalPresent.Sub(totalInvestment),
		LastUpdated:       e.now().UTC().Format(time.RFC3339),
	}
	if err := checkInvariants(snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func investmentOf(h Holding) decimal.Decimal {
	return h.PurchasePrice.Mul(decimal.NewFromInt(h.Quantity))
}

func valueHolding(h Holding, q market.Quote, totalInvestment decimal.Decimal) ValuedHolding {
	cmp := decimal.Zero
	if q.Price > 0 {
		cmp = decimal.NewFromFloat(q.Price)
	}
	qty := decimal.NewFromInt(h.Quantity)
	investment := investmentOf(h)
	present := cmp.Mul(qty)

	pct := decimal.Zero
	if totalInvestment.IsPositive() {
		pct = investment.Div(totalInvestment).Mul(hundred)
	}

	v := ValuedHolding{
		Holding:             h,
		Investment:          investment,
		PortfolioPercentage: pct,
		CMP:                 cmp,
		PresentValue:        present,
		GainLoss:            present.Sub(investment),
	}
	if q.PERatio != nil && *q.PERatio != 0 {
		pe := *q.PERatio
		v.PERatio = &pe
	}
	return v
}

// lookupEarnings fetches annotations for each distinct symbol concurrently.
// Any failure leaves that symbol without an annotation.
func (e *Engine) lookupEarnings(ctx context.Context, holdings []Holding) map[string]*string {
	if e.earnings == nil {
		return nil
	}
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]*string, len(holdings))
	)
	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		if seen[h.Symbol] {
			continue
		}
		seen[h.Symbol] = true
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.L.Warn("earnings lookup panicked", "symbol", symbol, "panic", r)
				}
			}()
			s, err := e.earnings.GetEarnings(ctx, symbol)
			if err != nil {
				logger.L.Debug("earnings lookup failed", "symbol", symbol, "error", err)
				return
			}
			if s == "" {
				return
			}
			mu.Lock()
			out[symbol] = &s
			mu.Unlock()
		}(h.Symbol)
	}
	wg.Wait()
	return out
}

// groupBySector keeps holdings in input order within a sector and orders
// sectors by descending investment; ties keep first-seen order.
func groupBySector(stocks []ValuedHolding) []SectorAggregate {
	index := make(map[string]int)
	sectors := make([]SectorAggregate, 0)
	for _, s := range stocks {
		i, ok := index[s.Sector]
		if !ok {
			i = len(sectors)
			index[s.Sector] = i
			sectors = append(sectors, SectorAggregate{
				Sector:            s.Sector,
				TotalInvestment:   decimal.Zero,
				TotalPresentValue: decimal.Zero,
			})
		}
		agg := &sectors[i]
		agg.TotalInvestment = agg.TotalInvestment.Add(s.Investment)
		agg.TotalPresentValue = agg.TotalPresentValue.Add(s.PresentValue)
		agg.Stocks = append(agg.Stocks, s)
	}
	for i := range sectors {
		sectors[i].GainLoss = sectors[i].TotalPresentValue.Sub(sectors[i].TotalInvestment)
	}
	sort.SliceStable(sectors, func(a, b int) bool {
		return sectors[a].TotalInvestment.GreaterThan(sectors[b].TotalInvestment)
	})
	return sectors
}

func checkInvariants(s Snapshot) error {
	sectorInvestment, sectorPresent := decimal.Zero, decimal.Zero
	for _, sec := range s.Sectors {
		sectorInvestment = sectorInvestment.Add(sec.TotalInvestment)
		sectorPresent = sectorPresent.Add(sec.TotalPresentValue)
	}
	if !sectorInvestment.Equal(s.TotalInvestment) {
		return fmt.Errorf("%w: sector investment %s != total %s", ErrInvariant, sectorInvestment, s.TotalInvestment)
	}
	if !sectorPresent.Equal(s.TotalPresentValue) {
		return fmt.Errorf("%w: sector present value %s != total %s", ErrInvariant, sectorPresent, s.TotalPresentValue)
	}
	for _, v := range s.Stocks {
		if !v.GainLoss.Equal(v.PresentValue.Sub(v.Investment)) {
			return fmt.Errorf("%w: gain/loss mismatch for %s", ErrInvariant, v.Symbol)
		}
	}
	return nil
}
