package portfolio

import (
	"context"
	"fmt"
	"strings"

	"portfolio-dashboard/internal/logger"
	"portfolio-dashboard/internal/market"
)

// HoldingStore is the in-memory collection of holdings, kept in insertion
// order.
type HoldingStore interface {
	ListHoldings(ctx context.Context) ([]Holding, error)
	GetHolding(ctx context.Context, symbol string) (Holding, error)
	InsertHolding(ctx context.Context, h Holding) error
	UpdateHolding(ctx context.Context, h Holding) error
	DeleteHolding(ctx context.Context, symbol string) error
}

// QuoteSource resolves symbols to quotes and never fails.
type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string) market.Result
	ClearCache(symbol string)
}

type Service struct {
	store  HoldingStore
	quotes QuoteSource
	engine *Engine
}

func NewService(store HoldingStore, quotes QuoteSource, engine *Engine) *Service {
	if engine == nil {
		engine = NewEngine(nil)
	}
	return &Service{store: store, quotes: quotes, engine: engine}
}

// Snapshot values the current holdings against fresh quotes.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	holdings, err := s.store.ListHoldings(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list holdings: %w", err)
	}
	res := s.quotes.Quotes(ctx, symbolsOf(holdings))
	snap, err := s.engine.Value(ctx, holdings, res.Quotes)
	if err != nil {
		logger.L.Error("valuation failed", "error", err)
		return Snapshot{}, err
	}
	snap.Source = res.Source
	return snap, nil
}

func (s *Service) Holdings(ctx context.Context) ([]Holding, error) {
	return s.store.ListHoldings(ctx)
}

func (s *Service) Add(ctx context.Context, h Holding) (Holding, error) {
	h = h.Normalize()
	if err := h.Validate(); err != nil {
		return Holding{}, err
	}
	if err := s.store.InsertHolding(ctx, h); err != nil {
		return Holding{}, err
	}
	logger.L.Info("holding added", "symbol", h.Symbol, "quantity", h.Quantity)
	return h, nil
}

func (s *Service) Remove(ctx context.Context, symbol string) error {
	if err := s.store.DeleteHolding(ctx, strings.TrimSpace(symbol)); err != nil {
		return err
	}
	logger.L.Info("holding removed", "symbol", symbol)
	return nil
}

// Update applies a partial update to an existing holding and validates the
// result before storing it.
func (s *Service) Update(ctx context.Context, symbol string, upd HoldingUpdate) (Holding, error) {
	symbol = strings.TrimSpace(symbol)
	cur, err := s.store.GetHolding(ctx, symbol)
	if err != nil {
		return Holding{}, err
	}
	if upd.Empty() {
		return cur, nil
	}
	next := upd.Apply(cur)
	if err := next.Validate(); err != nil {
		return Holding{}, err
	}
	if err := s.store.UpdateHolding(ctx, next); err != nil {
		return Holding{}, err
	}
	logger.L.Info("holding updated", "symbol", symbol)
	return next, nil
}

// Quotes resolves the given symbols, or every held symbol when none are given.
func (s *Service) Quotes(ctx context.Context, symbols []string) (market.Result, error) {
	if len(symbols) == 0 {
		holdings, err := s.store.ListHoldings(ctx)
		if err != nil {
			return market.Result{}, fmt.Errorf("list holdings: %w", err)
		}
		symbols = symbolsOf(holdings)
	}
	return s.quotes.Quotes(ctx, symbols), nil
}

// ClearCache drops cached quotes for one symbol, or all when symbol is empty.
func (s *Service) ClearCache(symbol string) {
	s.quotes.ClearCache(strings.TrimSpace(symbol))
	logger.L.Info("quote cache cleared", "symbol", symbol)
}

func symbolsOf(holdings []Holding) []string {
	out := make([]string, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, h.Symbol)
	}
	return out
}
