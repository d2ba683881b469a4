package market

import (
	"context"
	"fmt"

	"portfolio-dashboard/internal/logger"
)

// Result is the quote mapping for one request and the provider that served it.
type Result struct {
	Quotes map[string]Quote `json:"quotes"`
	Source string           `json:"source"`
}

// Chain tries providers in priority order and falls back to the mock source.
// It never fails: the worst case is a fully canned mapping.
type Chain struct {
	providers []Provider
	mock      *MockSource
	useMock   bool
}

func NewChain(useMock bool, mock *MockSource, providers ...Provider) *Chain {
	if mock == nil {
		mock = NewMockSource()
	}
	return &Chain{providers: providers, mock: mock, useMock: useMock}
}

func (c *Chain) UseMock() bool { return c.useMock }

func (c *Chain) Providers() []Provider {
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// Quotes returns an entry for every symbol. A provider wins the batch when it
// completes and at least one price is non-zero.
func (c *Chain) Quotes(ctx context.Context, symbols []string) Result {
	if c.useMock || len(symbols) == 0 {
		return c.fromMock(symbols)
	}

	for _, p := range c.providers {
		if cp, ok := p.(Configurable); ok && !cp.Configured() {
			logger.L.Debug("provider skipped, not configured", "provider", p.Name())
			continue
		}
		quotes, err := attempt(ctx, p, symbols)
		if err != nil {
			logger.L.Error("provider failed", "provider", p.Name(), "error", err)
			continue
		}
		if valid := countValid(quotes); valid > 0 {
			logger.L.Info("quotes resolved", "provider", p.Name(), "valid", valid, "requested", len(symbols))
			return Result{Quotes: quotes, Source: p.Name()}
		}
		logger.L.Warn("provider returned no prices, trying next", "provider", p.Name())
	}

	logger.L.Warn("all providers failed, serving mock quotes", "requested", len(symbols))
	return c.fromMock(symbols)
}

// ClearCache forwards to every provider. The mock source has no cache.
func (c *Chain) ClearCache(symbol string) {
	for _, p := range c.providers {
		p.ClearCache(symbol)
	}
}

func (c *Chain) fromMock(symbols []string) Result {
	return Result{Quotes: c.mock.Quotes(symbols), Source: MockName}
}

// attempt runs one provider batch, turning a panic into an error and filling
// any symbol the provider left out.
func attempt(ctx context.Context, p Provider, symbols []string) (out map[string]Quote, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%s panicked: %v", p.Name(), r)
		}
	}()
	out = p.GetMultipleQuotes(ctx, symbols)
	if out == nil {
		out = make(map[string]Quote, len(symbols))
	}
	for _, sym := range symbols {
		if _, ok := out[sym]; !ok {
			out[sym] = Placeholder(sym)
		}
	}
	return out, nil
}
