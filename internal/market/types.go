package market

import "context"

// Quote is the normalized record every provider produces. A zero Price means
// the provider had nothing usable for the symbol.
type Quote struct {
	Symbol    string   `json:"symbol"`
	Price     float64  `json:"price"`
	PERatio   *float64 `json:"peRatio"`
	MarketCap *float64 `json:"marketCap"`
	Volume    *int64   `json:"volume"`
}

// Placeholder is the zero-price quote used when a symbol could not be fetched.
func Placeholder(symbol string) Quote {
	return Quote{Symbol: symbol}
}

// Provider is the capability set the chain depends on.
type Provider interface {
	Name() string
	// GetQuote fetches one symbol and fails with a *ProviderError.
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	// GetMultipleQuotes returns exactly one entry per requested symbol;
	// symbols that fail resolve to Placeholder.
	GetMultipleQuotes(ctx context.Context, symbols []string) map[string]Quote
	// ClearCache drops one symbol's cached entries, or everything when
	// symbol is empty.
	ClearCache(symbol string)
}

// Configurable is implemented by providers that need credentials. The chain
// skips a provider whose Configured reports false.
type Configurable interface {
	Configured() bool
}

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

func countValid(quotes map[string]Quote) int {
	n := 0
	for _, q := range quotes {
		if q.Price > 0 {
			n++
		}
	}
	return n
}
