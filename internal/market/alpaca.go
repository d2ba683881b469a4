package market

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

const (
	AlpacaName        = "alpaca"
	AlpacaMinInterval = 300 * time.Millisecond
)

type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// latestTrader is the slice of the Alpaca market data client we use.
type latestTrader interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// Alpaca prices a symbol from its latest trade. It only knows US listings,
// so exchange suffixes are stripped and unknown symbols fail per symbol.
type Alpaca struct {
	configured bool
	client     latestTrader
	cache      *Cache[Quote]
	pacer      *Pacer
}

var (
	_ Provider     = (*Alpaca)(nil)
	_ Configurable = (*Alpaca)(nil)
)

func NewAlpaca(cfg AlpacaConfig, cache *Cache[Quote], pacer *Pacer) *Alpaca {
	if cache == nil {
		cache = NewCache[Quote](DefaultQuoteTTL)
	}
	if pacer == nil {
		pacer = NewPacer(AlpacaMinInterval)
	}
	p := &Alpaca{
		configured: cfg.APIKey != "" && cfg.APISecret != "",
		cache:      cache,
		pacer:      pacer,
	}
	if p.configured {
		p.client = marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		})
	}
	return p
}

func (p *Alpaca) Name() string { return AlpacaName }

func (p *Alpaca) Configured() bool { return p.configured && p.client != nil }

func (p *Alpaca) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	if q, ok := p.cache.Get(symbol); ok {
		return q, nil
	}
	if !p.Configured() {
		return Quote{}, newProviderError(AlpacaName, symbol, ErrNotConfigured, fmt.Errorf("api key or secret missing"))
	}
	if err := p.pacer.Wait(ctx); err != nil {
		return Quote{}, newProviderError(AlpacaName, symbol, ErrNetwork, err)
	}

	trade, err := p.client.GetLatestTrade(stripExchangeSuffix(symbol), marketdata.GetLatestTradeRequest{})
	if err != nil {
		return Quote{}, newProviderError(AlpacaName, symbol, ErrNetwork, err)
	}
	if trade == nil || trade.Price <= 0 {
		return Quote{}, newProviderError(AlpacaName, symbol, ErrData, fmt.Errorf("no trade found"))
	}

	quote := Quote{Symbol: symbol, Price: trade.Price}
	if trade.Size > 0 {
		quote.Volume = int64Ptr(int64(trade.Size))
	}
	p.cache.Set(symbol, quote, 0)
	return quote, nil
}

func (p *Alpaca) GetMultipleQuotes(ctx context.Context, symbols []string) map[string]Quote {
	return fetchSequential(ctx, AlpacaName, symbols, p.GetQuote)
}

func (p *Alpaca) ClearCache(symbol string) {
	if symbol == "" {
		p.cache.Flush()
		return
	}
	p.cache.Invalidate(symbol)
}
