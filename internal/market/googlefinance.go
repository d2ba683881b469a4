package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	GoogleFinanceName    = "google_finance"
	GoogleFinanceBaseURL = "https://finance.google.com/finance/historical"
	GoogleFinanceStagger = time.Second
)

type GoogleFinanceConfig struct {
	BaseURL string
	Timeout time.Duration
}

type googleHistoryResp struct {
	Symbol string             `json:"symbol"`
	Prices []googleHistoryBar `json:"prices"`
}

type googleHistoryBar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// GoogleFinance reads the last daily close from a historical endpoint keyed
// by EXCHANGE:BASE symbols. It has no documented quota; requests are only
// staggered.
type GoogleFinance struct {
	baseURL string
	client  *http.Client
	cache   *Cache[Quote]
	pacer   *Pacer
	now     func() time.Time
}

var _ Provider = (*GoogleFinance)(nil)

func NewGoogleFinance(cfg GoogleFinanceConfig, cache *Cache[Quote], pacer *Pacer) *GoogleFinance {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GoogleFinanceBaseURL
	}
	if cache == nil {
		cache = NewCache[Quote](DefaultQuoteTTL)
	}
	if pacer == nil {
		pacer = NewPacer(GoogleFinanceStagger)
	}
	return &GoogleFinance{
		baseURL: cfg.BaseURL,
		client:  newHTTPClient(cfg.Timeout),
		cache:   cache,
		pacer:   pacer,
		now:     time.Now,
	}
}

func (p *GoogleFinance) Name() string { return GoogleFinanceName }

func (p *GoogleFinance) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	return p.quote(ctx, symbol, nil)
}

func (p *GoogleFinance) quote(ctx context.Context, symbol string, proceed func() bool) (Quote, error) {
	if q, ok := p.cache.Get(symbol); ok {
		return q, nil
	}
	if err := p.pacer.Wait(ctx); err != nil {
		return Quote{}, newProviderError(GoogleFinanceName, symbol, ErrNetwork, err)
	}
	if proceed != nil && !proceed() {
		return Quote{}, errBatchStopped
	}

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return Quote{}, newProviderError(GoogleFinanceName, symbol, ErrNetwork, fmt.Errorf("invalid base url: %w", err))
	}
	to := p.now()
	q := u.Query()
	q.Set("q", exchangePrefixed(symbol))
	q.Set("startdate", to.AddDate(0, 0, -1).Format(time.DateOnly))
	q.Set("enddate", to.Format(time.DateOnly))
	q.Set("output", "json")
	u.RawQuery = q.Encode()

	var payload googleHistoryResp
	if kind, err := getJSON(ctx, p.client, u.String(), &payload); err != nil {
		return Quote{}, newProviderError(GoogleFinanceName, symbol, kind, err)
	}
	if len(payload.Prices) == 0 {
		return Quote{}, newProviderError(GoogleFinanceName, symbol, ErrData, fmt.Errorf("empty history"))
	}
	last := payload.Prices[len(payload.Prices)-1]
	if last.Close <= 0 {
		return Quote{}, newProviderError(GoogleFinanceName, symbol, ErrData, fmt.Errorf("invalid close %v on %s", last.Close, last.Date))
	}

	quote := Quote{Symbol: symbol, Price: last.Close}
	p.cache.Set(symbol, quote, 0)
	return quote, nil
}

func (p *GoogleFinance) GetMultipleQuotes(ctx context.Context, symbols []string) map[string]Quote {
	return fetchStaggered(ctx, GoogleFinanceName, symbols, p.quote)
}

func (p *GoogleFinance) ClearCache(symbol string) {
	if symbol == "" {
		p.cache.Flush()
		return
	}
	p.cache.Invalidate(symbol)
}
