package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

const (
	AlphaVantageName           = "alpha_vantage"
	AlphaVantageBaseURL        = "https://www.alphavantage.co/query"
	AlphaVantageMinInterval    = 12 * time.Second
	alphaVantagePricePath      = `$["Global Quote"]["05. price"]`
	alphaVantageVolumePath     = `$["Global Quote"]["06. volume"]`
	alphaVantageThrottleMarker = "call frequency"
)

type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AlphaVantage reads the GLOBAL_QUOTE endpoint. The free tier allows five
// calls a minute, so batches run sequentially through the pacer.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cache   *Cache[Quote]
	pacer   *Pacer
}

var (
	_ Provider     = (*AlphaVantage)(nil)
	_ Configurable = (*AlphaVantage)(nil)
)

func NewAlphaVantage(cfg AlphaVantageConfig, cache *Cache[Quote], pacer *Pacer) *AlphaVantage {
	if cfg.BaseURL == "" {
		cfg.BaseURL = AlphaVantageBaseURL
	}
	if cache == nil {
		cache = NewCache[Quote](DefaultQuoteTTL)
	}
	if pacer == nil {
		pacer = NewPacer(AlphaVantageMinInterval)
	}
	return &AlphaVantage{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: cfg.BaseURL,
		client:  newHTTPClient(cfg.Timeout),
		cache:   cache,
		pacer:   pacer,
	}
}

func (p *AlphaVantage) Name() string { return AlphaVantageName }

func (p *AlphaVantage) Configured() bool { return p.apiKey != "" }

func (p *AlphaVantage) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	if q, ok := p.cache.Get(symbol); ok {
		return q, nil
	}
	if !p.Configured() {
		return Quote{}, newProviderError(AlphaVantageName, symbol, ErrNotConfigured, fmt.Errorf("api key missing"))
	}
	if err := p.pacer.Wait(ctx); err != nil {
		return Quote{}, newProviderError(AlphaVantageName, symbol, ErrNetwork, err)
	}

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return Quote{}, newProviderError(AlphaVantageName, symbol, ErrNetwork, fmt.Errorf("invalid base url: %w", err))
	}
	q := u.Query()
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", stripExchangeSuffix(symbol))
	q.Set("apikey", p.apiKey)
	u.RawQuery = q.Encode()

	var payload any
	if kind, err := getJSON(ctx, p.client, u.String(), &payload); err != nil {
		return Quote{}, newProviderError(AlphaVantageName, symbol, kind, err)
	}

	quote, err := parseAlphaVantage(symbol, payload)
	if err != nil {
		return Quote{}, err
	}
	p.cache.Set(symbol, quote, 0)
	return quote, nil
}

func (p *AlphaVantage) GetMultipleQuotes(ctx context.Context, symbols []string) map[string]Quote {
	return fetchSequential(ctx, AlphaVantageName, symbols, p.GetQuote)
}

func (p *AlphaVantage) ClearCache(symbol string) {
	if symbol == "" {
		p.cache.Flush()
		return
	}
	p.cache.Invalidate(symbol)
}

func parseAlphaVantage(symbol string, payload any) (Quote, error) {
	fail := func(kind error, format string, args ...any) (Quote, error) {
		return Quote{}, newProviderError(AlphaVantageName, symbol, kind, fmt.Errorf(format, args...))
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return fail(ErrData, "unexpected payload %T", payload)
	}
	if note, _ := obj["Note"].(string); strings.Contains(note, alphaVantageThrottleMarker) {
		return fail(ErrQuotaExceeded, "%s", truncate(note, 120))
	}
	if info, _ := obj["Information"].(string); strings.Contains(strings.ToLower(info), "rate limit") {
		return fail(ErrQuotaExceeded, "%s", truncate(info, 120))
	}
	if msg, _ := obj["Error Message"].(string); msg != "" {
		return fail(ErrData, "%s", truncate(msg, 120))
	}

	raw, err := jsonpath.Get(alphaVantagePricePath, obj)
	if err != nil {
		return fail(ErrData, "no data available")
	}
	price, err := parseNumber(raw)
	if err != nil {
		return fail(ErrData, "parse price: %w", err)
	}
	if price <= 0 {
		return fail(ErrData, "invalid price %v", price)
	}

	quote := Quote{Symbol: symbol, Price: price}
	if raw, err := jsonpath.Get(alphaVantageVolumePath, obj); err == nil {
		if v, err := parseNumber(raw); err == nil && v > 0 {
			quote.Volume = int64Ptr(int64(v))
		}
	}
	return quote, nil
}

// parseNumber accepts the string-encoded numbers Alpha Vantage returns as
// well as plain JSON numbers.
func parseNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("not a number: %v", raw)
	}
}
