package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	YahooName    = "yahoo_finance"
	YahooBaseURL = "https://query1.finance.yahoo.com"
	YahooStagger = 500 * time.Millisecond
)

type YahooConfig struct {
	BaseURL     string
	Timeout     time.Duration
	Currency    string
	EarningsTTL time.Duration
}

type yahooQuoteResp struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
		Error  any                `json:"error"`
	} `json:"quoteResponse"`
}

type yahooQuoteResult struct {
	Symbol                  string   `json:"symbol"`
	Currency                string   `json:"currency"`
	RegularMarketPrice      float64  `json:"regularMarketPrice"`
	RegularMarketVolume     *int64   `json:"regularMarketVolume"`
	TrailingPE              *float64 `json:"trailingPE"`
	MarketCap               *float64 `json:"marketCap"`
	EpsTrailingTwelveMonths *float64 `json:"epsTrailingTwelveMonths"`
}

// Yahoo reads the v7 quote endpoint, which understands portfolio symbols
// as-is. It also serves the trailing EPS annotation used to enrich holdings.
type Yahoo struct {
	baseURL     string
	currency    string
	earningsTTL time.Duration
	client      *http.Client
	quotes      *Cache[Quote]
	earnings    *Cache[string]
	pacer       *Pacer
}

var _ Provider = (*Yahoo)(nil)

func NewYahoo(cfg YahooConfig, quotes *Cache[Quote], earnings *Cache[string], pacer *Pacer) *Yahoo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = YahooBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = money.INR
	}
	if cfg.EarningsTTL <= 0 {
		cfg.EarningsTTL = DefaultEarningsTTL
	}
	if quotes == nil {
		quotes = NewCache[Quote](DefaultQuoteTTL)
	}
	if earnings == nil {
		earnings = NewCache[string](cfg.EarningsTTL)
	}
	if pacer == nil {
		pacer = NewPacer(YahooStagger)
	}
	return &Yahoo{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		currency:    cfg.Currency,
		earningsTTL: cfg.EarningsTTL,
		client:      newHTTPClient(cfg.Timeout),
		quotes:      quotes,
		earnings:    earnings,
		pacer:       pacer,
	}
}

func (p *Yahoo) Name() string { return YahooName }

func (p *Yahoo) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	return p.quote(ctx, symbol, nil)
}

func (p *Yahoo) quote(ctx context.Context, symbol string, proceed func() bool) (Quote, error) {
	if q, ok := p.quotes.Get(symbol); ok {
		return q, nil
	}
	if err := p.pacer.Wait(ctx); err != nil {
		return Quote{}, newProviderError(YahooName, symbol, ErrNetwork, err)
	}
	if proceed != nil && !proceed() {
		return Quote{}, errBatchStopped
	}

	res, err := p.fetch(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	if res.RegularMarketPrice <= 0 {
		return Quote{}, newProviderError(YahooName, symbol, ErrData, fmt.Errorf("no market price"))
	}

	quote := Quote{
		Symbol:    symbol,
		Price:     res.RegularMarketPrice,
		PERatio:   res.TrailingPE,
		MarketCap: res.MarketCap,
		Volume:    res.RegularMarketVolume,
	}
	p.quotes.Set(symbol, quote, 0)
	return quote, nil
}

func (p *Yahoo) GetMultipleQuotes(ctx context.Context, symbols []string) map[string]Quote {
	return fetchStaggered(ctx, YahooName, symbols, p.quote)
}

// GetEarnings returns trailing twelve month EPS formatted in the quote's
// currency, e.g. "₹63.39". An empty string with a nil error means Yahoo has
// no figure for the symbol; a zero EPS counts as none. Only present figures are cached.
func (p *Yahoo) GetEarnings(ctx context.Context, symbol string) (string, error) {
	if s, ok := p.earnings.Get(symbol); ok {
		return s, nil
	}
	res, err := p.fetch(ctx, symbol)
	if err != nil {
		return "", err
	}
	if res.EpsTrailingTwelveMonths == nil || *res.EpsTrailingTwelveMonths == 0 {
		return "", nil
	}
	cur := res.Currency
	if cur == "" {
		cur = p.currency
	}
	s := FormatMoney(*res.EpsTrailingTwelveMonths, cur)
	p.earnings.Set(symbol, s, p.earningsTTL)
	return s, nil
}

func (p *Yahoo) ClearCache(symbol string) {
	if symbol == "" {
		p.quotes.Flush()
		p.earnings.Flush()
		return
	}
	p.quotes.Invalidate(symbol)
	p.earnings.Invalidate(symbol)
}

func (p *Yahoo) fetch(ctx context.Context, symbol string) (yahooQuoteResult, error) {
	u, err := url.Parse(p.baseURL + "/v7/finance/quote")
	if err != nil {
		return yahooQuoteResult{}, newProviderError(YahooName, symbol, ErrNetwork, fmt.Errorf("invalid base url: %w", err))
	}
	q := u.Query()
	q.Set("symbols", symbol)
	u.RawQuery = q.Encode()

	var payload yahooQuoteResp
	if kind, err := getJSON(ctx, p.client, u.String(), &payload); err != nil {
		return yahooQuoteResult{}, newProviderError(YahooName, symbol, kind, err)
	}
	if payload.QuoteResponse.Error != nil || len(payload.QuoteResponse.Result) == 0 {
		return yahooQuoteResult{}, newProviderError(YahooName, symbol, ErrData, fmt.Errorf("no result (error=%v)", payload.QuoteResponse.Error))
	}
	return payload.QuoteResponse.Result[0], nil
}

// FormatMoney renders amount with the currency's symbol and precision. Unknown
// currency codes fall back to "CODE 12.34".
func FormatMoney(amount float64, currency string) string {
	return FormatDecimal(decimal.NewFromFloat(amount), currency)
}

func FormatDecimal(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return fmt.Sprintf("%s %s", currency, amount.StringFixed(2))
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
