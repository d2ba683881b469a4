// Package app wires the store, quote providers and services from config.
package app

import (
	"context"
	"fmt"
	"time"

	"portfolio-dashboard/internal/config"
	"portfolio-dashboard/internal/digest"
	"portfolio-dashboard/internal/insight"
	"portfolio-dashboard/internal/logger"
	"portfolio-dashboard/internal/market"
	"portfolio-dashboard/internal/portfolio"
	"portfolio-dashboard/internal/push/dingtalk"
	"portfolio-dashboard/internal/store"
)

type App struct {
	Config    *config.Config
	Store     *store.Store
	Quotes    *market.Chain
	Portfolio *portfolio.Service
	Insight   *insight.Agent
	Dingtalk  *dingtalk.Client
	Digest    *digest.Notifier
}

// Build opens the store, seeds the sample portfolio into an empty one and
// assembles the services.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.Store.Sqlite.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	n, err := st.Seed(ctx, portfolio.SampleHoldings())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed holdings: %w", err)
	}
	if n > 0 {
		logger.L.Info("sample portfolio loaded", "holdings", n)
	}

	chain, yahoo := buildQuotes(cfg.Market)

	var earnings portfolio.EarningsLookup
	if !cfg.Market.UseMockData && cfg.Market.EarningsEnabled {
		earnings = yahoo
	}
	svc := portfolio.NewService(st, chain, portfolio.NewEngine(earnings))

	ic := cfg.Insight
	agent := insight.New(insight.Config{
		Enabled:    ic.Enabled,
		Model:      ic.Model,
		APIKey:     ic.APIKey,
		BaseURL:    ic.BaseURL,
		ByAzure:    ic.ByAzure,
		APIVersion: ic.APIVersion,
		Timeout:    config.Millis(ic.TimeoutMs),
	})

	dt := dingtalk.NewClient(
		cfg.Push.Dingtalk.Webhook,
		cfg.Push.Dingtalk.Secret,
		config.Millis(cfg.Push.Dingtalk.TimeoutMs),
	)

	mode := "live"
	if chain.UseMock() {
		mode = market.MockName
	}
	names := make([]string, 0, len(chain.Providers()))
	for _, p := range chain.Providers() {
		names = append(names, p.Name())
	}
	logger.L.Info("quote chain ready", "mode", mode, "providers", names)

	notifier := digest.NewNotifier(svc, dt, st, cfg.Market.Currency)
	notifier.SetDedupWindow(config.Seconds(cfg.Push.DigestDedupSec))

	return &App{
		Config:    cfg,
		Store:     st,
		Quotes:    chain,
		Portfolio: svc,
		Insight:   agent,
		Dingtalk:  dt,
		Digest:    notifier,
	}, nil
}

func buildQuotes(mc config.MarketConfig) (*market.Chain, *market.Yahoo) {
	quoteTTL := orDefault(config.Seconds(mc.Cache.QuoteTTLSec), market.DefaultQuoteTTL)
	earningsTTL := orDefault(config.Seconds(mc.Cache.EarningsTTLSec), market.DefaultEarningsTTL)

	av := market.NewAlphaVantage(market.AlphaVantageConfig{
		APIKey:  mc.AlphaVantage.APIKey,
		BaseURL: mc.AlphaVantage.BaseURL,
		Timeout: config.Millis(mc.AlphaVantage.TimeoutMs),
	}, market.NewCache[market.Quote](quoteTTL),
		market.NewPacer(orDefault(config.Millis(mc.AlphaVantage.MinIntervalMs), market.AlphaVantageMinInterval)))

	gf := market.NewGoogleFinance(market.GoogleFinanceConfig{
		BaseURL: mc.Google.BaseURL,
		Timeout: config.Millis(mc.Google.TimeoutMs),
	}, market.NewCache[market.Quote](quoteTTL),
		market.NewPacer(orDefault(config.Millis(mc.Google.StaggerMs), market.GoogleFinanceStagger)))

	yf := market.NewYahoo(market.YahooConfig{
		BaseURL:     mc.Yahoo.BaseURL,
		Timeout:     config.Millis(mc.Yahoo.TimeoutMs),
		Currency:    mc.Currency,
		EarningsTTL: earningsTTL,
	}, market.NewCache[market.Quote](quoteTTL),
		market.NewCache[string](earningsTTL),
		market.NewPacer(orDefault(config.Millis(mc.Yahoo.StaggerMs), market.YahooStagger)))

	providers := []market.Provider{av, gf, yf}
	if mc.Alpaca.Enabled {
		providers = append(providers, market.NewAlpaca(market.AlpacaConfig{
			APIKey:    mc.Alpaca.APIKey,
			APISecret: mc.Alpaca.APISecret,
			BaseURL:   mc.Alpaca.BaseURL,
		}, market.NewCache[market.Quote](quoteTTL),
			market.NewPacer(orDefault(config.Millis(mc.Alpaca.MinIntervalMs), market.AlpacaMinInterval))))
	}

	return market.NewChain(mc.UseMockData, market.NewMockSource(), providers...), yf
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
