package main

import (
	"context"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/shopspring/decimal"

	"portfolio-dashboard/internal/api"
	"portfolio-dashboard/internal/app"
	"portfolio-dashboard/internal/config"
	"portfolio-dashboard/internal/logger"
)

func main() {
	cfg, err := config.Load("configs/app.yaml")
	if err != nil {
		logger.L.Error("config error", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level)
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.L.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L.Error("store close error", "error", err)
		}
	}()

	if iv := config.Seconds(cfg.Push.DigestIntervalSec); iv > 0 {
		go a.Digest.Run(ctx, iv)
	}

	h := server.Default(server.WithHostPorts(cfg.Addr()))
	api.RegisterRoutes(h, api.Deps{
		Portfolio: a.Portfolio,
		Insight:   a.Insight,
		Digest:    a.Digest,
		Store:     a.Store,
		Currency:  cfg.Market.Currency,
		Started:   time.Now(),
	})

	mode, reason := a.Insight.Mode()
	logger.L.Info("server starting",
		"addr", cfg.Addr(),
		"log_level", cfg.Log.Level,
		"mock_data", cfg.Market.UseMockData,
		"insight_mode", mode,
		"insight_reason", reason,
	)
	if err := h.Run(); err != nil {
		logger.L.Error("server run error", "error", err)
	}
}
