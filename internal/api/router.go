package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/google/uuid"

	"portfolio-dashboard/internal/digest"
	"portfolio-dashboard/internal/insight"
	"portfolio-dashboard/internal/logger"
	"portfolio-dashboard/internal/portfolio"
	"portfolio-dashboard/internal/store"
)

const (
	HeaderRequestID = "X-Request-ID"
	Version         = "1.0.0"
)

var requiredFields = []string{"symbol", "name", "purchasePrice", "quantity", "exchange", "sector"}

type Deps struct {
	Portfolio *portfolio.Service
	Insight   *insight.Agent
	Digest    *digest.Notifier
	Store     *store.Store
	Currency  string
	Started   time.Time
}

func RegisterRoutes(h *server.Hertz, d Deps) {
	if d.Started.IsZero() {
		d.Started = time.Now()
	}

	h.Use(requestLogger())
	h.NoRoute(func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": "Route not found"})
	})

	h.GET("/health", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]any{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(d.Started).Seconds(),
		})
	})

	h.GET("/", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]any{
			"message": "Portfolio Dashboard API",
			"version": Version,
			"endpoints": map[string]string{
				"health":      "/health",
				"portfolio":   "/api/portfolio",
				"holdings":    "/api/portfolio/holdings",
				"addStock":    "POST /api/portfolio/stock",
				"removeStock": "DELETE /api/portfolio/stock/:symbol",
				"updateStock": "PUT /api/portfolio/stock/:symbol",
				"quotes":      "/api/quotes?symbols=A,B",
				"clearCache":  "DELETE /api/portfolio/cache?symbol=",
				"insight":     "/api/portfolio/insight",
				"digest":      "POST /api/portfolio/digest",
				"digests":     "/api/portfolio/digests",
			},
		})
	})

	g := h.Group("/api/portfolio")

	g.GET("", func(ctx context.Context, c *app.RequestContext) {
		snap, err := d.Portfolio.Snapshot(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	g.GET("/holdings", func(ctx context.Context, c *app.RequestContext) {
		holdings, err := d.Portfolio.Holdings(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, holdings)
	})

	g.POST("/stock", func(ctx context.Context, c *app.RequestContext) {
		var req portfolio.Holding
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":       false,
				"error":    "invalid json body",
				"required": requiredFields,
			})
			return
		}
		added, err := d.Portfolio.Add(ctx, req)
		if err != nil {
			if errors.Is(err, portfolio.ErrInvalidHolding) {
				c.JSON(http.StatusBadRequest, map[string]any{
					"ok":       false,
					"error":    err.Error(),
					"required": requiredFields,
				})
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, map[string]any{
			"ok":      true,
			"message": "Stock added successfully",
			"stock":   added,
		})
	})

	g.DELETE("/stock/:symbol", func(ctx context.Context, c *app.RequestContext) {
		symbol := c.Param("symbol")
		if err := d.Portfolio.Remove(ctx, symbol); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"message": "Stock removed successfully",
			"symbol":  symbol,
		})
	})

	g.PUT("/stock/:symbol", func(ctx context.Context, c *app.RequestContext) {
		var upd portfolio.HoldingUpdate
		if err := c.BindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json body"})
			return
		}
		symbol := c.Param("symbol")
		updated, err := d.Portfolio.Update(ctx, symbol, upd)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"message": "Stock updated successfully",
			"symbol":  symbol,
			"stock":   updated,
		})
	})

	g.DELETE("/cache", func(_ context.Context, c *app.RequestContext) {
		symbol := strings.TrimSpace(c.Query("symbol"))
		d.Portfolio.ClearCache(symbol)
		cleared := symbol
		if cleared == "" {
			cleared = "all"
		}
		c.JSON(http.StatusOK, map[string]any{"ok": true, "cleared": cleared})
	})

	g.GET("/insight", func(ctx context.Context, c *app.RequestContext) {
		snap, err := d.Portfolio.Snapshot(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		out, err := d.Insight.Evaluate(ctx, snap, d.Currency)
		if err != nil {
			logger.L.Warn("insight fell back to rules", "error", err)
		}
		c.JSON(http.StatusOK, out)
	})

	g.POST("/digest", func(ctx context.Context, c *app.RequestContext) {
		if d.Digest == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"ok": false, "error": "digest not configured"})
			return
		}
		res, err := d.Digest.Send(ctx)
		if err != nil {
			c.JSON(http.StatusBadGateway, map[string]any{
				"ok":               false,
				"status":           res.Status,
				"error":            err.Error(),
				"dingtalk_errcode": res.ErrCode,
				"dingtalk_errmsg":  res.ErrMsg,
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{"ok": true, "status": res.Status, "markdown": res.Markdown})
	})

	g.GET("/digests", func(ctx context.Context, c *app.RequestContext) {
		if d.Store == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"ok": false, "error": "store not configured"})
			return
		}
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		recs, err := d.Store.RecentDigests(ctx, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, map[string]any{"ok": true, "items": recs})
	})

	h.GET("/api/quotes", func(ctx context.Context, c *app.RequestContext) {
		res, err := d.Portfolio.Quotes(ctx, parseSymbols(c.Query("symbols")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}

func requestLogger() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		id := strings.TrimSpace(c.Request.Header.Get(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)

		c.Next(ctx)

		logger.L.Info("request",
			"request_id", id,
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

func writeError(c *app.RequestContext, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, portfolio.ErrInvalidHolding):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.L.Error("request failed", "path", string(c.Path()), "error", err)
	}
	c.JSON(status, map[string]any{"ok": false, "error": err.Error()})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 20, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 200 {
		return 200, nil
	}
	return v, nil
}

// parseSymbols splits a comma separated list, dropping blanks and repeats.
func parseSymbols(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
