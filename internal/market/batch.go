package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"portfolio-dashboard/internal/logger"
)

type fetchFunc func(ctx context.Context, symbol string) (Quote, error)

// gatedFetchFunc is a fetch that calls proceed once its pacer slot is granted
// and gives up with errBatchStopped when proceed reports false.
type gatedFetchFunc func(ctx context.Context, symbol string, proceed func() bool) (Quote, error)

var errBatchStopped = errors.New("batch stopped after quota signal")

// fetchSequential resolves symbols one at a time, so symbol N+1 never starts
// before symbol N is resolved. Once upstream signals a quota breach the rest
// of the batch is filled with placeholders without further calls.
func fetchSequential(ctx context.Context, provider string, symbols []string, fetch fetchFunc) map[string]Quote {
	out := make(map[string]Quote, len(symbols))
	throttled := false
	for _, sym := range symbols {
		if throttled || ctx.Err() != nil {
			out[sym] = Placeholder(sym)
			continue
		}
		q, err := fetch(ctx, sym)
		if err != nil {
			logFailure(provider, sym, err)
			if errors.Is(err, ErrQuotaExceeded) {
				throttled = true
			}
			out[sym] = Placeholder(sym)
			continue
		}
		out[sym] = q
	}
	logBatch(provider, out, len(symbols))
	return out
}

// fetchStaggered resolves symbols concurrently. Start times are spaced by the
// provider's pacer inside fetch, so requests overlap in flight. A quota signal
// stops every request still queued behind the pacer.
func fetchStaggered(ctx context.Context, provider string, symbols []string, fetch gatedFetchFunc) map[string]Quote {
	out := make(map[string]Quote, len(symbols))
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		throttled atomic.Bool
	)
	proceed := func() bool { return !throttled.Load() && ctx.Err() == nil }
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			q := Placeholder(sym)
			if proceed() {
				got, err := fetch(ctx, sym, proceed)
				switch {
				case errors.Is(err, errBatchStopped):
				case err != nil:
					logFailure(provider, sym, err)
					if errors.Is(err, ErrQuotaExceeded) {
						throttled.Store(true)
					}
				default:
					q = got
				}
			}
			mu.Lock()
			out[sym] = q
			mu.Unlock()
		}(sym)
	}
	wg.Wait()
	logBatch(provider, out, len(symbols))
	return out
}

func logFailure(provider, symbol string, err error) {
	kind := kindOf(err)
	if kind == "quota" {
		logger.L.Warn("provider quota exceeded", "provider", provider, "symbol", symbol, "kind", kind, "error", err)
		return
	}
	logger.L.Info("quote fetch failed", "provider", provider, "symbol", symbol, "kind", kind, "error", err)
}

func logBatch(provider string, out map[string]Quote, requested int) {
	logger.L.Info("provider batch completed", "provider", provider, "valid", countValid(out), "requested", requested)
}
