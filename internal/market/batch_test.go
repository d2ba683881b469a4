package market

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchSequentialKeepsOrderAndFillsFailures(t *testing.T) {
	var calls []string
	fetch := func(_ context.Context, sym string) (Quote, error) {
		calls = append(calls, sym)
		if sym == "BAD" {
			return Quote{}, newProviderError("test", sym, ErrData, fmt.Errorf("empty"))
		}
		return Quote{Symbol: sym, Price: 10}, nil
	}

	out := fetchSequential(context.Background(), "test", []string{"A", "BAD", "C"}, fetch)

	assert.Equal(t, []string{"A", "BAD", "C"}, calls)
	assert.Len(t, out, 3)
	assert.Equal(t, Placeholder("BAD"), out["BAD"])
	assert.Equal(t, 10.0, out["C"].Price)
}

func TestFetchSequentialStopsAfterQuota(t *testing.T) {
	var calls int
	fetch := func(_ context.Context, sym string) (Quote, error) {
		calls++
		return Quote{}, newProviderError("test", sym, ErrQuotaExceeded, nil)
	}

	out := fetchSequential(context.Background(), "test", []string{"A", "B", "C"}, fetch)

	assert.Equal(t, 1, calls)
	assert.Len(t, out, 3)
	assert.Equal(t, 0, countValid(out))
}

func TestFetchStaggeredReturnsEverySymbol(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	fetch := func(_ context.Context, sym string, _ func() bool) (Quote, error) {
		mu.Lock()
		seen[sym]++
		mu.Unlock()
		if sym == "X" {
			return Quote{}, newProviderError("test", sym, ErrNetwork, fmt.Errorf("timeout"))
		}
		return Quote{Symbol: sym, Price: 1}, nil
	}

	symbols := []string{"A", "B", "X", "D"}
	out := fetchStaggered(context.Background(), "test", symbols, fetch)

	assert.Len(t, out, len(symbols))
	assert.Equal(t, 3, countValid(out))
	for _, s := range symbols {
		assert.Equal(t, 1, seen[s], s)
	}
}

func TestFetchCancelledContextYieldsPlaceholders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetch := func(_ context.Context, sym string) (Quote, error) {
		t.Errorf("unexpected fetch for %s", sym)
		return Quote{}, nil
	}

	gated := func(ctx context.Context, sym string, _ func() bool) (Quote, error) {
		return fetch(ctx, sym)
	}

	assert.Len(t, fetchSequential(ctx, "test", []string{"A", "B"}, fetch), 2)
	assert.Len(t, fetchStaggered(ctx, "test", []string{"A", "B"}, gated), 2)
}

func TestFetchStaggeredStopsQueuedCallsAfterQuota(t *testing.T) {
	var (
		mu    sync.Mutex
		lead  = true
		calls int
	)
	// Followers stand in for requests queued behind the pacer: they ask
	// proceed only once the leader's quota signal has landed.
	fetch := func(_ context.Context, sym string, proceed func() bool) (Quote, error) {
		mu.Lock()
		isLead := lead
		lead = false
		mu.Unlock()
		if !isLead {
			deadline := time.Now().Add(time.Second)
			for proceed() && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
		}
		if !proceed() {
			return Quote{}, errBatchStopped
		}
		mu.Lock()
		calls++
		mu.Unlock()
		return Quote{}, newProviderError("test", sym, ErrQuotaExceeded, nil)
	}

	symbols := []string{"A", "B", "C", "D", "E"}
	out := fetchStaggered(context.Background(), "test", symbols, fetch)

	assert.Len(t, out, len(symbols))
	assert.Equal(t, 0, countValid(out))
	assert.Equal(t, 1, calls)
}
