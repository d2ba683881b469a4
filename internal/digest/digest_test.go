package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-dashboard/internal/market"
	"portfolio-dashboard/internal/portfolio"
	"portfolio-dashboard/internal/push/dingtalk"
	"portfolio-dashboard/internal/store"
)

type fakeSender struct {
	mu         sync.Mutex
	configured bool
	resp       *dingtalk.Response
	err        error
	sent       []string
}

func (f *fakeSender) Configured() bool { return f.configured }

func (f *fakeSender) SendMarkdown(_ context.Context, _, markdown string) (*dingtalk.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, markdown)
	return f.resp, f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []store.DigestRecord
}

func (f *fakeRecorder) InsertDigest(_ context.Context, d store.DigestRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, d)
	return int64(len(f.recs)), nil
}

type snapshotFunc func(ctx context.Context) (portfolio.Snapshot, error)

func (f snapshotFunc) Snapshot(ctx context.Context) (portfolio.Snapshot, error) { return f(ctx) }

func testSnapshot(t *testing.T) snapshotFunc {
	t.Helper()
	h := func(sym, price string, qty int64, sector string) portfolio.Holding {
		return portfolio.Holding{Symbol: sym, Name: sym, PurchasePrice: decimal.RequireFromString(price), Quantity: qty, Exchange: "NSE", Sector: sector}
	}
	snap, err := portfolio.NewEngine(nil).Value(context.Background(),
		[]portfolio.Holding{h("AAA", "100", 10, "Tech"), h("BBB", "50", 10, "Energy"), h("CCC", "10", 1, "Energy")},
		map[string]market.Quote{"AAA": {Symbol: "AAA", Price: 120}, "BBB": {Symbol: "BBB", Price: 40}})
	require.NoError(t, err)
	snap.Source = "yahoo_finance"
	return func(context.Context) (portfolio.Snapshot, error) { return snap, nil }
}

func TestBuildMarkdown(t *testing.T) {
	snap, _ := testSnapshot(t)(context.Background())
	md := BuildMarkdown(snap, "INR")

	assert.Contains(t, md, "### Portfolio Digest")
	assert.Contains(t, md, "- Investment: ₹1,510.00")
	assert.Contains(t, md, "- Present value: ₹1,600.00")
	assert.Contains(t, md, "- Source: yahoo_finance")
	assert.Contains(t, md, "- Tech: ₹1,200.00 (₹200.00)")
	assert.Contains(t, md, "**Top gainers**\n\n- AAA ₹200.00\n")
	assert.Contains(t, md, "**Top losers**\n\n- BBB -₹100.00\n")
	assert.NotContains(t, md, "CCC", "unpriced holdings are not movers")
}

func TestSendDelivers(t *testing.T) {
	sender := &fakeSender{configured: true, resp: &dingtalk.Response{ErrCode: 0, ErrMsg: "ok"}}
	rec := &fakeRecorder{}
	n := NewNotifier(testSnapshot(t), sender, rec, "INR")

	res, err := n.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)
	assert.Equal(t, 1, sender.count())
	require.Len(t, rec.recs, 1)
	assert.Equal(t, "sent", rec.recs[0].Status)
	assert.Equal(t, Channel, rec.recs[0].Channel)
	assert.Equal(t, res.Markdown, rec.recs[0].PayloadMD)
}

func TestSendSkippedWithoutWebhook(t *testing.T) {
	sender := &fakeSender{configured: false}
	rec := &fakeRecorder{}
	n := NewNotifier(testSnapshot(t), sender, rec, "INR")

	res, err := n.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, 0, sender.count())
	require.Len(t, rec.recs, 1)
	assert.Equal(t, "skipped", rec.recs[0].Status)
}

func TestSendRejected(t *testing.T) {
	sender := &fakeSender{
		configured: true,
		resp:       &dingtalk.Response{ErrCode: 310000, ErrMsg: "sign not match"},
		err:        &dingtalk.APIError{Code: 310000, Msg: "sign not match"},
	}
	rec := &fakeRecorder{}
	n := NewNotifier(testSnapshot(t), sender, rec, "INR")

	res, err := n.Send(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 310000, res.ErrCode)
	assert.Equal(t, 310000, rec.recs[0].ErrCode)
}

func TestSendSnapshotError(t *testing.T) {
	boom := errors.New("invariant")
	n := NewNotifier(snapshotFunc(func(context.Context) (portfolio.Snapshot, error) {
		return portfolio.Snapshot{}, boom
	}), &fakeSender{configured: true}, nil, "INR")

	res, err := n.Send(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestRunSendsOnInterval(t *testing.T) {
	sender := &fakeSender{configured: true, resp: &dingtalk.Response{}}
	n := NewNotifier(testSnapshot(t), sender, nil, "INR")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sender.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunZeroIntervalReturns(t *testing.T) {
	n := NewNotifier(testSnapshot(t), &fakeSender{}, nil, "INR")
	n.Run(context.Background(), 0)
}

func TestSendSuppressesRepeatWithinWindow(t *testing.T) {
	sender := &fakeSender{configured: true, resp: &dingtalk.Response{}}
	rec := &fakeRecorder{}
	n := NewNotifier(testSnapshot(t), sender, rec, "INR")
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	n.SetDedupWindow(time.Hour)

	res, err := n.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)

	now = now.Add(30 * time.Minute)
	res, err = n.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSuppressed, res.Status)
	assert.Equal(t, 1, sender.count())

	now = now.Add(31 * time.Minute)
	res, err = n.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)
	assert.Equal(t, 2, sender.count())
	assert.Len(t, rec.recs, 3)
}
