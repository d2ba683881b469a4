package digest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-dashboard/internal/logger"
	"portfolio-dashboard/internal/market"
	"portfolio-dashboard/internal/portfolio"
	"portfolio-dashboard/internal/push/dingtalk"
	"portfolio-dashboard/internal/store"
)

const (
	Channel = "dingtalk"
	title   = "Portfolio Digest"
	topN    = 3
)

type Status string

const (
	StatusSent       Status = "sent"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
	StatusSuppressed Status = "suppressed"
)

type Sender interface {
	Configured() bool
	SendMarkdown(ctx context.Context, title, markdown string) (*dingtalk.Response, error)
}

type Recorder interface {
	InsertDigest(ctx context.Context, d store.DigestRecord) (int64, error)
}

type SnapshotSource interface {
	Snapshot(ctx context.Context) (portfolio.Snapshot, error)
}

type Result struct {
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	ErrCode  int    `json:"dingtalk_errcode,omitempty"`
	ErrMsg   string `json:"dingtalk_errmsg,omitempty"`
	Markdown string `json:"markdown"`
}

// Notifier pushes a snapshot digest to DingTalk and records every attempt.
type Notifier struct {
	snapshots SnapshotSource
	sender    Sender
	recorder  Recorder
	currency  string
	now       func() time.Time

	dedupWindow time.Duration
	mu          sync.Mutex
	lastKey     string
	lastSent    time.Time
}

func NewNotifier(snapshots SnapshotSource, sender Sender, recorder Recorder, currency string) *Notifier {
	return &Notifier{
		snapshots: snapshots,
		sender:    sender,
		recorder:  recorder,
		currency:  currency,
		now:       time.Now,
	}
}

// SetDedupWindow suppresses a digest whose content matches the last delivered
// one within d. Zero disables it.
func (n *Notifier) SetDedupWindow(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dedupWindow = d
}

// Send builds and pushes one digest. Without a configured sender the digest
// is still built and recorded as skipped.
func (n *Notifier) Send(ctx context.Context) (Result, error) {
	snap, err := n.snapshots.Snapshot(ctx)
	if err != nil {
		return Result{Status: StatusFailed, Error: err.Error()}, fmt.Errorf("snapshot: %w", err)
	}
	res := Result{Markdown: BuildMarkdown(snap, n.currency)}
	key := dedupKey(snap, n.currency)

	var sendErr error
	if n.isDuplicate(key) {
		res.Status = StatusSuppressed
	} else if n.sender == nil || !n.sender.Configured() {
		res.Status = StatusSkipped
		res.Error = dingtalk.ErrNotConfigured.Error()
	} else {
		resp, err := n.sender.SendMarkdown(ctx, title, res.Markdown)
		if resp != nil {
			res.ErrCode, res.ErrMsg = resp.ErrCode, resp.ErrMsg
		}
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			sendErr = err
			var apiErr *dingtalk.APIError
			if errors.As(err, &apiErr) {
				logger.L.Error("digest rejected", "errcode", apiErr.Code, "errmsg", apiErr.Msg)
			} else {
				logger.L.Error("digest send failed", "error", err)
			}
		} else {
			res.Status = StatusSent
			n.markSent(key)
		}
	}

	n.record(ctx, res)
	return res, sendErr
}

// Run sends a digest every interval until ctx is done.
func (n *Notifier) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := n.Send(ctx)
			if err == nil {
				logger.L.Info("digest delivered", "status", res.Status)
			}
		}
	}
}

func (n *Notifier) isDuplicate(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dedupWindow <= 0 || n.lastKey != key {
		return false
	}
	return n.now().Sub(n.lastSent) <= n.dedupWindow
}

func (n *Notifier) markSent(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastKey, n.lastSent = key, n.now()
}

// dedupKey is the digest body without its timestamp line.
func dedupKey(s portfolio.Snapshot, currency string) string {
	s.LastUpdated = ""
	return BuildMarkdown(s, currency)
}

func (n *Notifier) record(ctx context.Context, res Result) {
	if n.recorder == nil {
		return
	}
	_, err := n.recorder.InsertDigest(ctx, store.DigestRecord{
		TS:        n.now().Unix(),
		Channel:   Channel,
		Status:    string(res.Status),
		ErrCode:   res.ErrCode,
		ErrMsg:    res.ErrMsg,
		PayloadMD: res.Markdown,
	})
	if err != nil {
		logger.L.Error("record digest failed", "error", err)
	}
}

// BuildMarkdown renders a compact digest: totals, sectors and the largest
// movers either way.
func BuildMarkdown(s portfolio.Snapshot, currency string) string {
	amt := func(d decimal.Decimal) string { return market.FormatDecimal(d, currency) }

	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", title)
	fmt.Fprintf(&b, "- Investment: %s\n", amt(s.TotalInvestment))
	fmt.Fprintf(&b, "- Present value: %s\n", amt(s.TotalPresentValue))
	fmt.Fprintf(&b, "- Gain/Loss: %s\n", amt(s.TotalGainLoss))
	if s.Source != "" {
		fmt.Fprintf(&b, "- Source: %s\n", s.Source)
	}

	if len(s.Sectors) > 0 {
		b.WriteString("\n**Sectors**\n\n")
		for _, sec := range s.Sectors {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", sec.Sector, amt(sec.TotalPresentValue), amt(sec.GainLoss))
		}
	}

	priced := make([]portfolio.ValuedHolding, 0, len(s.Stocks))
	for _, v := range s.Stocks {
		if v.CMP.IsPositive() {
			priced = append(priced, v)
		}
	}
	sort.SliceStable(priced, func(i, j int) bool { return priced[i].GainLoss.GreaterThan(priced[j].GainLoss) })
	if len(priced) > 0 {
		b.WriteString("\n**Top gainers**\n\n")
		for i := 0; i < len(priced) && i < topN && priced[i].GainLoss.IsPositive(); i++ {
			fmt.Fprintf(&b, "- %s %s\n", priced[i].Symbol, amt(priced[i].GainLoss))
		}
		b.WriteString("\n**Top losers**\n\n")
		for i, n := len(priced)-1, 0; i >= 0 && n < topN && priced[i].GainLoss.IsNegative(); i, n = i-1, n+1 {
			fmt.Fprintf(&b, "- %s %s\n", priced[i].Symbol, amt(priced[i].GainLoss))
		}
	}

	fmt.Fprintf(&b, "\n> Updated %s\n", s.LastUpdated)
	return b.String()
}
