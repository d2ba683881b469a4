package market

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces calls to one upstream: Wait returns only once at least
// interval has passed since the previous permitted call. A zero interval
// never blocks.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPacer(interval time.Duration) *Pacer {
	if interval < 0 {
		interval = 0
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until the caller may issue its request. It returns the
// context's error if ctx ends first; the reserved slot is then released.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval == 0 {
		return ctx.Err()
	}
	now := p.now()
	r := p.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if err := p.sleep(ctx, delay); err != nil {
		r.CancelAt(p.now())
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
