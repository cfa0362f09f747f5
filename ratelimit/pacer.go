package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces requests per key (tenant) so that the provider's per-minute quota is
// rarely hit in the first place. A nil *Pacer or a zero rate never waits.
type Pacer struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPacer allows perMinute requests per key, with bursts up to perMinute/6 (10s worth).
func NewPacer(perMinute int) *Pacer {
	if perMinute <= 0 {
		return nil
	}
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &Pacer{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *Pacer) Wait(ctx context.Context, key string) error {
	if p == nil {
		return nil
	}
	return p.limiter(key).Wait(ctx)
}

func (p *Pacer) limiter(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[key] = l
	}
	return l
}
