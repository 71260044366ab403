package limiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostTokenBucket throttles requests per host with a token-bucket limiter,
// layered in front of ConcurrentRateLimiter's fixed-delay/backoff clock: the
// delay clock enforces a minimum spacing between requests to one host, this
// enforces a maximum sustained rate across however many workers are
// fetching from that host concurrently.
type HostTokenBucket struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostTokenBucket builds a bucket handing out rps requests per second per
// host, with burst allowed above that rate.
func NewHostTokenBucket(rps float64, burst int) *HostTokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &HostTokenBucket{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (b *HostTokenBucket) limiterFor(host string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.limiters[host]
	if !ok {
		l = rate.NewLimiter(b.rps, b.burst)
		b.limiters[host] = l
	}
	return l
}

// Wait blocks until host has a token available or ctx is cancelled.
func (b *HostTokenBucket) Wait(ctx context.Context, host string) error {
	return b.limiterFor(host).Wait(ctx)
}
