// Package ratelimit provides a keyed rate limiter using the token bucket
// algorithm. Keys are client addresses, so idle entries are swept
// periodically to keep the map bounded.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepInterval is how often idle limiters are evicted.
const sweepInterval = 10 * time.Minute

// clientLimiter pairs a limiter with its last use for eviction.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter manages per-key rate limiting. Each unique key gets its
// own independent token bucket.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new keyed rate limiter.
// rps: requests per second allowed per key.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		done:     make(chan struct{}),
	}

	go krl.sweep()

	return krl
}

// Allow reports whether a request for the given key should be admitted.
// Returns immediately without blocking.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	cl, ok := krl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.limiters[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// Stop shuts down the sweep goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

// sweep evicts limiters that have been idle for a full sweep interval. A
// fresh bucket is at full burst anyway, so eviction never admits more than a
// brand-new key would get.
func (krl *KeyedRateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case now := <-ticker.C:
			krl.mu.Lock()
			for key, cl := range krl.limiters {
				if now.Sub(cl.lastSeen) > sweepInterval {
					delete(krl.limiters, key)
				}
			}
			krl.mu.Unlock()
		}
	}
}
