// ABOUTME: Rate Limiter: per-(publisher, message type) token bucket built on golang.org/x/time/rate
// ABOUTME: Buckets are created lazily via sync.Map and evicted after an idle TTL, grounded on the donor-adjacent ClientLimiter pattern

package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// BucketConfig describes one token bucket's refill rate and burst size.
type BucketConfig struct {
	TokensPerSecond float64
	BurstSize       int
}

// Config is the Rate Limiter's full configuration: a default bucket shape
// plus per-message-type overrides.
type Config struct {
	Default BucketConfig
	PerType map[string]BucketConfig
}

type bucket struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nanoseconds
}

// Limiter is the Rate Limiter component. TryAcquire is safe for concurrent
// use by many publish handlers.
type Limiter struct {
	cfg     Config
	buckets sync.Map // string -> *bucket
}

// New constructs a Limiter from config.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg}
}

func bucketKey(publisherID, messageType string) string {
	return fmt.Sprintf("%s\x00%s", publisherID, messageType)
}

func (l *Limiter) configFor(messageType string) BucketConfig {
	if cfg, ok := l.cfg.PerType[messageType]; ok {
		return cfg
	}
	return l.cfg.Default
}

func (l *Limiter) getOrCreate(key string, cfg BucketConfig) *bucket {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*bucket)
	}
	b := &bucket{limiter: rate.NewLimiter(rate.Limit(cfg.TokensPerSecond), cfg.BurstSize)}
	actual, _ := l.buckets.LoadOrStore(key, b)
	return actual.(*bucket)
}

// TryAcquire attempts to take one token from the (publisherID, messageType)
// bucket without blocking. On denial, retryAfter estimates the wait until a
// token becomes available.
func (l *Limiter) TryAcquire(publisherID, messageType string) (allowed bool, retryAfter time.Duration) {
	cfg := l.configFor(messageType)
	b := l.getOrCreate(bucketKey(publisherID, messageType), cfg)
	now := time.Now()
	b.lastUsed.Store(now.UnixNano())

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

// EvictIdle removes buckets that have not been used within ttl. Intended to
// be called periodically by the lifecycle supervisor so long-running
// processes don't accumulate one bucket per transient publisher forever.
func (l *Limiter) EvictIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl).UnixNano()
	evicted := 0
	l.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		if b.lastUsed.Load() < cutoff {
			l.buckets.Delete(key)
			evicted++
		}
		return true
	})
	return evicted
}

// BucketCount returns the number of live buckets. Used by tests and the
// Statistics endpoint.
func (l *Limiter) BucketCount() int {
	count := 0
	l.buckets.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
