package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localLimiterIdleTTL = 10 * time.Minute

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter keeps one token bucket per key in process memory. It is
// used when no Redis is configured, so limits are per instance.
type LocalRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*localBucket
	lastCleanup time.Time
	now         func() time.Time
}

func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

// CheckLimit allows limit requests per window with bursts up to limit.
func (l *LocalRateLimiter) CheckLimit(
	_ context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	now := l.now()
	if limit <= 0 || window <= 0 {
		return false, now.Add(window)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(now)

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &localBucket{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now

	reservation := bucket.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, now.Add(delay)
	}
	return true, now.Add(window)
}

func (l *LocalRateLimiter) cleanup(now time.Time) {
	if l.lastCleanup.IsZero() {
		l.lastCleanup = now
		return
	}
	if now.Sub(l.lastCleanup) < localLimiterIdleTTL {
		return
	}
	l.lastCleanup = now

	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > localLimiterIdleTTL {
			delete(l.buckets, key)
		}
	}
}
