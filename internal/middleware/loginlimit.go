package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/openclaw/account-server-go/internal/audit"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/redis"
	"github.com/openclaw/account-server-go/internal/util"
)

// RateLimiter is satisfied by *service.RateLimiter and
// *service.LocalRateLimiter.
type RateLimiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time)
}

// LoginRateLimiter throttles login attempts per client address.
type LoginRateLimiter struct {
	limiter RateLimiter
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewLoginRateLimiter(limiter RateLimiter, limit int, window time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := util.ClientIP(r)

		allowed, resetAt := l.limiter.CheckLimit(r.Context(), redis.LoginLimitKey(ip), l.limit, l.window)
		if !allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds(resetAt.Sub(l.now()))))
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
