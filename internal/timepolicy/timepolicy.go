// Package timepolicy holds the expiry arithmetic for activation codes and
// sessions. Every function is pure and returns UTC.
package timepolicy

import (
	"time"

	"github.com/openclaw/account-server-go/internal/model"
)

const day = 24 * time.Hour

// DefaultRetention is how long expired or revoked sessions are kept.
const DefaultRetention = 7 * day

var baseDurations = map[model.CodeKind]time.Duration{
	model.CodeKindDay:       day,
	model.CodeKindMonth:     30 * day,
	model.CodeKindYear:      365 * day,
	model.CodeKindPermanent: 36500 * day,
}

// BaseDuration is the validity a code kind grants before grace.
func BaseDuration(kind model.CodeKind) (time.Duration, bool) {
	d, ok := baseDurations[kind]
	return d, ok
}

// Expiry returns activatedAt + BaseDuration(kind) + grace. Unknown kinds get
// no base duration.
func Expiry(kind model.CodeKind, activatedAt time.Time, grace time.Duration) time.Time {
	base, _ := BaseDuration(kind)
	return Normalize(activatedAt.Add(base).Add(grace))
}

// SessionExpiry is always measured from now, never from an earlier deadline.
func SessionExpiry(now time.Time, ttl time.Duration) time.Time {
	return Normalize(now.Add(ttl))
}

// NeedsRefresh reports whether less than threshold remains before expiresAt.
func NeedsRefresh(expiresAt, now time.Time, threshold time.Duration) bool {
	return expiresAt.Sub(now) < threshold
}

// RetentionCutoff is the instant before which stale sessions may be deleted.
// A non-positive retention falls back to DefaultRetention.
func RetentionCutoff(now time.Time, retention time.Duration) time.Time {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return Normalize(now.Add(-retention))
}

// Normalize converts t to UTC at microsecond precision, the finest both
// PostgreSQL and the SQLite text format keep.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Now is the default clock.
func Now() time.Time {
	return Normalize(time.Now())
}
