package timepolicy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/account-server-go/internal/model"
)

func TestBaseDuration(t *testing.T) {
	tests := []struct {
		kind     model.CodeKind
		expected time.Duration
	}{
		{model.CodeKindDay, 24 * time.Hour},
		{model.CodeKindMonth, 30 * 24 * time.Hour},
		{model.CodeKindYear, 365 * 24 * time.Hour},
		{model.CodeKindPermanent, 36500 * 24 * time.Hour},
	}

	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			d, ok := BaseDuration(tc.kind)
			assert.True(t, ok)
			assert.Equal(t, tc.expected, d)
		})
	}

	_, ok := BaseDuration(model.CodeKind(42))
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	activatedAt := time.Date(2026, 1, 10, 8, 30, 0, 0, time.UTC)

	t.Run("month with two hours grace", func(t *testing.T) {
		got := Expiry(model.CodeKindMonth, activatedAt, 2*time.Hour)
		assert.Equal(t, activatedAt.Add(30*24*time.Hour+2*time.Hour), got)
	})

	t.Run("zero grace", func(t *testing.T) {
		got := Expiry(model.CodeKindDay, activatedAt, 0)
		assert.Equal(t, time.Date(2026, 1, 11, 8, 30, 0, 0, time.UTC), got)
	})

	t.Run("non-UTC input is normalized", func(t *testing.T) {
		zone := time.FixedZone("UTC+9", 9*60*60)
		local := activatedAt.In(zone)
		got := Expiry(model.CodeKindMonth, local, time.Hour)
		assert.Equal(t, time.UTC, got.Location())
		assert.True(t, got.Equal(activatedAt.Add(30*24*time.Hour+time.Hour)))
	})
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, now.Add(24*time.Hour), SessionExpiry(now, 24*time.Hour))
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 30, 0, 0, time.UTC)

	assert.True(t, NeedsRefresh(now.Add(30*time.Minute), now, time.Hour))
	assert.False(t, NeedsRefresh(now.Add(time.Hour), now, time.Hour))
	assert.False(t, NeedsRefresh(now.Add(2*time.Hour), now, time.Hour))
	assert.False(t, NeedsRefresh(now.Add(time.Minute), now, 0))
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 30, 0, 0, time.UTC)

	assert.Equal(t, now.Add(-72*time.Hour), RetentionCutoff(now, 72*time.Hour))
	assert.Equal(t, now.Add(-DefaultRetention), RetentionCutoff(now, 0))
	assert.Equal(t, now.Add(-DefaultRetention), RetentionCutoff(now, -time.Hour))
}

func TestNormalize(t *testing.T) {
	in := time.Date(2026, 1, 10, 8, 30, 0, 123456789, time.FixedZone("X", 3600))
	got := Normalize(in)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 123456000, got.Nanosecond())
	assert.Equal(t, 7, got.Hour())
}
