package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureEvent(t *testing.T, emit func(ctx context.Context)) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	emit(logger.WithContext(context.Background()))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLog(t *testing.T) {
	entry := captureEvent(t, func(ctx context.Context) {
		Log(ctx, Event{
			Type:      EventCodeDistribute,
			AccountID: "acc-1",
			Details:   map[string]interface{}{"count": 3, "kind": "month", "partial": false},
		})
	})

	assert.Equal(t, "security", entry["audit"])
	assert.Equal(t, "code_distribute", entry["event_type"])
	assert.Equal(t, "acc-1", entry["account_id"])
	assert.EqualValues(t, 3, entry["count"])
	assert.Equal(t, "month", entry["kind"])
	assert.Equal(t, false, entry["partial"])
	assert.NotContains(t, entry, "session_id")
}

func TestLogFromRequest(t *testing.T) {
	entry := captureEvent(t, func(ctx context.Context) {
		r := httptest.NewRequest("POST", "/v1/auth/login", nil).WithContext(ctx)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		r.Header.Set("User-Agent", "test-agent")
		LogFromRequest(r, Event{Type: EventLoginFailure})
	})

	assert.Equal(t, "login_failure", entry["event_type"])
	assert.Equal(t, "203.0.113.9", entry["ip"])
	assert.Equal(t, "test-agent", entry["user_agent"])
}
