package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/account-server-go/internal/util"
)

type EventType string

const (
	EventCodeIssue       EventType = "code_issue"
	EventCodeDistribute  EventType = "code_distribute"
	EventCodeActivate    EventType = "code_activate"
	EventCodeInvalidate  EventType = "code_invalidate"
	EventAccountRegister EventType = "account_register"
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventLogout          EventType = "logout"
	EventLogoutAll       EventType = "logout_all"
	EventPasswordChange  EventType = "password_change"
	EventSessionCreate   EventType = "session_create"
	EventSessionRevoke   EventType = "session_revoke"
	EventSessionCleanup  EventType = "session_cleanup"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventAuthFailure     EventType = "auth_failure"
)

type Event struct {
	Type      EventType
	AccountID string
	SessionID string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	child := logger.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.AccountID != "" {
		child = child.With().Str("account_id", event.AccountID).Logger()
	}
	if event.SessionID != "" {
		child = child.With().Str("session_id", event.SessionID).Logger()
	}
	if event.IP != "" {
		child = child.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		child = child.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := child.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Time:
		return e.Time(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = util.ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}
