package middleware

import (
	"net/http"

	"github.com/openclaw/account-server-go/internal/audit"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/util"
)

// OperatorAuthMiddleware guards the code management routes with a shared
// bearer token.
type OperatorAuthMiddleware struct {
	token string
}

func NewOperatorAuthMiddleware(token string) *OperatorAuthMiddleware {
	return &OperatorAuthMiddleware{token: token}
}

func (m *OperatorAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if m.token == "" || token == "" || !util.ConstantTimeEqual(token, m.token) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"reason": "operator_token", "path": r.URL.Path},
			})
			writeError(w, apperrors.Unauthorized("Invalid operator token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
