package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/account-server-go/internal/audit"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/model"
	"github.com/openclaw/account-server-go/internal/service"
)

type contextKey string

const (
	AccountContextKey contextKey = "account"
	SessionContextKey contextKey = "session"
	TokenContextKey   contextKey = "token"
)

func GetAccount(ctx context.Context) *model.Account {
	if account, ok := ctx.Value(AccountContextKey).(*model.Account); ok {
		return account
	}
	return nil
}

func GetSession(ctx context.Context) *model.Session {
	if session, ok := ctx.Value(SessionContextKey).(*model.Session); ok {
		return session
	}
	return nil
}

// GetToken returns the bearer token the request authenticated with.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenContextKey).(string)
	return token
}

// Authenticator is satisfied by *service.AccountService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.AuthResult, error)
}

type AuthMiddleware struct {
	accounts Authenticator
}

func NewAuthMiddleware(accounts Authenticator) *AuthMiddleware {
	return &AuthMiddleware{accounts: accounts}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		result, err := m.accounts.Authenticate(r.Context(), token)
		if err != nil {
			switch apperrors.GetCode(err) {
			case apperrors.ErrCodeNotFound:
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventAuthFailure,
					Details: map[string]interface{}{"reason": "unknown_token"},
				})
				writeError(w, apperrors.Unauthorized("Invalid token"))
			case apperrors.ErrCodeTokenExpired:
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventAuthFailure,
					Details: map[string]interface{}{"reason": "session_expired"},
				})
				writeError(w, err)
			default:
				log.Ctx(r.Context()).Error().Err(err).Msg("auth middleware: authentication error")
				writeError(w, apperrors.Internal("Authentication failed"))
			}
			return
		}

		ctx := context.WithValue(r.Context(), AccountContextKey, result.Account)
		ctx = context.WithValue(ctx, SessionContextKey, result.Session)
		ctx = context.WithValue(ctx, TokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}
