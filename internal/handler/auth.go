package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/account-server-go/internal/audit"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/middleware"
	"github.com/openclaw/account-server-go/internal/service"
	"github.com/openclaw/account-server-go/internal/util"
)

type AuthHandler struct {
	accounts          *service.AccountService
	sessionMiddleware func(http.Handler) http.Handler
	loginLimit        func(http.Handler) http.Handler
}

func NewAuthHandler(
	accounts *service.AccountService,
	sessionMiddleware func(http.Handler) http.Handler,
	loginLimit func(http.Handler) http.Handler,
) *AuthHandler {
	return &AuthHandler{
		accounts:          accounts,
		sessionMiddleware: sessionMiddleware,
		loginLimit:        loginLimit,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.With(h.loginLimit).Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Post("/logout", h.Logout)
		r.Post("/logout-all", h.LogoutAll)
		r.Post("/password", h.ChangePassword)
		r.Get("/me", h.Me)
	})

	return r
}

// POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), service.RegisterParams{
		Username: req.Username,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventAccountRegister,
		AccountID: account.ID,
		Details:   map[string]interface{}{"code": util.MaskCode(account.ActivationCode)},
	})
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventCodeActivate,
		AccountID: account.ID,
		Details:   map[string]interface{}{"code": util.MaskCode(account.ActivationCode)},
	})

	writeJSON(w, http.StatusCreated, map[string]any{"account": account})
}

// POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), service.LoginParams{
		Username: req.Username,
		Password: req.Password,
		Device:   deviceFromRequest(r),
	})
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"reason": string(apperrors.GetCode(err))},
		})
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventLoginSuccess,
		AccountID: result.Account.ID,
		SessionID: result.Session.ID,
	})
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionCreate,
		AccountID: result.Account.ID,
		SessionID: result.Session.ID,
		Details: map[string]interface{}{
			"device_name": result.Session.DeviceName,
			"expires_at":  result.Session.ExpiresAt,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"account": result.Account,
		"session": result.Session,
		"token":   result.Session.Token,
	})
}

// POST /v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.accounts.Logout(ctx, middleware.GetToken(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventLogout,
		AccountID: session.AccountID,
		SessionID: session.ID,
	})
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionRevoke,
		AccountID: session.AccountID,
		SessionID: session.ID,
		Details:   map[string]interface{}{"reason": "logout"},
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// POST /v1/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	revoked, err := h.accounts.LogoutAll(r.Context(), account.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventLogoutAll,
		AccountID: account.ID,
		Details:   map[string]interface{}{"revoked": revoked},
	})
	if revoked > 0 {
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventSessionRevoke,
			AccountID: account.ID,
			Details:   map[string]interface{}{"reason": "logout_all", "revoked": revoked},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "revoked": revoked})
}

// POST /v1/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	account := middleware.GetAccount(r.Context())
	if err := h.accounts.ChangePassword(r.Context(), account.ID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventPasswordChange,
		AccountID: account.ID,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"account": middleware.GetAccount(r.Context()),
		"session": middleware.GetSession(r.Context()),
	})
}
