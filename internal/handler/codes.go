package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/account-server-go/internal/audit"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/model"
	"github.com/openclaw/account-server-go/internal/service"
	"github.com/openclaw/account-server-go/internal/util"
)

// CodeHandler serves the operator endpoints. The caller mounts it behind
// the operator token middleware.
type CodeHandler struct {
	activation *service.ActivationService
}

func NewCodeHandler(activation *service.ActivationService) *CodeHandler {
	return &CodeHandler{activation: activation}
}

func (h *CodeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/batch", h.IssueBatch)
	r.Post("/distribute", h.Distribute)
	r.Get("/stats", h.Stats)
	r.Get("/{code}", h.Get)
	r.Post("/{code}/invalidate", h.Invalidate)

	return r
}

// POST /v1/codes/batch
func (h *CodeHandler) IssueBatch(w http.ResponseWriter, r *http.Request) {
	var req codeBatchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	codes, err := h.activation.IssueBatch(r.Context(), *req.Kind, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventCodeIssue,
		Details: map[string]interface{}{"kind": req.Kind.String(), "count": len(codes)},
	})

	writeJSON(w, http.StatusCreated, map[string]any{"codes": codes})
}

// POST /v1/codes/distribute
func (h *CodeHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req codeBatchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	codes, err := h.activation.Distribute(r.Context(), *req.Kind, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventCodeDistribute,
		Details: map[string]interface{}{"kind": req.Kind.String(), "count": len(codes)},
	})

	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

// GET /v1/codes/stats?kind=month
//
// Without a kind every kind is reported.
func (h *CodeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	kinds := model.AllCodeKinds
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := model.ParseCodeKind(raw)
		if err != nil {
			writeError(w, r, apperrors.InvalidInput("kind", err.Error()))
			return
		}
		kinds = []model.CodeKind{kind}
	}

	stats := make(map[string]map[model.CodeStatus]int, len(kinds))
	for _, kind := range kinds {
		counts, err := h.activation.Stats(r.Context(), kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		stats[kind.String()] = counts
	}

	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// GET /v1/codes/{code}
func (h *CodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	code, err := h.activation.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":    code,
		"expired": h.activation.IsExpired(code),
	})
}

// POST /v1/codes/{code}/invalidate
func (h *CodeHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "code")

	code, changed, err := h.activation.Invalidate(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if changed {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventCodeInvalidate,
			Details: map[string]interface{}{"code": util.MaskCode(raw)},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"code": code})
}
