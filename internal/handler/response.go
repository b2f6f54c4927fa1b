package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/httputil"
	"github.com/openclaw/account-server-go/internal/model"
	"github.com/openclaw/account-server-go/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError logs anything that is not an AppError before it is masked as
// a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if !apperrors.IsAppError(err) || httputil.StatusFromCode(apperrors.GetCode(err)) >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	httputil.WriteError(w, err)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperrors.ValidationError("Request body too large")
		}
		return apperrors.ValidationError("Invalid request body")
	}
	return nil
}

// deviceFromRequest leaves the name and id empty when the client sent none,
// so the session store derives them.
func deviceFromRequest(r *http.Request) model.DeviceInfo {
	return model.DeviceInfo{
		DeviceID:   r.Header.Get("X-Device-ID"),
		DeviceName: r.Header.Get("X-Device-Name"),
		UserAgent:  r.UserAgent(),
		IPAddress:  util.ClientIP(r),
	}
}
