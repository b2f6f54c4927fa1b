package handler

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/openclaw/account-server-go/internal/config"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/model"
)

type codeBatchRequest struct {
	Kind  *model.CodeKind `json:"kind"`
	Count int             `json:"count"`
}

func (r codeBatchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.NotNil),
		validation.Field(&r.Count, validation.Required, validation.Min(1), validation.Max(config.MaxBatchSize)),
	)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// Only presence is checked here. The account service owns the format rules.
func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Code, validation.Required),
	)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (r changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.By(differsFrom(r.OldPassword))),
	)
}

func differsFrom(other string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s == other {
			return errors.New("must differ from the current password")
		}
		return nil
	}
}

// decodeAndValidate turns field errors into a VALIDATION_ERROR whose details
// map each json field to its message.
func decodeAndValidate(r *http.Request, dst validation.Validatable) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	if err := dst.Validate(); err != nil {
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for field, fieldErr := range fieldErrs {
				details[field] = fieldErr.Error()
			}
			return apperrors.ValidationError("Invalid request").WithDetails(details)
		}
		return apperrors.ValidationError(err.Error())
	}
	return nil
}
