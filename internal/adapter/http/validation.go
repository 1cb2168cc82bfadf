package http

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"rwa-lending-gateway/internal/domain/collateral"
	"rwa-lending-gateway/internal/domain/origination"
	"rwa-lending-gateway/internal/domain/submission"
	"rwa-lending-gateway/pkg/id"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

var reAddress = regexp.MustCompile(`^0x[a-f0-9]{1,64}$`)

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// submission id = 32-char lowercase hex
	_ = v.RegisterValidation("hex32", func(fl validator.FieldLevel) bool {
		return id.Valid32(fl.Field().String())
	})
	// account address = 0x + up to 64 lowercase hex
	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return reAddress.MatchString(fl.Field().String())
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "hex32":
			out = append(out, FieldError{Field: field, Message: "must be 32-char lowercase hex"})
		case "address":
			out = append(out, FieldError{Field: field, Message: "must be a 0x-prefixed lowercase hex address"})
		case "max":
			out = append(out, FieldError{Field: field, Message: "must be at most " + e.Param() + " characters"})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}

// statusFor maps domain errors to HTTP codes; anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, origination.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, origination.ErrNoSession),
		errors.Is(err, submission.ErrNotFound),
		errors.Is(err, collateral.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, origination.ErrNoSelection),
		errors.Is(err, origination.ErrIncomplete):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
