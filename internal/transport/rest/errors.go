// Package rest provides HTTP handlers for product and sale operations.
package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/pkg/web"
	"github.com/go-playground/validator/v10"
)

const internalErrorMessage = "Internal Server Error"

var statusByCode = map[storeerrors.Code]int{
	storeerrors.NotFound:            http.StatusNotFound,
	storeerrors.BadRequest:          http.StatusBadRequest,
	storeerrors.UnprocessableEntity: http.StatusUnprocessableEntity,
	storeerrors.Conflict:            http.StatusConflict,
}

// respondServiceError maps coded errors to their status and message.
// Anything else is logged and answered with a generic 500 so internal details never leak.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	if code, message, ok := storeerrors.CodeOf(err); ok {
		logger.WarnContext(r.Context(), msg, "code", code, "error", err)
		web.RespondError(w, logger, statusByCode[code], message)
		return
	}
	logger.ErrorContext(r.Context(), msg, "error", err)
	web.RespondError(w, logger, http.StatusInternalServerError, internalErrorMessage)
}

// newValidator returns a validator that reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts the first failed rule into a coded error with the client-facing message.
// A missing field is a bad request, a present but out-of-range value is unprocessable.
func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return storeerrors.New(storeerrors.BadRequest, "Invalid request body")
	}
	fe := validationErrors[0]
	switch fe.Tag() {
	case "required":
		return storeerrors.New(storeerrors.BadRequest, fmt.Sprintf(`"%s" is required`, fe.Field()))
	case "min":
		if fe.Kind() == reflect.String {
			return storeerrors.New(storeerrors.UnprocessableEntity,
				fmt.Sprintf(`"%s" length must be at least %s characters long`, fe.Field(), fe.Param()))
		}
		return storeerrors.New(storeerrors.UnprocessableEntity,
			fmt.Sprintf(`"%s" must be greater than or equal to %s`, fe.Field(), fe.Param()))
	default:
		return storeerrors.New(storeerrors.BadRequest, fmt.Sprintf(`"%s" is invalid`, fe.Field()))
	}
}
