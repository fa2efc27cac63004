package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"fintrack/internal/core"
	"fintrack/internal/gateway"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// Error codes returned in the error envelope.
const (
	codeInvalidJSON     = "invalid_json"
	codeInvalidID       = "invalid_id"
	codeValidation      = "validation_failed"
	codeNotFound        = "not_found"
	codeUnavailable     = "model_unavailable"
	codeRateLimited     = "rate_limited"
	codeNotReady        = "not_ready"
	codeInternal        = "internal_error"
	internalErrorDetail = "internal error"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldError, err)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeError maps err onto a status code and writes the error envelope.
// Messages of unexpected errors are not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logServerError(r, status, err)
	}
	writeErrorCode(w, status, code, message)
}

func logServerError(r *http.Request, status int, err error) {
	slog.ErrorContext(r.Context(), "Request failed",
		applog.FieldComponent, applog.ComponentHTTP,
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldStatusCode, status,
		applog.FieldError, err)
}

func errorStatus(err error) (int, string, string) {
	var verrs validator.ValidationErrors
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, codeInvalidJSON, "request body too large"
	case errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest, codeInvalidJSON, err.Error()
	case errors.Is(err, errInvalidID):
		return http.StatusBadRequest, codeInvalidID, err.Error()
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, codeValidation, validationMessage(verrs)
	case errors.Is(err, services.ErrEmptyDescription),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, storage.ErrNonNumericAmount):
		return http.StatusUnprocessableEntity, codeValidation, err.Error()
	case errors.Is(err, services.ErrExpenseNotFound), errors.Is(err, services.ErrNoExpenses):
		return http.StatusNotFound, codeNotFound, err.Error()
	case errors.Is(err, gateway.ErrMissingCredential):
		return http.StatusServiceUnavailable, codeUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, codeInternal, internalErrorDetail
	}
}

func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "gt":
			parts = append(parts, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		case "datetime":
			parts = append(parts, fmt.Sprintf("%s must be a date in %s format", fe.Field(), fe.Param()))
		case "expense_category":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(core.CategoryNames(), ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
