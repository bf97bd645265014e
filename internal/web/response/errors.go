// Package response renders JSON bodies and maps entity errors to HTTP
// statuses
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conduit-lang/activerow/internal/orm/access"
	"github.com/conduit-lang/activerow/internal/orm/executor"
	"github.com/conduit-lang/activerow/internal/orm/relationships"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/validation"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON writes v with statusCode
func JSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// RenderError renders err with the status StatusFor picks
func RenderError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	JSON(w, status, &ErrorResponse{Error: code, Message: message})
}

// RenderValidation renders recorded field failures as 422
func RenderValidation(w http.ResponseWriter, errs validation.Errors) {
	JSON(w, http.StatusUnprocessableEntity, &ErrorResponse{
		Error:   "validation_failed",
		Message: "The request contains invalid data",
		Fields:  errs,
	})
}

// RenderBadRequest renders a 400 with message
func RenderBadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, &ErrorResponse{Error: "bad_request", Message: message})
}

// RenderUnauthorized renders a 401 with message
func RenderUnauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	JSON(w, http.StatusUnauthorized, &ErrorResponse{Error: "unauthorized", Message: message})
}

// StatusFor maps an error to an HTTP status and an error code
func StatusFor(err error) (int, string) {
	if _, ok := validation.As(err); ok {
		return http.StatusUnprocessableEntity, "validation_failed"
	}

	switch {
	case access.IsPermissionDenied(err):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, schema.ErrUnknownModel),
		errors.Is(err, relationships.ErrUnknownLink),
		executor.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case executor.IsUniqueViolation(err), executor.IsForeignKeyViolation(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, schema.ErrIdentityChange),
		errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, schema.ErrNoIdentity):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}
