package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/activerow/internal/orm/access"
	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/orm/executor"
	"github.com/conduit-lang/activerow/internal/orm/relationships"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/validation"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "permission", err: &access.PermissionError{Model: "user", Operation: access.OpCreate}, status: http.StatusForbidden},
		{name: "unknown model", err: &schema.SchemaError{Model: "x", Err: schema.ErrUnknownModel}, status: http.StatusNotFound},
		{name: "unknown link", err: &relationships.LinkError{Model: "user", Link: "x", Err: relationships.ErrUnknownLink}, status: http.StatusNotFound},
		{name: "not found", err: fmt.Errorf("user 1: %w", executor.ErrNotFound), status: http.StatusNotFound},
		{name: "unique", err: fmt.Errorf("insert: %w", executor.ErrUniqueViolation), status: http.StatusConflict},
		{name: "foreign key", err: executor.ErrForeignKeyViolation, status: http.StatusConflict},
		{name: "identity", err: &schema.SchemaError{Model: "user", Field: "id", Err: schema.ErrIdentityChange}, status: http.StatusBadRequest},
		{name: "unknown field", err: &schema.SchemaError{Model: "user", Field: "x", Err: schema.ErrUnknownField}, status: http.StatusBadRequest},
		{name: "keyless", err: &schema.SchemaError{Model: "audit", Err: schema.ErrNoIdentity}, status: http.StatusBadRequest},
		{name: "validation", err: validation.New("is required"), status: http.StatusUnprocessableEntity},
		{name: "configuration", err: &entity.ConfigurationError{Model: "user", Err: entity.ErrNoExecutor}, status: http.StatusInternalServerError},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestRenderError(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, fmt.Errorf("user 9: %w", executor.ErrNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error)
	assert.Contains(t, body.Message, "user 9")

	rec = httptest.NewRecorder()
	RenderError(rec, errors.New("dsn password=secret"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body.Message, "secret")
}

func TestRenderValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderValidation(rec, validation.Errors{"email": "is not a valid email"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Error)
	assert.Equal(t, map[string]string{"email": "is not a valid email"}, body.Fields)
}
