package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_FinalizeDefaults(t *testing.T) {
	m := NewModel("user", "id", "email")
	require.NoError(t, m.Finalize())

	assert.Equal(t, "user", m.Table)
	assert.Equal(t, "id", m.KeyField)
	assert.True(t, m.HasField("email"))
	assert.False(t, m.HasField("missing"))
	assert.True(t, m.Accepts("email"))
	assert.False(t, m.Accepts("missing"))
	assert.True(t, m.Autosave())
}

func TestModel_FinalizeKeyless(t *testing.T) {
	m := NewModel("log_line", "message")
	m.NoKey = true
	m.KeyField = "ignored"
	require.NoError(t, m.Finalize())

	assert.Equal(t, "", m.KeyField)
	assert.Nil(t, m.Hooks.Setter("ignored"))
}

func TestModel_FinalizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		model *Model
		want  string
	}{
		{"no name", NewModel(""), "model name is required"},
		{"duplicate field", NewModel("a", "id", "x", "x"), "model a: duplicate field x"},
		{"undeclared key", NewModel("a", "x"), "model a: key field id is not declared"},
		{"link without target", &Model{Name: "a", Links: []Link{{Key: "b"}}}, "model a: link without target"},
		{"duplicate link", NewModel("a").HasOne("b", Link{}).HasMany("b", Link{}), "model a: duplicate link b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.model.Finalize(), tt.want)
		})
	}
}

func TestModel_FieldlessAcceptsAnything(t *testing.T) {
	m := NewModel("bag")
	require.NoError(t, m.Finalize())

	assert.False(t, m.HasFields())
	assert.True(t, m.Accepts("anything"))
}

func TestModel_IdentityGuard(t *testing.T) {
	m := NewModel("user", "id", "email")
	require.NoError(t, m.Finalize())
	require.NoError(t, m.Finalize(), "second finalize is a no-op")

	set := m.Hooks.Setter("id")
	require.NotNil(t, set)

	_, err := set(int64(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityChange))
	assert.True(t, IsSchemaError(err))
	assert.Equal(t, "user.id: identity field is immutable", err.Error())
}

func TestModel_Links(t *testing.T) {
	m := NewModel("user", "id", "account_id").
		HasOne("account", Link{}).
		HasMany("post", Link{Key: "posts", ForeignKey: "author_id"})

	l, ok := m.Link("account")
	require.True(t, ok)
	assert.False(t, l.Many)

	l, ok = m.Link("posts")
	require.True(t, ok)
	assert.True(t, l.Many)
	assert.Equal(t, "post", l.Target)
	assert.Equal(t, "author_id", l.ForeignKey)

	_, ok = m.Link("post")
	assert.False(t, ok)
}

func TestSchemaError(t *testing.T) {
	err := &SchemaError{Model: "user", Err: ErrUnknownModel}
	assert.Equal(t, "user: unknown model", err.Error())
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.False(t, IsSchemaError(errors.New("other")))
}
