package validation

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		value     interface{}
		wantErr   string
	}{
		{"required nil", &RequiredValidator{}, nil, "is required"},
		{"required blank", &RequiredValidator{}, "   ", "is required"},
		{"required ok", &RequiredValidator{}, "x", ""},
		{"min ok", &MinValidator{Min: 1}, 1, ""},
		{"min fail", &MinValidator{Min: 1}, int64(0), "must be at least 1"},
		{"min wrong type", &MinValidator{Min: 1}, "a", "expected numeric value"},
		{"max fail", &MaxValidator{Max: 10}, 10.5, "must be at most 10"},
		{"min length string", &MinLengthValidator{MinLength: 3}, "ab", "must contain at least 3 characters"},
		{"min length runes", &MinLengthValidator{MinLength: 3}, "日本語", ""},
		{"max length slice", &MaxLengthValidator{MaxLength: 1}, []int{1, 2}, "must contain at most 1 items"},
		{"max length wrong type", &MaxLengthValidator{MaxLength: 1}, 5, "max_length validation requires a string or list value"},
		{"pattern ok", &PatternValidator{Pattern: regexp.MustCompile(`^[a-z]+$`)}, "abc", ""},
		{"pattern fail", &PatternValidator{Pattern: regexp.MustCompile(`^[a-z]+$`)}, "ABC", "does not match required pattern"},
		{"email ok", &EmailValidator{}, "a@example.com", ""},
		{"email fail", &EmailValidator{}, "not-an-email", "must be a valid email address"},
		{"url fail", &URLValidator{}, "example.com", "URL must include a scheme (http, https, etc.)"},
		{"url ok", &URLValidator{}, "https://example.com", ""},
		{"phone ok", &PhoneValidator{}, "+14155552671", ""},
		{"one of fail", &OneOfValidator{Values: []interface{}{"a", "b"}}, "c", "must be one of [a b]"},
		{"nil passes optional validators", &EmailValidator{}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator.Validate(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestHook(t *testing.T) {
	hook := Hook(&RequiredValidator{}, &MaxLengthValidator{MaxLength: 3})

	assert.NoError(t, hook("abc"))

	err := hook("abcd")
	ve, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "must contain at most 3 characters", ve.Message)

	err = hook(nil)
	ve, ok = As(err)
	require.True(t, ok)
	assert.Equal(t, "is required", ve.Message)
}

func TestErrors(t *testing.T) {
	errs := Errors{}
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "validation failed", errs.Error())

	errs.Set("name", "is required")
	assert.Equal(t, "validation failed: name: is required", errs.Error())

	errs.Set("age", "must be at least 1")
	assert.Equal(t, []string{"age", "name"}, errs.Fields())
	assert.Contains(t, errs.Error(), "  - age: must be at least 1")

	cp := errs.Copy()
	errs.Clear("name")
	assert.Len(t, errs, 1)
	assert.Len(t, cp, 2)

	data, err := errs.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"validation_failed","fields":{"age":"must be at least 1"}}`, string(data))
}

func TestError(t *testing.T) {
	assert.Equal(t, "too short", New("too short").Error())
	assert.Equal(t, "name: too short", (&Error{Field: "name", Message: "too short"}).Error())
	assert.Equal(t, "must be 3", Errorf("must be %d", 3).Message)

	_, ok := As(assert.AnError)
	assert.False(t, ok)
}
