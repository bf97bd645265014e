package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Pre-compiled regex patterns for validators
var (
	e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

// Validator defines the interface for field validators
type Validator interface {
	Validate(value interface{}) error
}

// Hook chains validators into a validate hook. The first failing validator
// wins; its message is returned as a *Error so the entity records it.
func Hook(validators ...Validator) func(value interface{}) error {
	return func(value interface{}) error {
		for _, v := range validators {
			if err := v.Validate(value); err != nil {
				if ve, ok := As(err); ok {
					return ve
				}
				return New(err.Error())
			}
		}
		return nil
	}
}

// RequiredValidator rejects nil values and blank strings
type RequiredValidator struct{}

// Validate implements the Validator interface
func (v *RequiredValidator) Validate(value interface{}) error {
	if value == nil {
		return fmt.Errorf("is required")
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// MinValidator validates minimum numeric values
type MinValidator struct {
	Min float64
}

// Validate implements the Validator interface
func (v *MinValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	n, ok := toFloat64(value)
	if !ok {
		return fmt.Errorf("expected numeric value")
	}
	if n < v.Min {
		return fmt.Errorf("must be at least %v", v.Min)
	}
	return nil
}

// MaxValidator validates maximum numeric values
type MaxValidator struct {
	Max float64
}

// Validate implements the Validator interface
func (v *MaxValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	n, ok := toFloat64(value)
	if !ok {
		return fmt.Errorf("expected numeric value")
	}
	if n > v.Max {
		return fmt.Errorf("must be at most %v", v.Max)
	}
	return nil
}

// MinLengthValidator validates the minimum length of strings, slices and arrays
type MinLengthValidator struct {
	MinLength int
}

// Validate implements the Validator interface
func (v *MinLengthValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	n, unit, ok := length(value)
	if !ok {
		return fmt.Errorf("min_length validation requires a string or list value")
	}
	if n < v.MinLength {
		return fmt.Errorf("must contain at least %d %s", v.MinLength, unit)
	}
	return nil
}

// MaxLengthValidator validates the maximum length of strings, slices and arrays
type MaxLengthValidator struct {
	MaxLength int
}

// Validate implements the Validator interface
func (v *MaxLengthValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	n, unit, ok := length(value)
	if !ok {
		return fmt.Errorf("max_length validation requires a string or list value")
	}
	if n > v.MaxLength {
		return fmt.Errorf("must contain at most %d %s", v.MaxLength, unit)
	}
	return nil
}

// PatternValidator validates string values against a regex pattern
type PatternValidator struct {
	Pattern *regexp.Regexp
}

// Validate implements the Validator interface
func (v *PatternValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("pattern validation requires string value")
	}

	if !v.Pattern.MatchString(strVal) {
		return fmt.Errorf("does not match required pattern")
	}

	return nil
}

// EmailValidator validates email addresses
type EmailValidator struct{}

// Validate implements the Validator interface
func (v *EmailValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("email validation requires string value")
	}

	if strings.TrimSpace(strVal) == "" {
		return fmt.Errorf("email address cannot be empty")
	}

	// Use net/mail for RFC 5322 compliant email validation
	if _, err := mail.ParseAddress(strVal); err != nil {
		return fmt.Errorf("must be a valid email address")
	}

	return nil
}

// URLValidator validates URLs
type URLValidator struct{}

// Validate implements the Validator interface
func (v *URLValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("URL validation requires string value")
	}

	if strings.TrimSpace(strVal) == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsedURL, err := url.Parse(strVal)
	if err != nil {
		return fmt.Errorf("must be a valid URL")
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("URL must include a scheme (http, https, etc.)")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

// PhoneValidator validates phone numbers in E.164 format
type PhoneValidator struct{}

// Validate implements the Validator interface
func (v *PhoneValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("phone validation requires string value")
	}

	if !e164Pattern.MatchString(strVal) {
		return fmt.Errorf("must be a valid phone number in E.164 format (+[country code][number])")
	}

	return nil
}

// OneOfValidator restricts a value to a fixed set
type OneOfValidator struct {
	Values []interface{}
}

// Validate implements the Validator interface
func (v *OneOfValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	for _, allowed := range v.Values {
		if reflect.DeepEqual(allowed, value) {
			return nil
		}
	}
	return fmt.Errorf("must be one of %v", v.Values)
}

func length(value interface{}) (int, string, bool) {
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), "characters", true
	}

	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return 0, "", false
	}
	return val.Len(), "items", true
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
