package hooks

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Lower lowercases string values; other values pass through
func Lower(value interface{}) (interface{}, error) {
	if s, ok := value.(string); ok {
		return strings.ToLower(s), nil
	}
	return value, nil
}

// Upper uppercases string values; other values pass through
func Upper(value interface{}) (interface{}, error) {
	if s, ok := value.(string); ok {
		return strings.ToUpper(s), nil
	}
	return value, nil
}

// Trim strips surrounding whitespace from string values
func Trim(value interface{}) (interface{}, error) {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s), nil
	}
	return value, nil
}

// Bcrypt returns a set hook that stores string values as bcrypt hashes.
// Values that already are bcrypt hashes are stored unchanged, so a loaded
// hash written back does not get hashed twice.
func Bcrypt(cost int) SetFunc {
	return func(value interface{}) (interface{}, error) {
		s, ok := value.(string)
		if !ok || s == "" {
			return value, nil
		}
		if _, err := bcrypt.Cost([]byte(s)); err == nil {
			return s, nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(s), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash value: %w", err)
		}
		return string(hash), nil
	}
}

// CheckBcrypt reports whether plain matches a hash produced by Bcrypt
func CheckBcrypt(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Named returns a built-in transform by name
func Named(name string) (SetFunc, error) {
	switch name {
	case "lower":
		return Lower, nil
	case "upper":
		return Upper, nil
	case "trim":
		return Trim, nil
	case "bcrypt":
		return Bcrypt(bcrypt.DefaultCost), nil
	default:
		return nil, fmt.Errorf("unknown transform: %s", name)
	}
}
