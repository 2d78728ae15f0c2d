package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalid is the parent of every validation error returned by this package.
var ErrInvalid = errors.New("invalid input")

// Error is a validation failure that is safe to show to the caller as is.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return ErrInvalid }

// Errorf builds a validation error for field.
func Errorf(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UUID reports whether s is a canonical 8-4-4-4-12 UUID with version 1..5
// and the RFC 4122 variant. Braced and urn-prefixed forms are rejected.
func UUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	if v := u.Version(); v < 1 || v > 5 {
		return false
	}
	return u.Variant() == uuid.RFC4122
}

// RequireUUID checks a UUID-typed parameter and names it in the error.
func RequireUUID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Errorf(field, "Missing required parameter: %s", field)
	}
	if !UUID(value) {
		return Errorf(field, "Invalid %s: must be a valid UUID", field)
	}
	return nil
}

// RequireID checks an opaque identifier (DAG ids, connection ids, mapping ids).
// It must be non-empty and must not contain path separators.
func RequireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Errorf(field, "Missing required parameter: %s", field)
	}
	if strings.ContainsAny(value, "/\\") {
		return Errorf(field, "Invalid %s", field)
	}
	return nil
}

// UUIDs validates every element of ids.
func UUIDs(field string, ids []string) error {
	for i, id := range ids {
		if !UUID(id) {
			return Errorf(field, "Invalid %s[%d]: must be a valid UUID", field, i)
		}
	}
	return nil
}
