package models

import (
	"strings"

	"oscar-gateway/internal/validate"
)

// SecretWrite - запись секрета по иерархическому пути.
type SecretWrite struct {
	Path   string         `json:"path"`
	Secret map[string]any `json:"secret"`
}

func (s SecretWrite) Validate() error {
	if err := ValidateSecretPath("path", s.Path); err != nil {
		return err
	}
	if len(s.Secret) == 0 {
		return validate.Errorf("secret", "Missing required field: secret")
	}
	return nil
}

// SecretDelete - удаление нескольких путей; DeleteEmptyPaths убирает
// опустевшие родительские пути.
type SecretDelete struct {
	Paths            []string `json:"paths"`
	DeleteEmptyPaths bool     `json:"delete_empty_paths"`
}

func (s SecretDelete) Validate() error {
	if len(s.Paths) == 0 {
		return validate.Errorf("paths", "paths must be a non-empty array")
	}
	for _, p := range s.Paths {
		if err := ValidateSecretPath("paths", p); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSecretPath запрещает пустые сегменты и переходы "..".
func ValidateSecretPath(field, path string) error {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return validate.Errorf(field, "Missing required parameter: %s", field)
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return validate.Errorf(field, "Invalid %s: %q is not a valid secret path", field, path)
		}
	}
	return nil
}
