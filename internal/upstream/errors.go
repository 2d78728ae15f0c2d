package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnreachable   = errors.New("upstream unreachable")
	ErrTimeout       = errors.New("upstream timed out")
	ErrNotConfigured = errors.New("upstream is not configured")
	ErrEmptyBody     = errors.New("upstream returned an empty body")
)

// Error is an upstream response with status >= 400.
type Error struct {
	StatusCode int
	Message    string
	Detail     json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// NewError extracts the message from a FastAPI-style error body: "message",
// then a string "detail", then "error". A structured "detail" (validation
// error list) is kept in Detail.
func NewError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "detail", "error"} {
			raw, ok := payload[key]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil {
				if e.Message == "" {
					e.Message = s
				}
				continue
			}
			if key == "detail" {
				e.Detail = raw
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !bytes.HasPrefix(body, []byte("<")) {
		e.Message = text
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
