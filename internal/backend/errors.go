package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable covers transport failures, undecodable replies and an open
// circuit: the backend could not give an answer at all.
var ErrUnavailable = errors.New("backend unavailable")

// Error is a non-2xx reply from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401/403 reply.
func IsUnauthorized(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Status == http.StatusUnauthorized || be.Status == http.StatusForbidden
	}
	return false
}

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}

// MessageOf returns the backend supplied message, or fallback.
func MessageOf(err error, fallback string) string {
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}
