package session

import (
	"errors"
	"net/http"
)

const (
	msgCheckFailed = "Error checking authentication"
	msgLoginFailed = "Error logging in"
)

// Error is what collaborators return when the other side answered with a
// failure. Status 0 means no answer (transport).
type Error struct {
	Status  int
	Message string
}

// Error is the message alone so it can be shown as is; the status stays
// on the struct.
func (e *Error) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// IsUnauthenticated reports whether err means "no valid session" rather
// than "could not find out".
func IsUnauthenticated(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden
	}
	return false
}

func messageOf(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

func statusOf(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
