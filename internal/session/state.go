// Package session holds the authentication state machine shared by the
// page guard and the auth client: unauthenticated, loading and
// authenticated, driven by a Collaborator that talks to whatever
// actually knows who the caller is.
package session

import "github.com/geocoder89/projecthub/internal/domain/user"

// State is a point-in-time copy of the store. Error "" means no error.
type State struct {
	User            *user.User `json:"user"`
	IsAuthenticated bool       `json:"isAuthenticated"`
	IsLoading       bool       `json:"isLoading"`
	Error           string     `json:"error,omitempty"`
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Role returns the principal's role, or "" when anonymous.
func (s State) Role() user.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

func anonymous() State {
	return State{}
}
