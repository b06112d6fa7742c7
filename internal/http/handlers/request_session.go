package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/projecthub/internal/backend"
	"github.com/geocoder89/projecthub/internal/bff"
	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/geocoder89/projecthub/internal/session"
	"github.com/gin-gonic/gin"
)

// requestSession is the session.Collaborator behind a server-rendered page.
// It calls the bff service directly with the request's cookies and writes
// rotated cookies back on the same response.
type requestSession struct {
	c       *gin.Context
	svc     AuthService
	cookies SessionCookies
	tokens  bff.Tokens
}

func newRequestSession(c *gin.Context, svc AuthService, cookies SessionCookies) *requestSession {
	return &requestSession{
		c:       c,
		svc:     svc,
		cookies: cookies,
		tokens:  cookies.Read(c),
	}
}

func (r *requestSession) Me(ctx context.Context) (user.User, error) {
	res, err := r.svc.WhoAmI(ctx, r.tokens)
	if err != nil {
		return user.User{}, toSessionError(err, "Unauthorized")
	}
	if res.Rotated != nil {
		r.setTokens(*res.Rotated)
	}
	return res.User, nil
}

func (r *requestSession) Login(ctx context.Context, creds session.Credentials) error {
	tokens, err := r.svc.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		if backend.IsTransport(err) {
			return toSessionError(err, "")
		}
		return &session.Error{
			Status:  http.StatusUnauthorized,
			Message: backend.MessageOf(err, "Invalid credentials"),
		}
	}
	r.setTokens(tokens)
	return nil
}

func (r *requestSession) Register(ctx context.Context, reg session.Registration) error {
	_, err := r.svc.Register(ctx, backend.Registration{
		Email:    reg.Email,
		Password: reg.Password,
		Name:     reg.Name,
		LastName: reg.LastName,
	})
	if err != nil {
		return toSessionError(err, "Register failed")
	}
	return nil
}

// Logout runs in the store's background goroutine, so it must not touch
// the response; the page handler clears the cookies.
func (r *requestSession) Logout(ctx context.Context) error {
	r.svc.Logout(ctx, r.tokens.AccessToken)
	return nil
}

func (r *requestSession) Refresh(ctx context.Context) error {
	tokens, err := r.svc.Refresh(ctx, r.tokens.RefreshToken)
	if err != nil {
		return toSessionError(err, "Invalid refresh token")
	}
	r.setTokens(tokens)
	return nil
}

func (r *requestSession) setTokens(t backend.Tokens) {
	r.cookies.Set(r.c, t)
	r.tokens.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		r.tokens.RefreshToken = t.RefreshToken
	}
}

func toSessionError(err error, fallback string) error {
	switch {
	case errors.Is(err, bff.ErrNoSession),
		errors.Is(err, bff.ErrSessionExpired),
		errors.Is(err, bff.ErrNoRefreshToken):
		return &session.Error{Status: http.StatusUnauthorized, Message: fallback}
	case backend.IsTransport(err):
		return &session.Error{Message: "Authentication service unavailable"}
	}
	if status := backend.StatusOf(err); status != 0 {
		return &session.Error{Status: status, Message: backend.MessageOf(err, fallback)}
	}
	return &session.Error{Status: http.StatusInternalServerError, Message: fallback}
}
