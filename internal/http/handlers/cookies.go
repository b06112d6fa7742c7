package handlers

import (
	"net/http"
	"time"

	"github.com/geocoder89/projecthub/internal/backend"
	"github.com/geocoder89/projecthub/internal/bff"
	"github.com/geocoder89/projecthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = middlewares.AccessTokenCookie
	RefreshTokenCookie = "refreshToken"
)

type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionCookies writes the HTTP-only session cookies. Both cookies are
// SameSite=Strict and scoped to "/".
type SessionCookies struct {
	cfg CookieConfig
}

func NewSessionCookies(cfg CookieConfig) SessionCookies {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return SessionCookies{cfg: cfg}
}

// Set writes the access cookie, and the refresh cookie when t carries one.
func (s SessionCookies) Set(ctx *gin.Context, t backend.Tokens) {
	s.set(ctx, AccessTokenCookie, t.AccessToken, int(s.cfg.AccessTTL.Seconds()))
	if t.RefreshToken != "" {
		s.set(ctx, RefreshTokenCookie, t.RefreshToken, int(s.cfg.RefreshTTL.Seconds()))
	}
}

// Clear expires both cookies with the attributes they were set with.
func (s SessionCookies) Clear(ctx *gin.Context) {
	s.set(ctx, AccessTokenCookie, "", -1)
	s.set(ctx, RefreshTokenCookie, "", -1)
}

func (s SessionCookies) set(ctx *gin.Context, name, value string, maxAge int) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		name,
		value,
		maxAge,
		"/",
		"",
		s.cfg.Secure,
		true, // HttpOnly.
	)
}

// Read returns the tokens the request arrived with.
func (SessionCookies) Read(ctx *gin.Context) bff.Tokens {
	access, _ := ctx.Cookie(AccessTokenCookie)
	refresh, _ := ctx.Cookie(RefreshTokenCookie)
	return bff.Tokens{AccessToken: access, RefreshToken: refresh}
}
