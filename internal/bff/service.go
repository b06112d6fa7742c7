// Package bff orchestrates the backend calls behind the gateway's auth
// API. Handlers own cookies; this package owns the sequencing.
package bff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/projecthub/internal/auth"
	"github.com/geocoder89/projecthub/internal/backend"
	"github.com/geocoder89/projecthub/internal/cache"
	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/geocoder89/projecthub/internal/revocation"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
	ErrNoRefreshToken = errors.New("no refresh token")
)

// Tokens are the cookie values a request arrived with.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

type WhoAmIResult struct {
	User user.User
	// Rotated is set when the access token had to be refreshed; the caller
	// must write the new cookies.
	Rotated *backend.Tokens
}

type Config struct {
	WhoAmICacheTTL time.Duration // 0 disables caching
	AccessTokenTTL time.Duration // used to bound revocation entries for tokens without exp
}

type Service struct {
	api     backend.API
	revoked revocation.Store
	whoami  *cache.Cache
	decoder *auth.Decoder
	cfg     Config
	log     *slog.Logger
}

func NewService(api backend.API, revoked revocation.Store, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}

	s := &Service{
		api:     api,
		revoked: revoked,
		decoder: auth.NewDecoder(),
		cfg:     cfg,
		log:     log.With("component", "bff"),
	}
	if cfg.WhoAmICacheTTL > 0 {
		s.whoami = cache.New(cfg.WhoAmICacheTTL)
	}
	return s
}

func (s *Service) Login(ctx context.Context, email, password string) (backend.Tokens, error) {
	return s.api.Login(ctx, email, password)
}

func (s *Service) Register(ctx context.Context, reg backend.Registration) (json.RawMessage, error) {
	return s.api.Register(ctx, reg)
}

// WhoAmI resolves the principal behind the request's tokens. A rejected or
// missing access token is refreshed once when a refresh token is present;
// the principal is then re-read with the new token so a successful result
// always carries a user.
func (s *Service) WhoAmI(ctx context.Context, in Tokens) (WhoAmIResult, error) {
	access := in.AccessToken
	if access != "" && s.isRevoked(ctx, access) {
		access = ""
	}

	if access != "" {
		u, err := s.me(ctx, access)
		if err == nil {
			return WhoAmIResult{User: u}, nil
		}
		if !backend.IsUnauthorized(err) {
			return WhoAmIResult{}, err
		}
	}

	if in.RefreshToken == "" {
		if in.AccessToken == "" {
			return WhoAmIResult{}, ErrNoSession
		}
		return WhoAmIResult{}, ErrSessionExpired
	}

	rotated, err := s.api.Refresh(ctx, in.RefreshToken)
	if err != nil {
		if backend.IsUnauthorized(err) || backend.StatusOf(err) == 400 {
			return WhoAmIResult{}, ErrSessionExpired
		}
		return WhoAmIResult{}, err
	}

	u, err := s.me(ctx, rotated.AccessToken)
	if err != nil {
		if backend.IsUnauthorized(err) {
			return WhoAmIResult{}, ErrSessionExpired
		}
		return WhoAmIResult{}, err
	}

	return WhoAmIResult{User: u, Rotated: &rotated}, nil
}

// Refresh trades the refresh token for new tokens.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (backend.Tokens, error) {
	if refreshToken == "" {
		return backend.Tokens{}, ErrNoRefreshToken
	}

	t, err := s.api.Refresh(ctx, refreshToken)
	if err != nil {
		if backend.IsTransport(err) || backend.StatusOf(err) >= 500 {
			return backend.Tokens{}, err
		}
		return backend.Tokens{}, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return t, nil
}

// Logout is best effort: the backend is told, the access token is put on
// the revocation list until it expires and any cached principal is
// dropped. Failures are logged, never returned.
func (s *Service) Logout(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}

	if err := s.api.Logout(ctx, accessToken); err != nil {
		s.log.Warn("backend logout failed, continuing with local logout", "err", err)
	}

	fp := auth.Fingerprint(accessToken)
	if s.whoami != nil {
		s.whoami.Delete(fp)
	}

	if s.revoked == nil {
		return
	}
	until := time.Now().Add(s.cfg.AccessTokenTTL)
	if id, err := s.decoder.Decode(accessToken); err == nil && !id.ExpiresAt.IsZero() {
		until = id.ExpiresAt
	}
	if err := s.revoked.Revoke(ctx, fp, until); err != nil {
		s.log.Warn("revoke access token failed", "err", err)
	}
}

// IsRevoked reports whether a logged-out token is presented again. Store
// errors count as not revoked.
func (s *Service) IsRevoked(ctx context.Context, accessToken string) bool {
	return s.isRevoked(ctx, accessToken)
}

func (s *Service) isRevoked(ctx context.Context, accessToken string) bool {
	if s.revoked == nil {
		return false
	}
	revoked, err := s.revoked.IsRevoked(ctx, auth.Fingerprint(accessToken))
	if err != nil {
		s.log.Warn("revocation lookup failed", "err", err)
		return false
	}
	return revoked
}

func (s *Service) me(ctx context.Context, accessToken string) (user.User, error) {
	if s.whoami == nil {
		return s.api.Me(ctx, accessToken)
	}

	fp := auth.Fingerprint(accessToken)
	if v, ok := s.whoami.Get(fp); ok {
		return v.(user.User), nil
	}

	u, err := s.api.Me(ctx, accessToken)
	if err != nil {
		return user.User{}, err
	}
	s.whoami.Set(fp, u)
	return u, nil
}
