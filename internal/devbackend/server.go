package devbackend

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/projecthub/internal/auth"
	"github.com/gin-gonic/gin"
)

type Options struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Admin           AdminSeed
}

// New wires the stores, seeds the admin account and returns the router.
func New(ctx context.Context, opts Options, log *slog.Logger) (*gin.Engine, error) {
	accounts := NewAccounts()
	if err := EnsureAdmin(ctx, accounts, opts.Admin); err != nil {
		return nil, err
	}

	jwtManager := auth.NewManager(opts.JWTSecret, opts.AccessTokenTTL, opts.RefreshTokenTTL)
	h := NewAuthHandler(accounts, NewRefreshTokens(), jwtManager, log)

	return NewRouter(h, log), nil
}
