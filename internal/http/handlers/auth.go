package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/projecthub/internal/backend"
	"github.com/geocoder89/projecthub/internal/bff"
	"github.com/geocoder89/projecthub/internal/session"
	"github.com/gin-gonic/gin"
)

// AuthService is what the auth handlers need from the bff layer.
type AuthService interface {
	Login(ctx context.Context, email, password string) (backend.Tokens, error)
	Register(ctx context.Context, reg backend.Registration) (json.RawMessage, error)
	WhoAmI(ctx context.Context, in bff.Tokens) (bff.WhoAmIResult, error)
	Refresh(ctx context.Context, refreshToken string) (backend.Tokens, error)
	Logout(ctx context.Context, accessToken string)
}

type AuthHandler struct {
	svc     AuthService
	cookies SessionCookies
	timeout time.Duration
	log     *slog.Logger
}

func NewAuthHandler(svc AuthService, cookies SessionCookies, timeout time.Duration, log *slog.Logger) *AuthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		svc:     svc,
		cookies: cookies,
		timeout: timeout,
		log:     log.With("component", "auth_handler"),
	}
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req session.Credentials

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	tokens, err := h.svc.Login(cctx, req.Email, req.Password)
	if err != nil {
		if backend.IsTransport(err) {
			h.log.ErrorContext(cctx, "login: backend unavailable", "err", err)
			RespondBadGateway(ctx, "Authentication service unavailable")
			return
		}
		RespondUnAuthorized(ctx, "invalid_credentials", backend.MessageOf(err, "Invalid credentials"))
		return
	}

	h.cookies.Set(ctx, tokens)

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req session.Registration

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	u, err := h.svc.Register(cctx, backend.Registration{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		LastName: req.LastName,
	})
	if err != nil {
		// client errors keep their status, everything else is ours
		if status := backend.StatusOf(err); status >= 400 && status < 500 {
			RespondError(ctx, status, "register_failed", backend.MessageOf(err, "Register failed"), nil)
			return
		}
		h.log.ErrorContext(cctx, "register failed", "err", err)
		RespondInternal(ctx, "Register failed")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Register successful",
		"user":    u,
	})
}

// Me answers who the session belongs to, refreshing the access token once
// if the backend rejects it.
func (h *AuthHandler) Me(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.WhoAmI(cctx, h.cookies.Read(ctx))
	switch {
	case err == nil:
	case errors.Is(err, bff.ErrNoSession):
		RespondUnAuthorized(ctx, "unauthorized", "Unauthorized")
		return
	case errors.Is(err, bff.ErrSessionExpired):
		h.cookies.Clear(ctx)
		RespondUnAuthorized(ctx, "session_expired", "Session expired")
		return
	case backend.IsTransport(err):
		h.log.ErrorContext(cctx, "me: backend unavailable", "err", err)
		RespondBadGateway(ctx, "Authentication service unavailable")
		return
	default:
		h.log.ErrorContext(cctx, "me failed", "err", err)
		RespondInternal(ctx, "Internal server error")
		return
	}

	body := gin.H{"success": true, "user": res.User}
	if res.Rotated != nil {
		h.cookies.Set(ctx, *res.Rotated)
		body["message"] = "Token renewed"
	}

	ctx.JSON(http.StatusOK, body)
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(RefreshTokenCookie)
	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "No refresh token")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	tokens, err := h.svc.Refresh(cctx, raw)
	if err != nil {
		if backend.IsTransport(err) {
			RespondBadGateway(ctx, "Authentication service unavailable")
			return
		}
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	h.cookies.Set(ctx, tokens)

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout always succeeds for the caller; the backend call is best effort.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	access, _ := ctx.Cookie(AccessTokenCookie)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	h.svc.Logout(cctx, access)
	h.cookies.Clear(ctx)

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

func (h *AuthHandler) GetToken(ctx *gin.Context) {
	access, err := ctx.Cookie(AccessTokenCookie)
	if err != nil || access == "" {
		RespondUnAuthorized(ctx, "no_token", "No token found")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": access,
		"success":     true,
	})
}
