package devbackend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/projecthub/internal/auth"
	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/geocoder89/projecthub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	LastName string `json:"lastName"`
}

type RefreshRequest struct {
	RefreshToken      string `json:"refreshToken"`
	RefreshTokenSnake string `json:"refresh_token"`
}

// AuthHandler serves the backend auth contract the gateway consumes.
type AuthHandler struct {
	accounts *Accounts
	tokens   *RefreshTokens
	jwt      *auth.Manager
	timeout  time.Duration
	log      *slog.Logger
}

func NewAuthHandler(accounts *Accounts, tokens *RefreshTokens, jwtManager *auth.Manager, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		jwt:      jwtManager,
		timeout:  3 * time.Second,
		log:      log.With("component", "devbackend"),
	}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !handlers.BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	hash, err := HashPassword(req.Password)
	if err != nil {
		handlers.RespondInternal(ctx, "Could not create user")
		return
	}

	// new accounts always start as plain users
	a, err := h.accounts.Create(cctx, req.Email, hash, req.Name, req.LastName, user.RoleUser)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			handlers.RespondError(ctx, http.StatusConflict, "email_taken", "Email is already in use.", nil)
			return
		}
		handlers.RespondInternal(ctx, "Could not create user")
		return
	}

	h.log.Info("account registered", "user_id", a.ID)
	ctx.JSON(http.StatusCreated, a.Public())
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !handlers.BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	a, err := h.accounts.GetByEmail(cctx, req.Email)
	if err != nil {
		handlers.RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if err := CheckPassword(a.PasswordHash, req.Password); err != nil {
		handlers.RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	access, refresh, err := h.issue(cctx, a)
	if err != nil {
		handlers.RespondInternal(ctx, "Could not create session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	a, ok := h.authenticate(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, a.Public())
}

// Refresh rotates the presented refresh token. The reply carries the access
// token under both key spellings older clients expect.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req RefreshRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(ctx, "Invalid request body.", nil)
		return
	}

	raw := req.RefreshToken
	if raw == "" {
		raw = req.RefreshTokenSnake
	}
	if raw == "" {
		handlers.RespondBadRequest(ctx, "Missing refresh token", nil)
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		handlers.RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	a, err := h.accounts.GetByID(cctx, claims.UserID)
	if err != nil {
		handlers.RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(a.User)
	if err != nil {
		handlers.RespondInternal(ctx, "Could not refresh session")
		return
	}

	_, err = h.tokens.Rotate(cctx, claims.JTI, h.jwt.HashRefreshToken(raw), RefreshTokenRow{
		ID:        newJTI,
		UserID:    a.ID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshTokenExpired):
			handlers.RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
		case errors.Is(err, ErrRefreshTokenRevoked):
			// reuse of a rotated token ends every session of that user
			n := h.tokens.RevokeAllForUser(cctx, a.ID)
			h.log.Warn("refresh token reuse", "user_id", a.ID, "revoked", n)
			handlers.RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		default:
			handlers.RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		}
		return
	}

	access, err := h.jwt.GenerateAccessToken(a.User)
	if err != nil {
		handlers.RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"access_token": access,
		"accessToken":  access,
		"refreshToken": newRaw,
	})
}

// Logout revokes every refresh token of the bearer. It never fails once
// the bearer is authenticated.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	a, ok := h.authenticate(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	n := h.tokens.RevokeAllForUser(cctx, a.ID)
	h.log.Info("logout", "user_id", a.ID, "revoked", n)

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) authenticate(ctx *gin.Context) (Account, bool) {
	raw := bearerToken(ctx.GetHeader("Authorization"))
	if raw == "" {
		handlers.RespondUnAuthorized(ctx, "missing_token", "Missing bearer token")
		return Account{}, false
	}

	claims, err := h.jwt.VerifyAccessToken(raw)
	if err != nil {
		handlers.RespondUnAuthorized(ctx, "invalid_token", "Invalid or expired token")
		return Account{}, false
	}

	a, err := h.accounts.GetByID(ctx.Request.Context(), claims.UserID)
	if err != nil {
		handlers.RespondUnAuthorized(ctx, "invalid_token", "Invalid or expired token")
		return Account{}, false
	}
	return a, true
}

func (h *AuthHandler) issue(ctx context.Context, a Account) (string, string, error) {
	access, err := h.jwt.GenerateAccessToken(a.User)
	if err != nil {
		return "", "", err
	}

	refresh, jti, expiresAt, err := h.jwt.GenerateRefreshToken(a.User)
	if err != nil {
		return "", "", err
	}

	err = h.tokens.Create(ctx, RefreshTokenRow{
		ID:        jti,
		UserID:    a.ID,
		TokenHash: h.jwt.HashRefreshToken(refresh),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
