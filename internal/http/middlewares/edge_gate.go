package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/projecthub/internal/actorctx"
	"github.com/geocoder89/projecthub/internal/auth"
	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/geocoder89/projecthub/internal/rbac"
	"github.com/gin-gonic/gin"
)

// The edge gate is a UX speed bump, not a security boundary. It reads the
// access token cookie WITHOUT verifying its signature and only decides
// whether a page request is worth serving. The backend authorises every
// API call on its own.

const AccessTokenCookie = "accessToken"

// Keep these small so tests can fake them.
type TokenDecoder interface {
	Decode(raw string) (auth.Identity, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, fingerprint string) (bool, error)
}

type GateObserver interface {
	ObserveGate(gate, decision string)
}

type EdgeGateConfig struct {
	// Matchers are the path prefixes the gate applies to (segment match).
	Matchers []string
	// AdminPrefix is the area reserved to RoleAdmin.
	AdminPrefix string
}

func DefaultEdgeGateConfig() EdgeGateConfig {
	return EdgeGateConfig{
		Matchers:    []string{rbac.PageAdmin, rbac.PageDashboard},
		AdminPrefix: rbac.PageAdmin,
	}
}

type EdgeGate struct {
	decoder TokenDecoder
	revoked RevocationChecker
	obs     GateObserver
	cfg     EdgeGateConfig
	log     *slog.Logger
}

func NewEdgeGate(decoder TokenDecoder, revoked RevocationChecker, obs GateObserver, cfg EdgeGateConfig, log *slog.Logger) *EdgeGate {
	if log == nil {
		log = slog.Default()
	}
	return &EdgeGate{
		decoder: decoder,
		revoked: revoked,
		obs:     obs,
		cfg:     cfg,
		log:     log.With("component", "edge_gate"),
	}
}

// Handler redirects (307) to /login or /unauthorized, or lets the request
// through with the decoded identity on the context.
func (g *EdgeGate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !g.applies(path) {
			c.Next()
			return
		}

		raw, err := c.Cookie(AccessTokenCookie)
		if err != nil || raw == "" {
			g.redirect(c, rbac.PageLogin, "no_token")
			return
		}

		id, err := g.decoder.Decode(raw)
		if err != nil {
			decision := "invalid_token"
			if errors.Is(err, auth.ErrTokenExpired) {
				decision = "expired_token"
			}
			g.redirect(c, rbac.PageLogin, decision)
			return
		}

		if g.revoked != nil {
			revoked, err := g.revoked.IsRevoked(c.Request.Context(), auth.Fingerprint(raw))
			if err != nil {
				// fail open
				g.log.WarnContext(c.Request.Context(), "revocation lookup failed", "err", err)
			} else if revoked {
				g.redirect(c, rbac.PageLogin, "revoked")
				return
			}
		}

		if g.cfg.AdminPrefix != "" && rbac.MatchesPrefix(g.cfg.AdminPrefix, path) && id.Role != user.RoleAdmin {
			g.redirect(c, rbac.PageUnauthorized, "forbidden")
			return
		}

		c.Set(CtxIdentity, id)
		c.Set(CtxUserID, id.UserID)
		c.Set(CtxEmail, id.Email)
		c.Set(CtxRole, id.Role.String())
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), id.UserID))

		g.observe("allow")
		c.Next()
	}
}

func (g *EdgeGate) applies(path string) bool {
	for _, m := range g.cfg.Matchers {
		if rbac.MatchesPrefix(m, path) {
			return true
		}
	}
	return false
}

func (g *EdgeGate) redirect(c *gin.Context, to, decision string) {
	g.observe(decision)
	c.Redirect(http.StatusTemporaryRedirect, to)
	c.Abort()
}

func (g *EdgeGate) observe(decision string) {
	if g.obs != nil {
		g.obs.ObserveGate("edge", decision)
	}
}

// Optional helpers so handlers don't need to know the magic keys.

func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxRole)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
