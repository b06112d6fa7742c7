// Package guard decides what a protected page shows for the current auth
// state. Decide is pure; Middleware turns its answer into a response.
package guard

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/geocoder89/projecthub/internal/rbac"
	"github.com/geocoder89/projecthub/internal/session"
	"github.com/gin-gonic/gin"
)

type Decision int

const (
	RenderChildren Decision = iota
	RenderLoading
	RenderFallback
	RenderUnauthorized
)

func (d Decision) String() string {
	switch d {
	case RenderChildren:
		return "allow"
	case RenderLoading:
		return "loading"
	case RenderFallback:
		return "fallback"
	case RenderUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

const (
	TemplateLoading      = "loading.html"
	TemplateFallback     = "fallback.html"
	TemplateUnauthorized = "unauthorized.html"
)

// CtxStore is the gin key under which the request's store is kept for the
// page handler.
const CtxStore = "session.store"

type Observer interface {
	ObserveGate(gate, decision string)
}

type Guard struct {
	Routes *rbac.Registry
	// FallbackTemplate replaces the default "please log in" view.
	FallbackTemplate string
	Observer         Observer
}

// Decide never navigates; it only says what to render.
func (g *Guard) Decide(path string, st session.State) Decision {
	if rbac.IsExcluded(path) {
		return RenderChildren
	}
	if st.IsLoading {
		return RenderLoading
	}
	if !st.IsAuthenticated || st.User == nil {
		return RenderFallback
	}

	if g.Routes != nil {
		if rc, ok := g.Routes.Resolve(path); ok && !rc.Allows(st.User.Role) {
			return RenderUnauthorized
		}
	}
	return RenderChildren
}

// View is the data every page template receives.
type View struct {
	Title string
	Path  string
	User  *user.User
	State session.State
	// Refresh, when set, makes the page reload itself after that many
	// seconds.
	Refresh int
}

// StoreFactory builds the store bound to one page request.
type StoreFactory func(c *gin.Context) *session.Store

// Middleware initialises a request-scoped store, bounded by timeout, and
// renders the loading, fallback or unauthorized view when the page must
// not be shown.
func (g *Guard) Middleware(newStore StoreFactory, timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = session.DefaultValidationTimeout
	}

	return func(c *gin.Context) {
		store := newStore(c)
		c.Set(CtxStore, store)

		path := c.Request.URL.Path
		if !rbac.IsExcluded(path) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
			store.Init(ctx)
			cancel()
		}

		st := store.Snapshot()
		d := g.Decide(path, st)
		if g.Observer != nil {
			g.Observer.ObserveGate("client", d.String())
		}

		data := View{Path: path, User: st.User, State: st}
		if rc, ok := g.resolve(path); ok {
			data.Title = rc.Title
		}

		switch d {
		case RenderLoading:
			data.Refresh = 1
			c.HTML(http.StatusOK, TemplateLoading, data)
			c.Abort()
		case RenderFallback:
			tmpl := g.FallbackTemplate
			if tmpl == "" {
				tmpl = TemplateFallback
			}
			c.HTML(http.StatusUnauthorized, tmpl, data)
			c.Abort()
		case RenderUnauthorized:
			c.HTML(http.StatusForbidden, TemplateUnauthorized, data)
			c.Abort()
		default:
			c.Next()
		}
	}
}

func (g *Guard) resolve(path string) (rbac.RouteConfig, bool) {
	if g.Routes == nil {
		return rbac.RouteConfig{}, false
	}
	return g.Routes.Resolve(path)
}

// StoreFrom returns the store Middleware attached to c.
func StoreFrom(c *gin.Context) (*session.Store, bool) {
	v, ok := c.Get(CtxStore)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Store)
	return s, ok
}
