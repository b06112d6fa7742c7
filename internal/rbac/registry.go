package rbac

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/geocoder89/projecthub/internal/domain/user"
)

var ErrDuplicateRoute = errors.New("duplicate route")

// Registry is the static route table. It is built once at startup and never
// mutated afterwards, so it is safe to share between goroutines.
type Registry struct {
	routes []RouteConfig
	byPath map[string]int
}

func NewRegistry(routes ...RouteConfig) (*Registry, error) {
	r := &Registry{
		routes: make([]RouteConfig, 0, len(routes)),
		byPath: make(map[string]int, len(routes)),
	}

	for _, rc := range routes {
		p := cleanPath(rc.Path)
		if _, ok := r.byPath[p]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoute, p)
		}

		roles := make([]user.Role, 0, len(rc.RequiredRoles))
		for _, role := range rc.RequiredRoles {
			parsed, err := user.ParseRole(string(role))
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", p, err)
			}
			roles = append(roles, parsed)
		}

		rc.Path = p
		rc.RequiredRoles = roles

		r.byPath[p] = len(r.routes)
		r.routes = append(r.routes, rc)
	}

	return r, nil
}

// MustDefault panics only if DefaultRoutes itself is broken.
func MustDefault() *Registry {
	r, err := NewRegistry(DefaultRoutes()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve finds the route config governing p. An exact match wins; otherwise
// the longest registered path that is a whole-segment prefix of p is used, so
// "/admin" covers "/admin/reports" but not "/administrator".
func (r *Registry) Resolve(p string) (RouteConfig, bool) {
	if r == nil || len(r.routes) == 0 {
		return RouteConfig{}, false
	}

	p = cleanPath(p)

	if i, ok := r.byPath[p]; ok {
		return r.routes[i], true
	}

	best := -1
	bestLen := -1
	for i, rc := range r.routes {
		if !segmentPrefix(rc.Path, p) {
			continue
		}
		if len(rc.Path) > bestLen {
			best = i
			bestLen = len(rc.Path)
		}
	}

	if best < 0 {
		return RouteConfig{}, false
	}
	return r.routes[best], true
}

// Routes returns a copy of the table in registration order.
func (r *Registry) Routes() []RouteConfig {
	if r == nil {
		return nil
	}

	out := make([]RouteConfig, len(r.routes))
	for i, rc := range r.routes {
		rc.RequiredRoles = append([]user.Role(nil), rc.RequiredRoles...)
		out[i] = rc
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.routes)
}

// MatchesPrefix reports whether p equals prefix or lives under it, comparing
// whole path segments.
func MatchesPrefix(prefix, p string) bool {
	prefix = cleanPath(prefix)
	p = cleanPath(p)
	return prefix == p || segmentPrefix(prefix, p)
}

func segmentPrefix(prefix, p string) bool {
	if prefix == "/" {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
