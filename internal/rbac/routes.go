package rbac

import (
	"sort"

	"github.com/geocoder89/projecthub/internal/domain/user"
)

// Page paths served by the gateway.
const (
	PageHome         = "/"
	PageLogin        = "/login"
	PageRegister     = "/register"
	PageDashboard    = "/dashboard"
	PageAdmin        = "/admin"
	PageUnauthorized = "/unauthorized"
)

// RouteConfig declares which roles may open a page. An empty RequiredRoles
// means any authenticated principal.
type RouteConfig struct {
	Path          string      `json:"path" yaml:"path"`
	RequiredRoles []user.Role `json:"requiredRoles" yaml:"requiredRoles"`
	Title         string      `json:"title" yaml:"title"`
	Description   string      `json:"description,omitempty" yaml:"description"`
}

// Allows reports whether role satisfies the route (any listed role matches).
func (rc RouteConfig) Allows(role user.Role) bool {
	if len(rc.RequiredRoles) == 0 {
		return true
	}
	return HasRequiredRole(string(role), rc.RequiredRoles)
}

// HasRequiredRole is the loose-string variant used with decoded claims.
func HasRequiredRole(role string, required []user.Role) bool {
	if role == "" {
		return false
	}

	r, err := user.ParseRole(role)
	if err != nil {
		return false
	}

	for _, want := range required {
		if want == r {
			return true
		}
	}
	return false
}

func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{
			Path:          PageAdmin,
			RequiredRoles: []user.Role{user.RoleAdmin},
			Title:         "Panel de Administración",
			Description:   "Gestión avanzada del sistema",
		},
		{
			Path:          PageDashboard,
			RequiredRoles: []user.Role{user.RoleUser, user.RoleAdmin},
			Title:         "Dashboard",
			Description:   "Panel principal de usuario",
		},
	}
}

// excluded pages bypass the page guard entirely.
var excluded = map[string]struct{}{
	PageHome:     {},
	PageLogin:    {},
	PageRegister: {},
}

func IsExcluded(p string) bool {
	_, ok := excluded[cleanPath(p)]
	return ok
}

// ExcludedPaths lists the excluded pages in sorted order.
func ExcludedPaths() []string {
	out := make([]string, 0, len(excluded))
	for p := range excluded {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
