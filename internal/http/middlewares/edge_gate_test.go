package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/projecthub/internal/auth"
	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f fakeRevocations) IsRevoked(_ context.Context, fp string) (bool, error) {
	return f.revoked[fp], f.err
}

type gateCounter map[string]int

func (g gateCounter) ObserveGate(gate, decision string) { g[gate+"/"+decision]++ }

func token(t *testing.T, role string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{"sub": "u1", "email": "a@b.com", "role": role, "typ": "access"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-checked"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func newGateRouter(revoked RevocationChecker, obs GateObserver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	g := NewEdgeGate(auth.NewDecoder(), revoked, obs, DefaultEdgeGateConfig(), nil)
	r.Use(g.Handler())

	ok := func(c *gin.Context) {
		id, _ := IdentityFromContext(c)
		c.String(http.StatusOK, "ok "+id.Role.String())
	}
	r.GET("/", ok)
	r.GET("/dashboard", ok)
	r.GET("/admin", ok)
	r.GET("/admin/reports", ok)
	r.GET("/administrator", ok)
	return r
}

func TestEdgeGate(t *testing.T) {
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name         string
		path         string
		cookie       string
		wantStatus   int
		wantLocation string
		wantDecision string
	}{
		{name: "public page untouched", path: "/", wantStatus: http.StatusOK},
		{name: "no cookie", path: "/dashboard", wantStatus: http.StatusTemporaryRedirect, wantLocation: "/login", wantDecision: "edge/no_token"},
		{name: "garbage cookie", path: "/dashboard", cookie: "not-a-jwt", wantStatus: http.StatusTemporaryRedirect, wantLocation: "/login", wantDecision: "edge/invalid_token"},
		{name: "unknown role", path: "/dashboard", cookie: token(t, "root", future), wantStatus: http.StatusTemporaryRedirect, wantLocation: "/login", wantDecision: "edge/invalid_token"},
		{name: "expired", path: "/dashboard", cookie: token(t, "user", time.Now().Add(-time.Minute)), wantStatus: http.StatusTemporaryRedirect, wantLocation: "/login", wantDecision: "edge/expired_token"},
		{name: "user on dashboard", path: "/dashboard", cookie: token(t, "user", future), wantStatus: http.StatusOK, wantDecision: "edge/allow"},
		{name: "user on admin subpage", path: "/admin/reports", cookie: token(t, "user", future), wantStatus: http.StatusTemporaryRedirect, wantLocation: "/unauthorized", wantDecision: "edge/forbidden"},
		{name: "uppercase admin", path: "/admin", cookie: token(t, "ADMIN", future), wantStatus: http.StatusOK, wantDecision: "edge/allow"},
		{name: "prefix is not a segment", path: "/administrator", wantStatus: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := gateCounter{}
			r := newGateRouter(nil, obs)

			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d body=%s", tc.wantStatus, w.Code, w.Body.String())
			}
			if got := w.Header().Get("Location"); got != tc.wantLocation {
				t.Fatalf("location = %q, want %q", got, tc.wantLocation)
			}
			if tc.wantDecision != "" && obs[tc.wantDecision] != 1 {
				t.Fatalf("expected decision %s, got %v", tc.wantDecision, obs)
			}
			if tc.wantDecision == "" && len(obs) != 0 {
				t.Fatalf("expected no decision, got %v", obs)
			}
		})
	}
}

func TestEdgeGate_Revocation(t *testing.T) {
	raw := token(t, string(user.RoleAdmin), time.Now().Add(time.Hour))

	t.Run("revoked token goes to login", func(t *testing.T) {
		r := newGateRouter(fakeRevocations{revoked: map[string]bool{auth.Fingerprint(raw): true}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: raw})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/login" {
			t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
		}
	})

	t.Run("store errors fail open", func(t *testing.T) {
		r := newGateRouter(fakeRevocations{err: errors.New("redis down")}, nil)

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: raw})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})
}
