package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/geocoder89/projecthub/internal/authclient"
	"github.com/geocoder89/projecthub/internal/backend"
	"github.com/geocoder89/projecthub/internal/bff"
	"github.com/geocoder89/projecthub/internal/config"
	"github.com/geocoder89/projecthub/internal/devbackend"
	"github.com/geocoder89/projecthub/internal/domain/user"
	apphttp "github.com/geocoder89/projecthub/internal/http"
	"github.com/geocoder89/projecthub/internal/observability"
	"github.com/geocoder89/projecthub/internal/rbac"
	"github.com/geocoder89/projecthub/internal/revocation"
	"github.com/geocoder89/projecthub/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-password"
)

type gateway struct {
	url string
}

func setupGateway(t *testing.T) gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	dev, err := devbackend.New(ctx, devbackend.Options{
		JWTSecret:       "test-secret-key",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		Admin:           devbackend.AdminSeed{Email: adminEmail, Password: adminPassword, Name: "Test Admin"},
	}, logger)
	require.NoError(t, err)

	devSrv := httptest.NewServer(dev)
	t.Cleanup(devSrv.Close)

	cfg, err := config.Parse(map[string]string{
		"APP_ENV":       "test",
		"BACKEND_URL":   devSrv.URL,
		"COOKIE_SECURE": "false",
	})
	require.NoError(t, err)

	prom := observability.NewProm(prometheus.NewRegistry())
	revoked := revocation.NewMemoryStore()

	api := backend.NewProtected(
		backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, backend.WithObserver(prom)),
		backend.BreakerConfig{Timeout: cfg.Backend.Timeout},
	)
	svc := bff.NewService(api, revoked, bff.Config{AccessTokenTTL: cfg.Session.AccessTokenTTL}, logger)

	router := apphttp.NewRouter(apphttp.Deps{
		Config:  cfg,
		Log:     logger,
		Prom:    prom,
		Auth:    svc,
		Revoked: revoked,
		Routes:  rbac.MustDefault(),
	})

	gwSrv := httptest.NewServer(router)
	t.Cleanup(gwSrv.Close)

	return gateway{url: gwSrv.URL}
}

// browser is a cookie-carrying client plus a store driven through it.
type browser struct {
	client *authclient.Client
	store  *session.Store
	nav    []string
}

func (g gateway) newBrowser(t *testing.T) *browser {
	t.Helper()

	c, err := authclient.New(g.url, 5*time.Second)
	require.NoError(t, err)

	b := &browser{client: c}
	b.store = session.NewStore(c, session.Options{
		Navigator: session.NavigatorFunc(func(p string) { b.nav = append(b.nav, p) }),
	})
	return b
}

func (b *browser) get(t *testing.T, rawURL string) *http.Response {
	t.Helper()

	res, err := b.client.HTTPClient().Get(rawURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestGateway_AnonymousVisitorIsSentToLogin(t *testing.T) {
	g := setupGateway(t)
	b := g.newBrowser(t)

	res := b.get(t, g.url+"/dashboard")
	assert.Equal(t, http.StatusTemporaryRedirect, res.StatusCode)
	assert.Equal(t, rbac.PageLogin, res.Header.Get("Location"))

	for _, sub := range []string{"/admin/reports", "/dashboard/projects"} {
		res = b.get(t, g.url+sub)
		assert.Equal(t, http.StatusTemporaryRedirect, res.StatusCode, sub)
		assert.Equal(t, rbac.PageLogin, res.Header.Get("Location"), sub)
	}

	res = b.get(t, g.url+"/")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	b.store.CheckAuthStatus(context.Background())
	st := b.store.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.User)
}

func TestGateway_AdminLoginAndPages(t *testing.T) {
	g := setupGateway(t)
	b := g.newBrowser(t)
	ctx := context.Background()

	require.NoError(t, b.store.Login(ctx, session.Credentials{Email: adminEmail, Password: adminPassword}))

	st := b.store.Snapshot()
	require.True(t, st.IsAuthenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, user.RoleAdmin, st.User.Role)
	assert.Equal(t, adminEmail, st.User.Email)

	res := b.get(t, g.url+"/dashboard")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = b.get(t, g.url+"/admin")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// signed-in visitors are bounced off the login page
	res = b.get(t, g.url+"/login")
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, rbac.PageDashboard, res.Header.Get("Location"))

	res = b.get(t, g.url+"/api/me")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var decoded struct {
		User *struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&decoded))
	require.NotNil(t, decoded.User)
	assert.Equal(t, "admin", decoded.User.Role)
}

func TestGateway_UserIsKeptOutOfAdmin(t *testing.T) {
	g := setupGateway(t)
	b := g.newBrowser(t)
	ctx := context.Background()

	require.NoError(t, b.store.Register(ctx, session.Registration{
		Email:    "grace@example.com",
		Password: "secret1",
		Name:     "Grace",
		LastName: "Hopper",
	}))
	require.NoError(t, b.store.Login(ctx, session.Credentials{Email: "grace@example.com", Password: "secret1"}))

	st := b.store.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, user.RoleUser, st.User.Role)
	assert.Equal(t, "Grace Hopper", st.User.FullName)

	res := b.get(t, g.url+"/dashboard")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	for _, p := range []string{"/admin", "/admin/reports"} {
		res = b.get(t, g.url+p)
		assert.Equal(t, http.StatusTemporaryRedirect, res.StatusCode, p)
		assert.Equal(t, rbac.PageUnauthorized, res.Header.Get("Location"), p)
	}
}

func TestGateway_LoginFailureKeepsVisitorAnonymous(t *testing.T) {
	g := setupGateway(t)
	b := g.newBrowser(t)

	err := b.store.Login(context.Background(), session.Credentials{Email: adminEmail, Password: "wrong-password"})
	require.Error(t, err)

	st := b.store.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.Equal(t, "Email or password is incorrect.", st.Error)
}

func TestGateway_LogoutRevokesTheAccessToken(t *testing.T) {
	g := setupGateway(t)
	b := g.newBrowser(t)
	ctx := context.Background()

	require.NoError(t, b.store.Login(ctx, session.Credentials{Email: adminEmail, Password: adminPassword}))

	res := b.get(t, g.url+"/api/auth/get-token")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var tok struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&tok))
	require.NotEmpty(t, tok.AccessToken)

	b.store.Logout(ctx)
	b.store.Wait()

	st := b.store.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	assert.Equal(t, []string{rbac.PageHome}, b.nav)

	res = b.get(t, g.url+"/dashboard")
	assert.Equal(t, http.StatusTemporaryRedirect, res.StatusCode)
	assert.Equal(t, rbac.PageLogin, res.Header.Get("Location"))

	// replaying the old cookie is refused at the edge
	u, err := url.Parse(g.url)
	require.NoError(t, err)
	b.client.HTTPClient().Jar.SetCookies(u, []*http.Cookie{{Name: "accessToken", Value: tok.AccessToken, Path: "/"}})

	res = b.get(t, g.url+"/dashboard")
	assert.Equal(t, http.StatusTemporaryRedirect, res.StatusCode)
	assert.Equal(t, rbac.PageLogin, res.Header.Get("Location"))
}

func TestGateway_RoutesAndHealth(t *testing.T) {
	g := setupGateway(t)
	b := g.newBrowser(t)

	res := b.get(t, g.url+"/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = b.get(t, g.url+"/readyz")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = b.get(t, g.url+"/api/routes")
	require.Equal(t, http.StatusOK, res.StatusCode)
	etag := res.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, g.url+"/api/routes", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)
	res2, err := b.client.HTTPClient().Do(req)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotModified, res2.StatusCode)

	res = b.get(t, g.url+"/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
