package http

import (
	"log/slog"

	"github.com/geocoder89/projecthub/internal/auth"
	"github.com/geocoder89/projecthub/internal/config"
	"github.com/geocoder89/projecthub/internal/guard"
	"github.com/geocoder89/projecthub/internal/http/handlers"
	"github.com/geocoder89/projecthub/internal/http/middlewares"
	"github.com/geocoder89/projecthub/internal/observability"
	"github.com/geocoder89/projecthub/internal/rbac"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the gateway router needs from main.
type Deps struct {
	Config config.Config
	Log    *slog.Logger
	Prom   *observability.Prom

	Auth    handlers.AuthService
	Revoked middlewares.RevocationChecker
	Routes  *rbac.Registry

	// Checks are the readiness probes, keyed by dependency name.
	Checks map[string]handlers.Pinger

	// LoginLimiter is optional; one is built from Config when nil.
	LoginLimiter *middlewares.RateLimiter
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config

	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Routes == nil {
		d.Routes = rbac.MustDefault()
	}
	if d.LoginLimiter == nil {
		d.LoginLimiter = middlewares.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	}

	r := gin.New()
	r.SetHTMLTemplate(handlers.Templates())

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))

	// The edge gate filters by its own matchers. Installed on the engine so
	// it also covers subpaths that have no route of their own.
	var gateObs middlewares.GateObserver
	if d.Prom != nil {
		gateObs = d.Prom
	}
	edge := middlewares.NewEdgeGate(auth.NewDecoder(), d.Revoked, gateObs, middlewares.DefaultEdgeGateConfig(), d.Log)
	r.Use(edge.Handler())
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))

	// health
	health := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Prom != nil {
		r.GET("/metrics", gin.WrapH(d.Prom.Handler()))
	}

	cookies := handlers.NewSessionCookies(handlers.CookieConfig{
		Secure:     cfg.Session.CookieSecure,
		AccessTTL:  cfg.Session.AccessTokenTTL,
		RefreshTTL: cfg.Session.RefreshTokenTTL,
	})

	authHandler := handlers.NewAuthHandler(d.Auth, cookies, cfg.Backend.Timeout, d.Log)
	limit := d.LoginLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	api := r.Group("/api")
	{
		a := api.Group("/auth")
		a.POST("/login", middlewares.RequireJSON(), limit, authHandler.Login)
		a.POST("/register", middlewares.RequireJSON(), limit, authHandler.Register)
		a.GET("/me", authHandler.Me)
		a.POST("/me", authHandler.Me)
		a.GET("/refresh", authHandler.Refresh)
		a.POST("/logout", authHandler.Logout)
		a.GET("/get-token", authHandler.GetToken)

		decoder := auth.NewDecoder()
		api.GET("/me", handlers.DecodedMe(decoder))
		api.GET("/routes", handlers.ListRoutes(d.Routes))
	}

	// pages
	pages := handlers.NewPagesHandler(d.Auth, cookies, d.Routes, handlers.PagesConfig{
		CheckTimeout: cfg.Session.CheckTimeout,
		LogoutDelay:  cfg.Session.LogoutRedirectDelay,
	}, d.Log)

	r.GET(rbac.PageHome, pages.Home)
	r.GET(rbac.PageLogin, pages.LoginPage)
	r.POST(rbac.PageLogin, limit, pages.Login)
	r.GET(rbac.PageRegister, pages.RegisterPage)
	r.POST(rbac.PageRegister, limit, pages.Register)
	r.POST("/logout", pages.Logout)
	r.GET(rbac.PageUnauthorized, pages.Unauthorized)

	var guardObs guard.Observer
	if d.Prom != nil {
		guardObs = d.Prom
	}
	clientGate := &guard.Guard{Routes: d.Routes, Observer: guardObs}

	protected := r.Group("/", clientGate.Middleware(pages.NewStore, cfg.Session.CheckTimeout))
	{
		protected.GET(rbac.PageDashboard, pages.Dashboard)
		protected.GET(rbac.PageAdmin, pages.Admin)
	}

	return r
}
