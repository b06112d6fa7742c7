package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/projecthub/internal/backend"
	"github.com/geocoder89/projecthub/internal/bff"
	"github.com/geocoder89/projecthub/internal/config"
	httpx "github.com/geocoder89/projecthub/internal/http"
	"github.com/geocoder89/projecthub/internal/http/handlers"
	"github.com/geocoder89/projecthub/internal/http/middlewares"
	"github.com/geocoder89/projecthub/internal/observability"
	"github.com/geocoder89/projecthub/internal/rbac"
	"github.com/geocoder89/projecthub/internal/redisclient"
	"github.com/geocoder89/projecthub/internal/revocation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("dev").Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		Env:         cfg.Env,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	routes, err := loadRoutes(cfg.RoutesFile)
	if err != nil {
		log.Error("route table load failed", "err", err, "file", cfg.RoutesFile)
		os.Exit(1)
	}

	// revocation list: redis when configured, in-process otherwise
	rdb := redisclient.New(redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	var revoked revocation.Store
	if rdb != nil {
		revoked = revocation.NewRedisStore(rdb.Raw())
	} else {
		mem := revocation.NewMemoryStore()
		revoked = mem
		go sweepEvery(ctx, time.Minute, mem.Sweep)
	}

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, backend.WithObserver(prom))
	api := backend.NewProtected(client, backend.BreakerConfig{
		Timeout:          cfg.Backend.Timeout,
		FailureThreshold: cfg.Backend.BreakerThreshold,
		Cooldown:         cfg.Backend.BreakerCooldown,
		HalfOpenMaxCalls: 1,
		OnStateChange: func(from, to backend.BreakerState) {
			prom.SetBreakerState(string(from), string(to))
			log.Warn("backend circuit state changed", "from", from, "to", to)
		},
	})

	svc := bff.NewService(api, revoked, bff.Config{
		WhoAmICacheTTL: cfg.Session.WhoAmICacheTTL,
		AccessTokenTTL: cfg.Session.AccessTokenTTL,
	}, log)

	limiter := middlewares.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	go sweepEvery(ctx, cfg.LoginRateWindow, limiter.Sweep)

	checks := map[string]handlers.Pinger{"backend": api.Ping}
	if rdb != nil {
		checks["redis"] = rdb.Ping
	}

	// set up routers with the log
	router := httpx.NewRouter(httpx.Deps{
		Config:       cfg,
		Log:          log,
		Prom:         prom,
		Auth:         svc,
		Revoked:      revoked,
		Routes:       routes,
		Checks:       checks,
		LoginLimiter: limiter,
	})

	// server set up
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("gateway starting", "port", cfg.Port, "env", cfg.Env, "backend", cfg.Backend.URL, "routes", routes.Len())
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(cfg.ShutdownTimeout + 2*time.Second):
		log.Error("shutdown timed out")
	}
}

func loadRoutes(file string) (*rbac.Registry, error) {
	if file == "" {
		return rbac.MustDefault(), nil
	}
	return rbac.LoadFile(file)
}

func sweepEvery(ctx context.Context, every time.Duration, sweep func() int) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := sweep(); n > 0 {
				slog.Debug("swept expired entries", "n", n)
			}
		}
	}
}
