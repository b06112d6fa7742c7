package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/projecthub/internal/config"
	"github.com/geocoder89/projecthub/internal/devbackend"
	"github.com/geocoder89/projecthub/internal/observability"
)

func main() {
	cfg, err := config.LoadDevBackend()
	if err != nil {
		observability.NewLogger("dev").Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	router, err := devbackend.New(ctx, devbackend.Options{
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Admin: devbackend.AdminSeed{
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
			Name:     cfg.AdminName,
		},
	}, log)
	if err != nil {
		log.Error("dev backend setup failed", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("dev backend starting", "port", cfg.Port, "admin", cfg.AdminEmail)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("dev backend failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("dev backend shutting down")

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
}
