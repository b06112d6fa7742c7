package devbackend

import (
	"log/slog"

	"github.com/geocoder89/projecthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *AuthHandler, log *slog.Logger) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))

	r.GET("/healthz", h.Healthz)

	a := r.Group("/auth")
	{
		a.POST("/register", h.Register)
		a.POST("/login", h.Login)
		a.POST("/refresh", h.Refresh)
		a.POST("/logout", h.Logout)
		a.GET("/me", h.Me)
		a.POST("/me", h.Me)
	}

	return r
}
