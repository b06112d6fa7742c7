package handlers

import (
	"net/http"

	"github.com/geocoder89/projecthub/internal/rbac"
	"github.com/gin-gonic/gin"
)

// ListRoutes publishes the route table so clients can hide links they
// cannot open. Conditional requests get a 304.
func ListRoutes(reg *rbac.Registry) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Cache-Control", "no-cache")
		RespondJSONWithETag(ctx, http.StatusOK, gin.H{
			"routes":   reg.Routes(),
			"excluded": rbac.ExcludedPaths(),
		})
	}
}
