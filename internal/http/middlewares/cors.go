package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows credentialed calls from the listed origins only;
// the session lives in cookies, so a wildcard is never sent. Preflights
// from any other origin are refused.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if o := normalizeOrigin(origin); o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if origin == "" {
			ctx.Next()
			return
		}

		ctx.Header("Vary", "Origin")
		_, ok := allowed[normalizeOrigin(origin)]
		if ok {
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
		}

		if ctx.Request.Method != http.MethodOptions {
			ctx.Next()
			return
		}

		if !ok {
			ctx.AbortWithStatus(http.StatusForbidden)
			return
		}
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type,X-Request-Id")
		ctx.Header("Access-Control-Max-Age", "600")
		ctx.AbortWithStatus(http.StatusNoContent)
	}
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}
