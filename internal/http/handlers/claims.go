package handlers

import (
	"net/http"

	"github.com/geocoder89/projecthub/internal/auth"
	"github.com/gin-gonic/gin"
)

type TokenDecoder interface {
	Decode(raw string) (auth.Identity, error)
}

// DecodedMe returns what the access cookie claims, without verifying it.
// Useful to pages that only need a display hint.
func DecodedMe(dec TokenDecoder) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw, err := ctx.Cookie(AccessTokenCookie)
		if err != nil || raw == "" {
			ctx.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}

		id, err := dec.Decode(raw)
		if err != nil {
			ctx.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{"user": id})
	}
}
