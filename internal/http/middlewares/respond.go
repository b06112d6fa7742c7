package middlewares

import "github.com/gin-gonic/gin"

// abortJSON writes the same error envelope the handlers use. Middlewares
// cannot import handlers, so the shape is repeated here.
func abortJSON(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id, ok := reqID.(string); ok && id != "" {
		body["requestId"] = id
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
