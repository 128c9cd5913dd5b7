package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CallbackTokenHeader carries the shared secret on gateway callbacks.
const CallbackTokenHeader = "x-callback-token"

// CallbackToken admits only requests presenting the configured callback token.
// An unset secret rejects every request.
func CallbackToken(secret string, logger *slog.Logger) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := c.GetHeader(CallbackTokenHeader)
		if got == "" || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			logger.Warn("payment callback rejected",
				slog.String("remote", c.ClientIP()),
				slog.Bool("token_present", got != ""),
			)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
