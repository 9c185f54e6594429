package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/chanlink/internal/pkg/errcode"
	"github.com/xxxsen/chanlink/internal/pkg/response"
)

const BotAPIKeyHeader = "X-Bot-Api-Key"

// BotAuth admits callers presenting key in BotAPIKeyHeader. An empty key
// admits nobody.
func BotAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(BotAPIKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}
