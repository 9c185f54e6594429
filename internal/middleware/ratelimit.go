package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/chanlink/internal/limiter"
	"github.com/xxxsen/chanlink/internal/pkg/errcode"
	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
	"github.com/xxxsen/chanlink/internal/pkg/response"
)

// RateLimit counts requests per client ip and route. Limiter faults let the
// request through.
func RateLimit(l limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := strings.Join([]string{"http", ip, path}, "|")
		err := l.Allow(c.Request.Context(), key)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, appErr.ErrTooMany):
			logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
				zap.String("ip", ip),
				zap.String("path", path),
			)
			response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
			c.Abort()
		default:
			logutil.GetLogger(c.Request.Context()).Error("rate limiter unavailable",
				zap.String("path", path),
				zap.Error(err),
			)
			c.Next()
		}
	}
}
