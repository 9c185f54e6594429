package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/chanlink/internal/limiter"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) error { return errors.New("redis down") }

func (brokenLimiter) Reset(context.Context, string) error { return nil }

func newLimitedEngine(l limiter.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(l))
	r.POST("/api/v1/password/reset/request", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/channel/link/request", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doPost(r http.Handler, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
	return w.Code
}

func TestRateLimitBlocksWithinWindow(t *testing.T) {
	r := newLimitedEngine(limiter.NewMemory(limiter.Policy{Window: time.Minute, MaxAttempts: 2}, 16))

	require.Equal(t, http.StatusOK, doPost(r, "/api/v1/password/reset/request"))
	require.Equal(t, http.StatusOK, doPost(r, "/api/v1/password/reset/request"))
	require.Equal(t, http.StatusTooManyRequests, doPost(r, "/api/v1/password/reset/request"))
	require.Equal(t, http.StatusOK, doPost(r, "/api/v1/channel/link/request"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newLimitedEngine(brokenLimiter{})
	require.Equal(t, http.StatusOK, doPost(r, "/api/v1/password/reset/request"))
}
