package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/chanlink/internal/pkg/jwt"
)

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("s3cret")
	r := gin.New()
	r.GET("/me", JWTAuth(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserIDKey))
	})

	token, err := jwt.GenerateToken("u1", "a@x.com", secret, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "malformed", header: "Token abc", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "ok", header: "Bearer " + token, status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				require.Equal(t, "u1", w.Body.String())
			}
		})
	}
}

func TestCORSAllowlist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := w.Header().Get("X-Request-Id")
	require.Len(t, generated, 36)
	require.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "abc", w.Header().Get("X-Request-Id"))
}

func TestBotAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		key    string
		header string
		status int
	}{
		{name: "missing", key: "bot-key", header: "", status: http.StatusUnauthorized},
		{name: "wrong", key: "bot-key", header: "other", status: http.StatusUnauthorized},
		{name: "ok", key: "bot-key", header: "bot-key", status: http.StatusOK},
		{name: "unconfigured", key: "", header: "", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/confirm", BotAuth(tc.key), func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodPost, "/confirm", nil)
			if tc.header != "" {
				req.Header.Set(BotAPIKeyHeader, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
		})
	}
}
