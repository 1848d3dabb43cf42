package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

const previewPath = "/internal/risk_score/preview"

// newTestRouter serves the preview path behind the given middleware
func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw...)
	router.Any(previewPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"after_keys": gin.H{}, "scores": gin.H{}})
	})
	return router
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	router := newTestRouter(SecurityHeadersMiddleware())
	w := serve(router, httptest.NewRequest(http.MethodGet, previewPath, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Security-Policy"), "default-src 'none'"))

	// previews are never cached
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
	assert.Equal(t, "0", w.Header().Get("Expires"))
}

func TestCORSMiddleware(t *testing.T) {
	cases := map[string]struct {
		cfg     *config.Config
		origin  string
		allowed bool
	}{
		"kibana dev server":     {cfg: &config.Config{Environment: "development"}, origin: "http://localhost:5601", allowed: true},
		"dev unknown origin":    {cfg: &config.Config{Environment: "development"}, origin: "https://elsewhere.example", allowed: false},
		"production configured": {cfg: &config.Config{Environment: "production", AllowedOrigins: "https://siem.example"}, origin: "https://siem.example", allowed: true},
		"production localhost":  {cfg: &config.Config{Environment: "production", AllowedOrigins: "https://siem.example"}, origin: "http://localhost:5601", allowed: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			router := newTestRouter(CORSMiddleware(tc.cfg))
			req := httptest.NewRequest(http.MethodGet, previewPath, nil)
			req.Header.Set("Origin", tc.origin)
			w := serve(router, req)

			if tc.allowed {
				assert.Equal(t, tc.origin, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "API-Version")
			assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "API-Version")
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	router := newTestRouter(CORSMiddleware(&config.Config{Environment: "development"}))
	req := httptest.NewRequest(http.MethodOptions, previewPath, nil)
	req.Header.Set("Origin", "http://localhost:5601")
	req.Header.Set("Access-Control-Request-Headers", "API-Version")
	w := serve(router, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5601", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Body.String())
}

func TestInputValidationMiddleware(t *testing.T) {
	cases := []struct {
		name        string
		method      string
		contentType string
		userAgent   string
		wantStatus  int
		wantMessage string
	}{
		{name: "json preview", method: http.MethodPost, contentType: "application/json; charset=utf-8", userAgent: "riskctl/v1", wantStatus: http.StatusOK},
		{name: "missing content type", method: http.MethodPost, userAgent: "riskctl/v1", wantStatus: http.StatusBadRequest, wantMessage: "Content-Type header is required"},
		{name: "form body", method: http.MethodPost, contentType: "application/x-www-form-urlencoded", userAgent: "riskctl/v1", wantStatus: http.StatusUnsupportedMediaType, wantMessage: "Unsupported content type"},
		{name: "no user agent", method: http.MethodGet, wantStatus: http.StatusBadRequest, wantMessage: "User-Agent header is required"},
		{name: "scanner", method: http.MethodGet, userAgent: "sqlmap/1.7", wantStatus: http.StatusForbidden, wantMessage: "Request blocked for security reasons"},
		{name: "script in user agent", method: http.MethodGet, userAgent: "x <script>", wantStatus: http.StatusForbidden, wantMessage: "Request blocked for security reasons"},
	}

	router := newTestRouter(InputValidationMiddleware(1024))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, previewPath, strings.NewReader(`{"data_view_id":"dv"}`))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			if tc.userAgent != "" {
				req.Header.Set("User-Agent", tc.userAgent)
			}
			w := serve(router, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantMessage != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Contains(t, body["message"], tc.wantMessage)
				assert.Contains(t, body, "full_error")
			}
		})
	}
}

func TestInputValidationMiddleware_LimitsBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(InputValidationMiddleware(8))
	router.POST("/test", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(strings.Repeat("x", 64)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRateLimitingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(NewRateLimiter(3, time.Minute).Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	// Make multiple requests from the same IP
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345" // Simulate same IP
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i < 3 {
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Equal(t, "60", w.Header().Get("Retry-After"))
		}
	}

	// Another client is unaffected
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.2:12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	clock := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, time.Minute)
	limiter.now = func() time.Time { return clock }

	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	clock = clock.Add(61 * time.Second)
	assert.True(t, limiter.Allow("a"))
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	clock := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(5, time.Minute)
	limiter.now = func() time.Time { return clock }

	for i := 0; i < 1000; i++ {
		require.True(t, limiter.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256)))
	}
	assert.Equal(t, 1000, len(limiter.clients))

	clock = clock.Add(time.Hour)
	assert.True(t, limiter.Allow("192.168.1.1"))
	assert.Equal(t, 1, len(limiter.clients))
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: "debug", Output: &buf})

	router := gin.New()
	router.Use(RequestIDMiddleware(), LoggingMiddleware(log))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	req := httptest.NewRequest("GET", "/test?x=1", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	out := buf.String()
	assert.Contains(t, out, `"message":"Request completed"`)
	assert.Contains(t, out, `"path":"/test?x=1"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"user_agent":"test-agent"`)
}
