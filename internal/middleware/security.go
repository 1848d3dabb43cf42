package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

// RequestIDHeader carries the request correlation ID
const RequestIDHeader = "X-Request-ID"

// SecurityHeadersMiddleware adds comprehensive security headers to all responses
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent clickjacking attacks
		c.Header("X-Frame-Options", "DENY")

		// Prevent MIME-type confusion attacks
		c.Header("X-Content-Type-Options", "nosniff")

		// Enable XSS protection (legacy but still useful)
		c.Header("X-XSS-Protection", "1; mode=block")

		// Control referrer information
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// The API never serves documents
		csp := "default-src 'none'; " +
			"connect-src 'self'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'none'; " +
			"form-action 'none'"
		c.Header("Content-Security-Policy", csp)

		// Previews are computed per request and must not be cached
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")

		c.Header("Server", "")

		c.Next()
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing with environment-based configuration
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	var allowedOrigins []string
	if cfg.IsDevelopment() {
		// Development: Allow localhost and common dev ports
		allowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
			"http://localhost:5601",
			"http://localhost:8080",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:3001",
			"http://127.0.0.1:5601",
			"http://127.0.0.1:8080",
		}
	} else {
		// Production: Only allow specific domains from config
		allowedOrigins = cfg.GetAllowedOrigins()
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				c.Header("Access-Control-Allow-Origin", origin)
				break
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, API-Version, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "API-Version, X-Request-ID")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400") // 24 hours

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// InputValidationMiddleware caps request bodies at maxRequestSize bytes and
// rejects requests with missing or unexpected headers
func InputValidationMiddleware(maxRequestSize int64) gin.HandlerFunc {
	allowedTypes := []string{"application/json"}
	suspiciousPatterns := []string{
		"sqlmap",
		"nikto",
		"nmap",
		"masscan",
		"<script",
		"javascript:",
	}

	return func(c *gin.Context) {
		if maxRequestSize > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
		}

		// Validate Content-Type for requests carrying a body
		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
			contentType := c.GetHeader("Content-Type")
			if contentType == "" {
				abort(c, apperrors.InvalidInput("Content-Type header is required", nil).WithField("Content-Type"))
				return
			}

			isValidType := false
			for _, allowedType := range allowedTypes {
				if strings.HasPrefix(contentType, allowedType) {
					isValidType = true
					break
				}
			}
			if !isValidType {
				abort(c, apperrors.InvalidInput("Unsupported content type: "+contentType, nil).
					WithField("Content-Type").
					WithDetails("allowed types: "+strings.Join(allowedTypes, ", ")).
					WithStatus(http.StatusUnsupportedMediaType))
				return
			}
		}

		userAgent := c.GetHeader("User-Agent")
		if userAgent == "" {
			abort(c, apperrors.InvalidInput("User-Agent header is required", nil).WithField("User-Agent"))
			return
		}

		userAgentLower := strings.ToLower(userAgent)
		for _, pattern := range suspiciousPatterns {
			if strings.Contains(userAgentLower, pattern) {
				abort(c, apperrors.InvalidInput("Request blocked for security reasons", nil).WithStatus(http.StatusForbidden))
				return
			}
		}

		c.Next()
	}
}

// RateLimiter is a sliding window limiter keyed by client IP. Clients with
// no request inside the window are swept at most once per window.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	clients   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter allows limit requests per client within window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records a request from client and reports whether it is within the limit
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.window {
		l.sweep(now)
	}

	valid := l.clients[client][:0]
	for _, ts := range l.clients[client] {
		if now.Sub(ts) <= l.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= l.limit {
		l.clients[client] = valid
		return false
	}
	l.clients[client] = append(valid, now)
	return true
}

// sweep drops clients whose latest request fell out of the window
func (l *RateLimiter) sweep(now time.Time) {
	for client, stamps := range l.clients {
		if len(stamps) == 0 || now.Sub(stamps[len(stamps)-1]) > l.window {
			delete(l.clients, client)
		}
	}
	l.lastSweep = now
}

// Middleware returns the gin handler enforcing the limit
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := retryAfterSeconds(l.window)
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			abort(c, apperrors.InvalidInput("Rate limit exceeded", nil).
				WithDetails("retry after "+retryAfter+" seconds").
				WithStatus(http.StatusTooManyRequests))
			return
		}
		c.Next()
	}
}

// RateLimitingMiddleware allows 100 requests per minute per client IP
func RateLimitingMiddleware() gin.HandlerFunc {
	return NewRateLimiter(100, time.Minute).Middleware()
}

// RequestIDMiddleware propagates or assigns a request ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// LoggingMiddleware provides security-focused request logging
func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		statusCode := c.Writer.Status()

		fields := []interface{}{
			"status", statusCode,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"user_agent", c.Request.UserAgent(),
			"api_version", c.Writer.Header().Get("API-Version"),
		}
		if requestID, ok := c.Get("request_id"); ok {
			fields = append(fields, "request_id", requestID)
		}

		switch {
		case statusCode >= http.StatusInternalServerError:
			log.Warn("Request failed", fields...)
		case statusCode >= http.StatusBadRequest:
			log.Info("Request rejected", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}

func abort(c *gin.Context, err *apperrors.AppError) {
	status, body := apperrors.NewEnvelope(err)
	c.AbortWithStatusJSON(status, body)
}

func retryAfterSeconds(window time.Duration) string {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
