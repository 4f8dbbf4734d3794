package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/airticketing/internal/auth"
	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/logging"
	"github.com/Domenick1991/airticketing/internal/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxUserID       = "user_id"
	ctxRole         = "role"
)

// RequestLogger tags the request context with a request id and writes one log
// line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = logging.NewRequestID()
		}
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		logger := logging.Ctx(c.Request.Context())
		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Timeout bounds every storage call made while serving the request.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.clients[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[key] = lim
	}
	return lim
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit <= 0 {
			c.Next()
			return
		}
		if !l.limiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Authenticate requires a valid bearer token and exposes its user id and role
// to handlers.
func Authenticate(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := a.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	id, _ := c.Get(ctxUserID)
	v, _ := id.(int64)
	return v
}

func currentRole(c *gin.Context) domain.Role {
	role, _ := c.Get(ctxRole)
	v, _ := role.(domain.Role)
	return v
}

// canAccessUser reports whether the caller may act on behalf of userID.
// Requests without an authenticated caller are allowed; the router decides
// whether authentication is required at all.
func canAccessUser(c *gin.Context, userID int64) bool {
	caller := currentUserID(c)
	return caller == 0 || caller == userID || currentRole(c) == domain.RoleAdmin
}
