package api

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Domenick1991/airticketing/internal/auth"
	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type RouterConfig struct {
	Authenticator  *auth.Authenticator
	RateLimiter    *RateLimiter
	RequestTimeout time.Duration
	// SwaggerDir holds a generated doc.json; the UI is served only when set.
	SwaggerDir string
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

type Handlers struct {
	Flights  *FlightHandler
	Bookings *BookingHandler
	Payments *PaymentHandler
}

func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), Metrics())

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Ready != nil {
			if err := cfg.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerDir != "" {
		ui := httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))
		router.GET("/swagger/*any", func(c *gin.Context) {
			if c.Param("any") == "/doc.json" {
				c.File(filepath.Join(cfg.SwaggerDir, "doc.json"))
				return
			}
			ui(c.Writer, c.Request)
		})
	}

	v1 := router.Group("/api/v1")
	if cfg.RateLimiter != nil {
		v1.Use(cfg.RateLimiter.Middleware())
	}
	if cfg.Authenticator != nil {
		v1.Use(Authenticate(cfg.Authenticator))
	}
	v1.Use(Timeout(cfg.RequestTimeout))

	admin := func(g *gin.RouterGroup) *gin.RouterGroup {
		if cfg.Authenticator == nil {
			return g
		}
		return g.Group("", RequireRole(domain.RoleAdmin))
	}

	if h.Flights != nil {
		g := v1.Group("/flights")
		h.Flights.Register(g, admin(g))
	}
	if h.Bookings != nil {
		g := v1.Group("/bookings")
		h.Bookings.Register(g, admin(g))
	}
	if h.Payments != nil {
		g := v1.Group("/payments")
		h.Payments.Register(g, admin(g))
	}
	return router
}
