package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/keepstack/keepsync/internal/cursor"
	"github.com/keepstack/keepsync/internal/insights"
	"github.com/keepstack/keepsync/internal/middleware"
	"github.com/keepstack/keepsync/internal/notify"
)

// Deps carries the services the device API exposes.
type Deps struct {
	DB        *gorm.DB
	Poller    *insights.Poller
	Journal   *insights.Journal
	Cursors   cursor.Store
	Hub       *notify.Hub
	Taps      *notify.TapRouter
	Gate      *notify.PermissionGate
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers the device
// API routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Poller == nil {
		return nil, fmt.Errorf("poller must be provided")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("hub must be provided")
	}
	if deps.Taps == nil {
		return nil, fmt.Errorf("tap router must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	// Basic rate limiting: 120 requests/minute per IP+path
	r.Use(middleware.RateLimit(deps.RateStore, 120, time.Minute))
	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", healthHandler(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		registerStatusRoutes(api, deps)
		registerTapRoutes(api, deps)
		registerStreamRoutes(api, deps)
	}

	return r, nil
}
