package api

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"loto-rfid-backend/config"
	"loto-rfid-backend/internal/mw"
	"loto-rfid-backend/internal/store"
)

// Options carries the router's dependencies.
type Options struct {
	Store  store.Store
	Status StatusReader
	// Broker reports whether the MQTT link is up; nil skips the check.
	Broker healthcheck.Check
	Server config.ServerConfig
	Log    *zap.Logger
}

// NewRouter creates and configures a new Gin router.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(opts.Log, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(opts.Log, true))

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	if sqlDB, err := opts.Store.DB().DB(); err == nil {
		health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(sqlDB, time.Second))
	} else {
		opts.Log.Warn("database handle unavailable for readiness check", zap.Error(err))
	}
	if opts.Broker != nil {
		health.AddReadinessCheck("mqtt", opts.Broker)
	}

	r.GET("/live", gin.WrapF(health.LiveEndpoint))
	r.GET("/ready", gin.WrapF(health.ReadyEndpoint))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := NewHandler(opts.Store, opts.Status, opts.Log.Named("api"))
	rateLimiter := mw.RateLimiter(rate.Limit(opts.Server.RateLimitPerSec), opts.Server.RateLimitBurst)

	api := r.Group("/api")
	api.Use(rateLimiter)
	if ttl := time.Duration(opts.Server.CacheTTLSeconds) * time.Second; ttl > 0 {
		api.Use(mw.Cache(cache.New(ttl, 2*ttl), ttl))
	}
	{
		// GET /api/bays/{module_code}
		api.GET("/bays/:module_code", handler.GetBay)
	}

	return r
}
