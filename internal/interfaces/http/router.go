package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maxnet-vpn/maxnet/internal/infrastructure/ratelimit"
	"github.com/maxnet-vpn/maxnet/internal/interfaces/http/middleware"
)

// lockTTL bounds how long a crashed holder can keep a named lease before it
// expires on its own.
const lockTTL = 30 * time.Second

// webhookRateLimit bounds inbound webhook deliveries per source IP.
var webhookRateLimit = ratelimit.Config{Requests: 120, Window: time.Minute}

// SetupRoutes configures all HTTP routes.
func (c *Container) SetupRoutes() {
	c.engine.Use(middleware.RequestID())
	c.engine.Use(middleware.Logger(c.log))
	c.engine.Use(middleware.Recovery(c.log))

	c.engine.GET("/health", c.healthHandler.Check)

	c.engine.POST("/webhooks/:provider",
		middleware.RateLimit(c.limiter, webhookRateLimit, c.log),
		c.webhookHandler.Handle)

	admin := c.engine.Group("/admin")
	admin.Use(middleware.AdminToken(c.cfg.Server.AdminToken))
	{
		admin.POST("/entitlements", c.adminHandler.ManualGrant)
		admin.GET("/entitlements", c.adminHandler.ListRecent)
		admin.GET("/entitlements/:id", c.adminHandler.Get)
		admin.DELETE("/entitlements/:id", c.adminHandler.Delete)
		admin.POST("/entitlements/:id/activate", c.adminHandler.Activate)
		admin.POST("/entitlements/:id/deactivate", c.adminHandler.Deactivate)

		admin.GET("/subjects/:subject_id/entitlement", c.adminHandler.LatestForSubject)

		admin.POST("/promo-codes", c.adminHandler.CreatePromoCodes)
		admin.GET("/promo-codes", c.adminHandler.ListPromoCodes)
		admin.POST("/promo-codes/redeem", c.adminHandler.RedeemPromo)

		admin.GET("/pool/stats", c.adminHandler.PoolStats)
	}
}

// GetEngine returns the Gin engine.
func (c *Container) GetEngine() *gin.Engine {
	return c.engine
}
