// Package httpapi is the gin HTTP surface over the orchestration, quota and
// cache services.
package httpapi

import (
	"net/http"

	"github.com/careerpilot-ke/careerpilot/internal/cache"
	"github.com/careerpilot-ke/careerpilot/internal/config"
	"github.com/careerpilot-ke/careerpilot/internal/orchestrator"
	"github.com/careerpilot-ke/careerpilot/internal/providers"
	"github.com/careerpilot-ke/careerpilot/internal/quota"
	"github.com/careerpilot-ke/careerpilot/internal/security"
	"github.com/careerpilot-ke/careerpilot/internal/usage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies carries everything the router needs.
type Dependencies struct {
	DB           *gorm.DB
	Config       *config.Config
	Cipher       *security.Cipher
	Orchestrator *orchestrator.Service
	Quota        *quota.Manager
	Cache        *cache.Manager
	Factory      providers.Factory // optional; tests substitute fakes
}

// BuildRouter assembles the full route tree.
//
// User routes require a user JWT. Admin routes require an admin JWT; mutating
// admin routes additionally require an MFA-verified session.
func BuildRouter(deps Dependencies) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	authHandler := NewAuthHandler(deps.DB, deps.Config)
	mfaHandler := NewMFAHandler(deps.DB, deps.Config)
	generateHandler := NewGenerateHandler(deps.Orchestrator)
	quotaHandler := NewQuotaHandler(deps.Quota)
	cacheHandler := NewCacheHandler(deps.Cache)
	configHandler := NewProviderConfigHandler(deps.DB, deps.Cipher, deps.Factory)
	usageHandler := NewUsageHandler(usage.NewReporter(deps.DB))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")

	v1.POST("/auth/login", authHandler.Login)
	v1.POST("/admin/auth/login", authHandler.AdminLogin)

	user := v1.Group("", UserAuth(deps.Config.Auth.JWTSecret))
	{
		user.POST("/ai/generate", generateHandler.Generate)
		user.GET("/quota/status", quotaHandler.Status)
	}

	admin := v1.Group("/admin", AdminAuth(deps.Config.Auth.JWTSecret))
	{
		admin.POST("/mfa/totp/setup", mfaHandler.SetupTOTP)
		admin.POST("/mfa/totp/verify", mfaHandler.VerifyTOTP)

		admin.GET("/provider-configs", configHandler.List)
		admin.GET("/cache/stats", cacheHandler.Stats)
		admin.GET("/usage/summary", usageHandler.Summary)

		verified := admin.Group("", AdminMFARequired())
		{
			verified.POST("/provider-configs", configHandler.Create)
			verified.PUT("/provider-configs/:id", configHandler.Update)
			verified.DELETE("/provider-configs/:id", configHandler.Delete)
			verified.POST("/cache/cleanup", cacheHandler.Cleanup)
		}
	}

	return engine
}
