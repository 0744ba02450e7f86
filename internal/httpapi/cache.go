package httpapi

import (
	"net/http"

	"github.com/careerpilot-ke/careerpilot/internal/cache"
	"github.com/gin-gonic/gin"
)

// CacheHandler exposes cache statistics and maintenance endpoints.
type CacheHandler struct {
	cache *cache.Manager
}

// NewCacheHandler constructs a CacheHandler.
func NewCacheHandler(m *cache.Manager) *CacheHandler {
	return &CacheHandler{cache: m}
}

// Stats returns aggregate cache statistics.
func (h *CacheHandler) Stats(c *gin.Context) {
	stats, errStats := h.cache.GetStats(c.Request.Context())
	if errStats != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache stats failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Cleanup removes expired entries and reports how many were deleted.
func (h *CacheHandler) Cleanup(c *gin.Context) {
	removed, errCleanup := h.cache.CleanupExpired(c.Request.Context())
	if errCleanup != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
