package httpapi

import (
	"net/http"

	"github.com/careerpilot-ke/careerpilot/internal/quota"
	"github.com/gin-gonic/gin"
)

// QuotaHandler exposes quota utilization endpoints.
type QuotaHandler struct {
	quota *quota.Manager
}

// NewQuotaHandler constructs a QuotaHandler.
func NewQuotaHandler(m *quota.Manager) *QuotaHandler {
	return &QuotaHandler{quota: m}
}

// Status reports window utilization for the authenticated user.
func (h *QuotaHandler) Status(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	windows, errStatus := h.quota.Status(c.Request.Context(), userID)
	if errStatus != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota status failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"windows": windows})
}
