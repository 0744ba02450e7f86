package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/usage"
	"github.com/gin-gonic/gin"
)

// UsageHandler exposes admin usage reporting endpoints.
type UsageHandler struct {
	reporter *usage.Reporter
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(r *usage.Reporter) *UsageHandler {
	return &UsageHandler{reporter: r}
}

// Summary reports aggregated usage over the last N days (default 30).
func (h *UsageHandler) Summary(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed <= 0 || parsed > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
			return
		}
		days = parsed
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	summary, errSummarize := h.reporter.Summarize(c.Request.Context(), from, to)
	if errSummarize != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "usage summary failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
