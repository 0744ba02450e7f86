package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/careerpilot-ke/careerpilot/internal/cache"
	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/orchestrator"
	"github.com/careerpilot-ke/careerpilot/internal/providers"
	"github.com/careerpilot-ke/careerpilot/internal/quota"
	"github.com/gin-gonic/gin"
)

// GenerateHandler exposes the AI generation endpoints.
type GenerateHandler struct {
	orchestrator *orchestrator.Service
}

// NewGenerateHandler constructs a GenerateHandler.
func NewGenerateHandler(svc *orchestrator.Service) *GenerateHandler {
	return &GenerateHandler{orchestrator: svc}
}

// generateRequest defines the request body for a generation call.
type generateRequest struct {
	Task         string  `json:"task"`
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt"`
	ImageBase64  string  `json:"image_base64"`
	ImageMIME    string  `json:"image_mime"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Provider     string  `json:"provider"`

	CacheKey  string `json:"cache_key"`
	CacheType string `json:"cache_type"`
	SkipCache bool   `json:"skip_cache"`
}

// Generate runs a cache-first generation for the authenticated user.
func (h *GenerateHandler) Generate(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body generateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing prompt"})
		return
	}

	task := models.TaskType(strings.TrimSpace(body.Task))
	if !models.KnownTask(task) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown task"})
		return
	}

	params := orchestrator.GenerateParams{
		UserID:       userID,
		Task:         task,
		Prompt:       body.Prompt,
		SystemPrompt: body.SystemPrompt,
		ImageMIME:    body.ImageMIME,
		Temperature:  body.Temperature,
		MaxTokens:    body.MaxTokens,
	}
	if body.MaxTokens <= 0 {
		params.MaxTokens = 2048
	}
	if strings.TrimSpace(body.Provider) != "" {
		kind, errKind := providers.ParseKind(body.Provider)
		if errKind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errKind.Error()})
			return
		}
		params.Provider = kind
	}
	if strings.TrimSpace(body.ImageBase64) != "" {
		image, errDecode := base64.StdEncoding.DecodeString(body.ImageBase64)
		if errDecode != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
			return
		}
		params.Image = image
	}

	opts := orchestrator.CacheOptions{
		Key:  strings.TrimSpace(body.CacheKey),
		Type: cache.Type(strings.TrimSpace(body.CacheType)),
		Skip: body.SkipCache,
	}

	result, errGenerate := h.orchestrator.GenerateCached(c.Request.Context(), params, opts)
	if errGenerate != nil {
		var exceeded *quota.ExceededError
		switch {
		case errors.As(errGenerate, &exceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":  errGenerate.Error(),
				"window": exceeded.Window,
			})
		case errors.Is(errGenerate, orchestrator.ErrNoProviderConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": errGenerate.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": errGenerate.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
