package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/careerpilot-ke/careerpilot/internal/db"
	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/providers"
	"github.com/careerpilot-ke/careerpilot/internal/security"
	"github.com/careerpilot-ke/careerpilot/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProviderConfigHandler is the admin CRUD surface over provider configs.
type ProviderConfigHandler struct {
	db      *gorm.DB
	cipher  *security.Cipher
	factory providers.Factory
}

// NewProviderConfigHandler constructs a ProviderConfigHandler. A nil factory
// defaults to the real provider constructors.
func NewProviderConfigHandler(db *gorm.DB, cipher *security.Cipher, factory providers.Factory) *ProviderConfigHandler {
	if factory == nil {
		factory = providers.New
	}
	return &ProviderConfigHandler{db: db, cipher: cipher, factory: factory}
}

// providerConfigRequest defines the create/update request body. A nil pointer
// field on update means "leave unchanged".
type providerConfigRequest struct {
	Provider          string   `json:"provider"`
	Model             string   `json:"model"`
	APIKey            string   `json:"api_key"`
	Active            *bool    `json:"active"`
	IsDefault         *bool    `json:"is_default"`
	DefaultForTasks   []string `json:"default_for_tasks"`
	DailyTokenLimit   *int64   `json:"daily_token_limit"`
	MonthlyTokenLimit *int64   `json:"monthly_token_limit"`
	Validate          bool     `json:"validate"`
}

// providerConfigResponse is the JSON shape for a config. Credentials are
// never echoed; only a masked fragment is.
type providerConfigResponse struct {
	ID                uint64   `json:"id"`
	Provider          string   `json:"provider"`
	Model             string   `json:"model"`
	APIKeyMasked      string   `json:"api_key_masked"`
	Active            bool     `json:"active"`
	IsDefault         bool     `json:"is_default"`
	DefaultForTasks   []string `json:"default_for_tasks,omitempty"`
	DailyTokenLimit   *int64   `json:"daily_token_limit,omitempty"`
	MonthlyTokenLimit *int64   `json:"monthly_token_limit,omitempty"`
}

func (h *ProviderConfigHandler) toResponse(row *models.ProviderConfig) providerConfigResponse {
	resp := providerConfigResponse{
		ID:                row.ID,
		Provider:          row.Provider,
		Model:             row.Model,
		Active:            row.Active,
		IsDefault:         row.IsDefault,
		DailyTokenLimit:   row.DailyTokenLimit,
		MonthlyTokenLimit: row.MonthlyTokenLimit,
	}
	if plaintext, errDecrypt := h.cipher.Decrypt(row.APIKeyEncrypted); errDecrypt == nil {
		resp.APIKeyMasked = util.HideAPIKey(plaintext)
	}
	if len(row.DefaultForTasks) > 0 {
		if errDecode := json.Unmarshal(row.DefaultForTasks, &resp.DefaultForTasks); errDecode != nil {
			log.WithError(errDecode).Warnf("provider config: decode default_for_tasks failed (id=%d)", row.ID)
		}
	}
	return resp
}

// List returns every provider config with credentials masked. An optional
// `q` parameter filters by model name, case-insensitively.
func (h *ProviderConfigHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Order("id ASC")
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "model"), db.NormalizeLikePattern(h.db, "%"+q+"%"))
	}
	var rows []models.ProviderConfig
	if errFind := query.Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]providerConfigResponse, 0, len(rows))
	for i := range rows {
		out = append(out, h.toResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"configs": out})
}

// Create stores a new provider config. The credential is encrypted at rest.
// When is_default is set, any other default for the same provider and model
// is cleared so at most one remains.
func (h *ProviderConfigHandler) Create(c *gin.Context) {
	var body providerConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	kind, errKind := providers.ParseKind(body.Provider)
	if errKind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errKind.Error()})
		return
	}
	model := strings.TrimSpace(body.Model)
	if model == "" {
		model, _ = providers.DefaultModels(kind)
	}
	apiKey := strings.TrimSpace(body.APIKey)
	if apiKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing api_key"})
		return
	}
	tasks, errTasks := normalizeTasks(body.DefaultForTasks)
	if errTasks != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errTasks.Error()})
		return
	}

	if body.Validate {
		if errValidate := h.validateCredential(c, kind, apiKey, model); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credential validation failed: " + errValidate.Error()})
			return
		}
	}

	encrypted, errEncrypt := h.cipher.Encrypt(apiKey)
	if errEncrypt != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encrypt credential failed"})
		return
	}

	row := models.ProviderConfig{
		Provider:          string(kind),
		Model:             model,
		APIKeyEncrypted:   encrypted,
		Active:            true,
		DailyTokenLimit:   body.DailyTokenLimit,
		MonthlyTokenLimit: body.MonthlyTokenLimit,
		DefaultForTasks:   tasks,
	}
	if body.Active != nil {
		row.Active = *body.Active
	}
	if body.IsDefault != nil {
		row.IsDefault = *body.IsDefault
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if row.IsDefault {
			if errClear := clearDefault(tx, row.Provider, row.Model, 0); errClear != nil {
				return errClear
			}
		}
		return tx.Create(&row).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create config failed"})
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(&row))
}

// Update applies a partial update. Omitted fields keep their stored values.
func (h *ProviderConfigHandler) Update(c *gin.Context) {
	id, errID := parseID(c.Param("id"))
	if errID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body providerConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var row models.ProviderConfig
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if strings.TrimSpace(body.Provider) != "" {
		kind, errKind := providers.ParseKind(body.Provider)
		if errKind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errKind.Error()})
			return
		}
		row.Provider = string(kind)
	}
	if strings.TrimSpace(body.Model) != "" {
		row.Model = strings.TrimSpace(body.Model)
	}
	if apiKey := strings.TrimSpace(body.APIKey); apiKey != "" {
		if body.Validate {
			if errValidate := h.validateCredential(c, providers.Kind(row.Provider), apiKey, row.Model); errValidate != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "credential validation failed: " + errValidate.Error()})
				return
			}
		}
		encrypted, errEncrypt := h.cipher.Encrypt(apiKey)
		if errEncrypt != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encrypt credential failed"})
			return
		}
		row.APIKeyEncrypted = encrypted
	}
	if body.Active != nil {
		row.Active = *body.Active
	}
	if body.IsDefault != nil {
		row.IsDefault = *body.IsDefault
	}
	if body.DefaultForTasks != nil {
		tasks, errTasks := normalizeTasks(body.DefaultForTasks)
		if errTasks != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errTasks.Error()})
			return
		}
		row.DefaultForTasks = tasks
	}
	if body.DailyTokenLimit != nil {
		row.DailyTokenLimit = body.DailyTokenLimit
	}
	if body.MonthlyTokenLimit != nil {
		row.MonthlyTokenLimit = body.MonthlyTokenLimit
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if row.IsDefault {
			if errClear := clearDefault(tx, row.Provider, row.Model, row.ID); errClear != nil {
				return errClear
			}
		}
		return tx.Save(&row).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update config failed"})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(&row))
}

// Delete removes a provider config. Usage logs referencing it keep their
// provider_config_id for attribution; there is no foreign key cascade.
func (h *ProviderConfigHandler) Delete(c *gin.Context) {
	id, errID := parseID(c.Param("id"))
	if errID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Delete(&models.ProviderConfig{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete config failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// validateCredential performs a live call against the provider.
func (h *ProviderConfigHandler) validateCredential(c *gin.Context, kind providers.Kind, apiKey, model string) error {
	adapter, errNew := h.factory(kind, apiKey, model)
	if errNew != nil {
		return errNew
	}
	return adapter.ValidateCredentials(c.Request.Context())
}

// clearDefault unsets is_default on every other config for the provider+model.
func clearDefault(tx *gorm.DB, provider, model string, keepID uint64) error {
	return tx.Model(&models.ProviderConfig{}).
		Where("provider = ? AND model = ? AND is_default = ? AND id <> ?", provider, model, true, keepID).
		Update("is_default", false).Error
}

// normalizeTasks validates and encodes the default-task list.
func normalizeTasks(raw []string) (datatypes.JSON, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	tasks := make([]string, 0, len(raw))
	for _, item := range raw {
		task := models.TaskType(strings.TrimSpace(item))
		if !models.KnownTask(task) {
			return nil, errors.New("unknown task type: " + string(task))
		}
		tasks = append(tasks, string(task))
	}
	encoded, errMarshal := json.Marshal(tasks)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(encoded), nil
}

// parseID parses a positive numeric path id.
func parseID(raw string) (uint64, error) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if errParse != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
