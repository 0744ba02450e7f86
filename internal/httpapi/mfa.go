package httpapi

import (
	"net/http"
	"strings"

	"github.com/careerpilot-ke/careerpilot/internal/config"
	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

// MFAHandler handles TOTP enrolment and verification for admins.
type MFAHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB, cfg *config.Config) *MFAHandler {
	return &MFAHandler{db: db, cfg: cfg}
}

// SetupTOTP generates a TOTP secret for the authenticated admin and returns
// the provisioning URL. The secret replaces any previous enrolment.
func (h *MFAHandler) SetupTOTP(c *gin.Context) {
	adminID := getAdminID(c)
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query admin failed"})
		return
	}

	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      "CareerPilot",
		AccountName: admin.Username,
	})
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.Admin{}).
		Where("id = ?", adminID).
		Update("totp_secret", key.Secret()).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store totp secret failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"secret": key.Secret(), "url": key.URL()})
}

// verifyTOTPRequest defines the request body for TOTP verification.
type verifyTOTPRequest struct {
	Code string `json:"code"`
}

// VerifyTOTP checks a TOTP code and issues an MFA-verified admin token.
func (h *MFAHandler) VerifyTOTP(c *gin.Context) {
	adminID := getAdminID(c)
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body verifyTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	code := strings.TrimSpace(body.Code)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query admin failed"})
		return
	}
	if admin.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enrolled"})
		return
	}
	if !totp.Validate(code, admin.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	token, errToken := security.GenerateAdminToken(h.cfg.Auth.JWTSecret, admin.ID, admin.Username, true, h.cfg.TokenExpiry())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
