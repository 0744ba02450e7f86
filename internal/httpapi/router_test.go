package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/careerpilot-ke/careerpilot/internal/cache"
	"github.com/careerpilot-ke/careerpilot/internal/config"
	"github.com/careerpilot-ke/careerpilot/internal/db"
	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/orchestrator"
	"github.com/careerpilot-ke/careerpilot/internal/quota"
	"github.com/careerpilot-ke/careerpilot/internal/security"
	"github.com/careerpilot-ke/careerpilot/internal/subscription"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "router-test-secret"
	cfg.Security.CredentialSecret = "router-test-credential-secret"

	cipher, errCipher := security.NewCipher(cfg.Security.CredentialSecret)
	if errCipher != nil {
		t.Fatalf("new cipher: %v", errCipher)
	}
	plans := subscription.NewService(conn)
	quotaManager := quota.NewManager(conn, plans)
	cacheManager := cache.NewManager(conn, plans)
	orchestratorService := orchestrator.NewService(orchestrator.Options{
		DB:     conn,
		Cipher: cipher,
		Plans:  plans,
		Quota:  quotaManager,
		Cache:  cacheManager,
	})

	engine := BuildRouter(Dependencies{
		DB:           conn,
		Config:       cfg,
		Cipher:       cipher,
		Orchestrator: orchestratorService,
		Quota:        quotaManager,
		Cache:        cacheManager,
	})
	return engine, conn, cfg
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		encoded, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func createTestUser(t *testing.T, conn *gorm.DB, email, password string) uint64 {
	t.Helper()
	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	user := models.User{Email: email, Password: hashed, Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return user.ID
}

func createTestAdmin(t *testing.T, conn *gorm.DB, username, password, totpSecret string) uint64 {
	t.Helper()
	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	admin := models.Admin{Username: username, Password: hashed, Active: true, TOTPSecret: totpSecret}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	return admin.ID
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/ai/generate"},
		{http.MethodGet, "/v1/quota/status"},
		{http.MethodGet, "/v1/admin/provider-configs"},
		{http.MethodPost, "/v1/admin/cache/cleanup"},
	}
	for _, p := range paths {
		recorder := doJSON(t, engine, p.method, p.path, "", nil)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s = %d, want 401", p.method, p.path, recorder.Code)
		}
	}
}

func TestLoginAndQuotaStatus(t *testing.T) {
	engine, conn, _ := newTestRouter(t)
	createTestUser(t, conn, "user@example.com", "hunter2secret")

	recorder := doJSON(t, engine, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "hunter2secret",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login = %d, body %s", recorder.Code, recorder.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &loginResp); errDecode != nil {
		t.Fatalf("decode login response: %v", errDecode)
	}
	if loginResp.Token == "" {
		t.Fatalf("expected a token")
	}

	recorder = doJSON(t, engine, http.MethodGet, "/v1/quota/status", loginResp.Token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("quota status = %d, body %s", recorder.Code, recorder.Body.String())
	}
	var statusResp struct {
		Windows []quota.WindowStatus `json:"windows"`
	}
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &statusResp); errDecode != nil {
		t.Fatalf("decode status response: %v", errDecode)
	}
	if len(statusResp.Windows) != 3 {
		t.Fatalf("expected 3 quota windows, got %d", len(statusResp.Windows))
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	engine, conn, _ := newTestRouter(t)
	createTestUser(t, conn, "user@example.com", "hunter2secret")

	recorder := doJSON(t, engine, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "user@example.com",
		"password": "wrong",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("login = %d, want 401", recorder.Code)
	}
}

func TestGenerateWithoutProviderIs503(t *testing.T) {
	engine, conn, cfg := newTestRouter(t)
	userID := createTestUser(t, conn, "user@example.com", "hunter2secret")

	token, errToken := security.GenerateToken(cfg.Auth.JWTSecret, userID, "user@example.com", cfg.TokenExpiry())
	if errToken != nil {
		t.Fatalf("generate token: %v", errToken)
	}

	recorder := doJSON(t, engine, http.MethodPost, "/v1/ai/generate", token, map[string]any{
		"task":   "extraction",
		"prompt": "extract this job posting",
	})
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("generate = %d, want 503, body %s", recorder.Code, recorder.Body.String())
	}
}

func TestGenerateRejectsUnknownTask(t *testing.T) {
	engine, conn, cfg := newTestRouter(t)
	userID := createTestUser(t, conn, "user@example.com", "hunter2secret")

	token, errToken := security.GenerateToken(cfg.Auth.JWTSecret, userID, "user@example.com", cfg.TokenExpiry())
	if errToken != nil {
		t.Fatalf("generate token: %v", errToken)
	}

	recorder := doJSON(t, engine, http.MethodPost, "/v1/ai/generate", token, map[string]any{
		"task":   "poetry",
		"prompt": "compose a haiku",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("generate = %d, want 400", recorder.Code)
	}
}

func TestAdminProviderConfigDefaultInvariant(t *testing.T) {
	engine, conn, _ := newTestRouter(t)
	createTestAdmin(t, conn, "root", "admin-password", "")

	recorder := doJSON(t, engine, http.MethodPost, "/v1/admin/auth/login", "", map[string]string{
		"username": "root",
		"password": "admin-password",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("admin login = %d, body %s", recorder.Code, recorder.Body.String())
	}
	var loginResp struct {
		Token       string `json:"token"`
		MFARequired bool   `json:"mfa_required"`
	}
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &loginResp); errDecode != nil {
		t.Fatalf("decode login response: %v", errDecode)
	}
	if loginResp.MFARequired {
		t.Fatalf("admin without TOTP must not require MFA")
	}

	create := func(isDefault bool) uint64 {
		recorder := doJSON(t, engine, http.MethodPost, "/v1/admin/provider-configs", loginResp.Token, map[string]any{
			"provider":   "gemini",
			"model":      "gemini-2.0-flash",
			"api_key":    "sk-test",
			"is_default": isDefault,
		})
		if recorder.Code != http.StatusCreated {
			t.Fatalf("create config = %d, body %s", recorder.Code, recorder.Body.String())
		}
		var created struct {
			ID uint64 `json:"id"`
		}
		if errDecode := json.Unmarshal(recorder.Body.Bytes(), &created); errDecode != nil {
			t.Fatalf("decode create response: %v", errDecode)
		}
		return created.ID
	}

	create(true)
	secondID := create(true)

	var defaults []models.ProviderConfig
	if errFind := conn.Where("provider = ? AND model = ? AND is_default = ?", "gemini", "gemini-2.0-flash", true).
		Find(&defaults).Error; errFind != nil {
		t.Fatalf("query defaults: %v", errFind)
	}
	if len(defaults) != 1 {
		t.Fatalf("expected exactly one default config, got %d", len(defaults))
	}
	if defaults[0].ID != secondID {
		t.Fatalf("expected newest config %d to hold the default, got %d", secondID, defaults[0].ID)
	}

	list := func(path string) int {
		recorder := doJSON(t, engine, http.MethodGet, path, loginResp.Token, nil)
		if recorder.Code != http.StatusOK {
			t.Fatalf("list configs = %d, body %s", recorder.Code, recorder.Body.String())
		}
		var listResp struct {
			Configs []json.RawMessage `json:"configs"`
		}
		if errDecode := json.Unmarshal(recorder.Body.Bytes(), &listResp); errDecode != nil {
			t.Fatalf("decode list response: %v", errDecode)
		}
		return len(listResp.Configs)
	}
	if got := list("/v1/admin/provider-configs?q=FLASH"); got != 2 {
		t.Fatalf("case-insensitive model filter matched %d configs, want 2", got)
	}
	if got := list("/v1/admin/provider-configs?q=no-such-model"); got != 0 {
		t.Fatalf("non-matching filter returned %d configs, want 0", got)
	}
}

func TestAdminMutationsRequireVerifiedMFA(t *testing.T) {
	engine, conn, _ := newTestRouter(t)
	createTestAdmin(t, conn, "root", "admin-password", "JBSWY3DPEHPK3PXP")

	recorder := doJSON(t, engine, http.MethodPost, "/v1/admin/auth/login", "", map[string]string{
		"username": "root",
		"password": "admin-password",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("admin login = %d", recorder.Code)
	}
	var loginResp struct {
		Token       string `json:"token"`
		MFARequired bool   `json:"mfa_required"`
	}
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &loginResp); errDecode != nil {
		t.Fatalf("decode login response: %v", errDecode)
	}
	if !loginResp.MFARequired {
		t.Fatalf("admin with TOTP enrolled must require MFA")
	}

	// Read endpoints stay reachable before verification.
	recorder = doJSON(t, engine, http.MethodGet, "/v1/admin/provider-configs", loginResp.Token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list configs = %d, want 200", recorder.Code)
	}

	recorder = doJSON(t, engine, http.MethodPost, "/v1/admin/provider-configs", loginResp.Token, map[string]any{
		"provider": "gemini",
		"api_key":  "sk-test",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("create config = %d, want 403", recorder.Code)
	}

	recorder = doJSON(t, engine, http.MethodPost, "/v1/admin/cache/cleanup", loginResp.Token, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("cache cleanup = %d, want 403", recorder.Code)
	}
}
