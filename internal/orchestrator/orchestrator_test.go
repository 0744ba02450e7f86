package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/cache"
	"github.com/careerpilot-ke/careerpilot/internal/db"
	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/providers"
	"github.com/careerpilot-ke/careerpilot/internal/quota"
	"github.com/careerpilot-ke/careerpilot/internal/security"
	"github.com/careerpilot-ke/careerpilot/internal/subscription"
	"gorm.io/gorm"
)

// fakeAdapter scripts per-model outcomes so fallback paths are deterministic.
type fakeAdapter struct {
	kind     providers.Kind
	model    string
	failFor  map[string]error
	response string
	calls    *[]string
}

func (f *fakeAdapter) Kind() providers.Kind { return f.kind }
func (f *fakeAdapter) Model() string        { return f.model }

func (f *fakeAdapter) GenerateText(ctx context.Context, req providers.GenerateRequest) (string, error) {
	*f.calls = append(*f.calls, f.model)
	if errFail, ok := f.failFor[f.model]; ok {
		return "", errFail
	}
	return f.response, nil
}

func (f *fakeAdapter) GenerateWithImage(ctx context.Context, req providers.GenerateRequest, image []byte, mimeType string) (string, error) {
	return f.GenerateText(ctx, req)
}

func (f *fakeAdapter) ValidateCredentials(ctx context.Context) error { return nil }

// fakeFactory builds fakeAdapters and records every attempted model.
type fakeFactory struct {
	failFor  map[string]error
	response string
	calls    []string
}

func (f *fakeFactory) build(kind providers.Kind, apiKey, model string) (providers.Adapter, error) {
	if apiKey == "" {
		return nil, providers.ErrEmptyCredential
	}
	return &fakeAdapter{
		kind:     kind,
		model:    model,
		failFor:  f.failFor,
		response: f.response,
		calls:    &f.calls,
	}, nil
}

type testEnv struct {
	conn    *gorm.DB
	cipher  *security.Cipher
	factory *fakeFactory
	service *Service
}

func newTestEnv(t *testing.T, factory *fakeFactory, env map[providers.Kind]string) *testEnv {
	t.Helper()
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	cipher, errCipher := security.NewCipher("orchestrator-test-secret")
	if errCipher != nil {
		t.Fatalf("new cipher: %v", errCipher)
	}
	plans := subscription.NewService(conn)
	service := NewService(Options{
		DB:             conn,
		Cipher:         cipher,
		Plans:          plans,
		Quota:          quota.NewManager(conn, plans),
		Cache:          cache.NewManager(conn, plans),
		Factory:        factory.build,
		EnvCredentials: env,
	})
	return &testEnv{conn: conn, cipher: cipher, factory: factory, service: service}
}

func (e *testEnv) createConfig(t *testing.T, kind providers.Kind, model string) uint64 {
	t.Helper()
	encrypted, errEncrypt := e.cipher.Encrypt("stored-api-key")
	if errEncrypt != nil {
		t.Fatalf("encrypt credential: %v", errEncrypt)
	}
	row := models.ProviderConfig{
		Provider:        string(kind),
		Model:           model,
		APIKeyEncrypted: encrypted,
		Active:          true,
		IsDefault:       true,
	}
	if errCreate := e.conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("create provider config: %v", errCreate)
	}
	return row.ID
}

func (e *testEnv) usageRows(t *testing.T) []models.UsageLog {
	t.Helper()
	var rows []models.UsageLog
	if errFind := e.conn.Order("id ASC").Find(&rows).Error; errFind != nil {
		t.Fatalf("query usage logs: %v", errFind)
	}
	return rows
}

func baseParams() GenerateParams {
	return GenerateParams{
		UserID:    1,
		Task:      models.TaskExtraction,
		Prompt:    "extract the job requirements",
		MaxTokens: 256,
	}
}

func TestGenerateSuccessLogsUsage(t *testing.T) {
	factory := &fakeFactory{response: "generated text"}
	env := newTestEnv(t, factory, nil)
	configID := env.createConfig(t, providers.KindGemini, "gemini-2.0-flash")

	text, errGenerate := env.service.Generate(context.Background(), baseParams())
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if text != "generated text" {
		t.Fatalf("text = %q, want %q", text, "generated text")
	}

	rows := env.usageRows(t)
	if len(rows) != 1 {
		t.Fatalf("expected 1 usage row, got %d", len(rows))
	}
	row := rows[0]
	if row.Status != models.UsageStatusSuccess {
		t.Fatalf("status = %q, want success", row.Status)
	}
	if row.ProviderConfigID == nil || *row.ProviderConfigID != configID {
		t.Fatalf("expected usage attributed to config %d", configID)
	}
	if row.TotalTokens <= 0 || row.TotalTokens != row.InputTokens+row.OutputTokens {
		t.Fatalf("inconsistent token accounting: in=%d out=%d total=%d", row.InputTokens, row.OutputTokens, row.TotalTokens)
	}
	if row.Model != "gemini-2.0-flash" || row.Provider != "gemini" {
		t.Fatalf("unexpected provenance: provider=%q model=%q", row.Provider, row.Model)
	}
}

func TestGenerateFallbackAttributedToOriginalConfig(t *testing.T) {
	primaryErr := errors.New("primary model unavailable")
	factory := &fakeFactory{
		response: "fallback text",
		failFor:  map[string]error{"broken-model": primaryErr},
	}
	env := newTestEnv(t, factory, nil)
	configID := env.createConfig(t, providers.KindGemini, "broken-model")

	text, errGenerate := env.service.Generate(context.Background(), baseParams())
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if text != "fallback text" {
		t.Fatalf("text = %q, want fallback text", text)
	}

	fallbackModel := providers.FallbackModel(providers.KindGemini)
	if len(factory.calls) != 2 || factory.calls[0] != "broken-model" || factory.calls[1] != fallbackModel {
		t.Fatalf("unexpected attempt sequence: %v", factory.calls)
	}

	rows := env.usageRows(t)
	if len(rows) != 1 {
		t.Fatalf("expected a single usage row, got %d", len(rows))
	}
	row := rows[0]
	if row.Status != models.UsageStatusSuccessFallback {
		t.Fatalf("status = %q, want success_fallback", row.Status)
	}
	if row.ProviderConfigID == nil || *row.ProviderConfigID != configID {
		t.Fatalf("expected fallback usage attributed to original config %d", configID)
	}
	if row.Model != fallbackModel {
		t.Fatalf("model = %q, want %q", row.Model, fallbackModel)
	}
}

func TestGenerateDoubleFailureReturnsPrimaryError(t *testing.T) {
	primaryErr := errors.New("primary model unavailable")
	fallbackModel := providers.FallbackModel(providers.KindGemini)
	factory := &fakeFactory{
		failFor: map[string]error{
			"broken-model": primaryErr,
			fallbackModel:  errors.New("fallback also down"),
		},
	}
	env := newTestEnv(t, factory, nil)
	env.createConfig(t, providers.KindGemini, "broken-model")

	_, errGenerate := env.service.Generate(context.Background(), baseParams())
	if !errors.Is(errGenerate, primaryErr) {
		t.Fatalf("expected primary error, got %v", errGenerate)
	}

	rows := env.usageRows(t)
	if len(rows) != 1 {
		t.Fatalf("expected a single usage row, got %d", len(rows))
	}
	row := rows[0]
	if row.Status != models.UsageStatusError {
		t.Fatalf("status = %q, want error", row.Status)
	}
	if row.ErrorMessage != primaryErr.Error() {
		t.Fatalf("error message = %q, want %q", row.ErrorMessage, primaryErr.Error())
	}
}

func TestGenerateQuotaDenialSkipsProviderCall(t *testing.T) {
	factory := &fakeFactory{response: "should not be produced"}
	env := newTestEnv(t, factory, nil)
	configID := env.createConfig(t, providers.KindGemini, "gemini-2.0-flash")

	// Exhaust the free daily token window before the call.
	seeded := models.UsageLog{
		UserID:      1,
		Provider:    "gemini",
		Model:       "gemini-2.0-flash",
		TaskType:    string(models.TaskExtraction),
		TotalTokens: 10_000,
		Status:      models.UsageStatusSuccess,
		RequestedAt: time.Now().UTC(),
	}
	if errCreate := env.conn.Create(&seeded).Error; errCreate != nil {
		t.Fatalf("seed usage: %v", errCreate)
	}

	_, errGenerate := env.service.Generate(context.Background(), baseParams())
	var exceeded *quota.ExceededError
	if !errors.As(errGenerate, &exceeded) {
		t.Fatalf("expected quota denial, got %v", errGenerate)
	}
	if len(factory.calls) != 0 {
		t.Fatalf("expected no provider calls, got %v", factory.calls)
	}

	rows := env.usageRows(t)
	if len(rows) != 2 {
		t.Fatalf("expected seeded row plus denial row, got %d", len(rows))
	}
	denial := rows[1]
	if denial.Status != models.UsageStatusError {
		t.Fatalf("denial status = %q, want error", denial.Status)
	}
	if denial.ProviderConfigID == nil || *denial.ProviderConfigID != configID {
		t.Fatalf("expected denial attributed to config %d", configID)
	}
}

func TestGenerateEphemeralEnvConfig(t *testing.T) {
	factory := &fakeFactory{response: "env text"}
	env := newTestEnv(t, factory, map[providers.Kind]string{
		providers.KindOpenAI: "env-api-key",
	})

	text, errGenerate := env.service.Generate(context.Background(), baseParams())
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if text != "env text" {
		t.Fatalf("text = %q, want env text", text)
	}

	rows := env.usageRows(t)
	if len(rows) != 1 {
		t.Fatalf("expected 1 usage row, got %d", len(rows))
	}
	if rows[0].ProviderConfigID != nil {
		t.Fatalf("expected NULL config id for ephemeral config")
	}
	if rows[0].Provider != "openai" {
		t.Fatalf("provider = %q, want openai", rows[0].Provider)
	}
}

func TestGenerateNoProviderConfigured(t *testing.T) {
	factory := &fakeFactory{}
	env := newTestEnv(t, factory, nil)

	_, errGenerate := env.service.Generate(context.Background(), baseParams())
	if !errors.Is(errGenerate, ErrNoProviderConfigured) {
		t.Fatalf("expected ErrNoProviderConfigured, got %v", errGenerate)
	}
}

func TestGenerateCachedMissThenHit(t *testing.T) {
	factory := &fakeFactory{response: "cacheable text"}
	env := newTestEnv(t, factory, nil)
	env.createConfig(t, providers.KindGemini, "gemini-2.0-flash")

	// A paid plan is required for a non-zero session TTL.
	user := models.User{Email: "cached@example.com", Password: "x", Active: true}
	if errCreate := env.conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	sub := models.Subscription{
		UserID:      user.ID,
		PlanTier:    string(models.PlanPayAsYouGo),
		Status:      models.SubscriptionStatusActive,
		PeriodStart: time.Now().UTC().AddDate(0, -1, 0),
	}
	if errCreate := env.conn.Create(&sub).Error; errCreate != nil {
		t.Fatalf("create subscription: %v", errCreate)
	}

	params := baseParams()
	params.UserID = user.ID

	first, errFirst := env.service.GenerateCached(context.Background(), params, CacheOptions{})
	if errFirst != nil {
		t.Fatalf("first call: %v", errFirst)
	}
	if first.WasCached {
		t.Fatalf("expected first call to miss the cache")
	}
	if first.Text != "cacheable text" {
		t.Fatalf("first text = %q", first.Text)
	}

	second, errSecond := env.service.GenerateCached(context.Background(), params, CacheOptions{})
	if errSecond != nil {
		t.Fatalf("second call: %v", errSecond)
	}
	if !second.WasCached {
		t.Fatalf("expected second call to hit the cache")
	}
	if second.Text != "cacheable text" {
		t.Fatalf("second text = %q", second.Text)
	}
	if second.CostSavedCents <= 0 {
		t.Fatalf("expected positive cost saved on hit")
	}

	if len(factory.calls) != 1 {
		t.Fatalf("expected a single provider call, got %v", factory.calls)
	}
}

func TestGenerateCachedSkip(t *testing.T) {
	factory := &fakeFactory{response: "uncached text"}
	env := newTestEnv(t, factory, nil)
	env.createConfig(t, providers.KindGemini, "gemini-2.0-flash")

	for i := 0; i < 2; i++ {
		result, errGenerate := env.service.GenerateCached(context.Background(), baseParams(), CacheOptions{Skip: true})
		if errGenerate != nil {
			t.Fatalf("call %d: %v", i, errGenerate)
		}
		if result.WasCached {
			t.Fatalf("expected skip to bypass the cache")
		}
	}
	if len(factory.calls) != 2 {
		t.Fatalf("expected 2 provider calls, got %v", factory.calls)
	}
}
