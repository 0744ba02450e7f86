// Package orchestrator coordinates a single generation request: provider
// config selection, quota enforcement, the provider call, usage logging and
// the one-shot fallback on failure.
//
// Each call performs at most two sequential outbound attempts (primary plus
// one fallback), never concurrent ones, so cost and quota attribution stay
// unambiguous and no call is billed twice.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/cache"
	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/modelrouter"
	"github.com/careerpilot-ke/careerpilot/internal/providers"
	"github.com/careerpilot-ke/careerpilot/internal/quota"
	"github.com/careerpilot-ke/careerpilot/internal/subscription"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service coordinates generation requests end to end.
type Service struct {
	db             *gorm.DB
	cipher         CredentialCipher
	plans          subscription.PlanSource
	quota          *quota.Manager
	cache          *cache.Manager
	factory        providers.Factory
	envCredentials map[providers.Kind]string
}

// CredentialCipher decrypts stored provider credentials.
type CredentialCipher interface {
	Decrypt(ciphertext string) (string, error)
}

// Options configures a Service.
type Options struct {
	DB             *gorm.DB
	Cipher         CredentialCipher
	Plans          subscription.PlanSource
	Quota          *quota.Manager
	Cache          *cache.Manager
	Factory        providers.Factory // defaults to providers.New
	EnvCredentials map[providers.Kind]string
}

// NewService constructs the orchestrator.
func NewService(opts Options) *Service {
	factory := opts.Factory
	if factory == nil {
		factory = providers.New
	}
	env := opts.EnvCredentials
	if env == nil {
		env = map[providers.Kind]string{}
	}
	return &Service{
		db:             opts.DB,
		cipher:         opts.Cipher,
		plans:          opts.Plans,
		quota:          opts.Quota,
		cache:          opts.Cache,
		factory:        factory,
		envCredentials: env,
	}
}

// GenerateParams carries the inputs of one generation request.
type GenerateParams struct {
	UserID       uint64
	Task         models.TaskType
	Prompt       string
	SystemPrompt string
	Image        []byte // non-empty selects the multimodal path
	ImageMIME    string
	Temperature  float64
	MaxTokens    int
	Provider     providers.Kind // optional override; empty uses the active config
}

// Generate runs one generation request and returns the generated text.
//
// Flow: resolve config, quota check, adapter call, usage log. A quota denial
// short-circuits before any provider call and is logged as a failed attempt.
// When a persisted config fails, exactly one fallback attempt runs against an
// ephemeral config sharing the failed config's kind and credential on a
// known-good model; its success is attributed to the original config.
func (s *Service) Generate(ctx context.Context, params GenerateParams) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("orchestrator: service not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, errResolve := s.resolveConfig(ctx, params.Provider)
	if errResolve != nil {
		return "", errResolve
	}

	if errQuota := s.quota.Check(ctx, params.UserID, params.Task); errQuota != nil {
		var exceeded *quota.ExceededError
		if errors.As(errQuota, &exceeded) {
			s.logAttempt(ctx, params, cfg.configID(), cfg.kind, cfg.model, "", models.UsageStatusError, errQuota.Error(), 0)
		}
		return "", errQuota
	}

	model := s.modelFor(ctx, cfg, params)
	started := time.Now()

	text, errPrimary := s.invoke(ctx, cfg, model, params)
	if errPrimary == nil {
		s.logAttempt(ctx, params, cfg.configID(), cfg.kind, model, text, models.UsageStatusSuccess, "", time.Since(started))
		return text, nil
	}

	// Only persisted configs earn a fallback; an ephemeral config already is
	// the last resort.
	if !cfg.persisted() {
		s.logAttempt(ctx, params, nil, cfg.kind, model, "", models.UsageStatusError, errPrimary.Error(), time.Since(started))
		return "", errPrimary
	}

	log.WithError(errPrimary).Warnf("orchestrator: primary config failed, retrying on fallback model (config=%d)", cfg.record.ID)
	fallback := fallbackFor(cfg)
	text, errFallback := s.invoke(ctx, fallback, fallback.model, params)
	if errFallback == nil {
		// Attributed to the original config so cost accounting stays with the
		// administrator-managed row, not the synthesized retry.
		s.logAttempt(ctx, params, cfg.configID(), cfg.kind, fallback.model, text, models.UsageStatusSuccessFallback, "", time.Since(started))
		return text, nil
	}

	s.logAttempt(ctx, params, cfg.configID(), cfg.kind, model, "", models.UsageStatusError, errPrimary.Error(), time.Since(started))
	return "", errPrimary
}

// CacheOptions controls the cache layer of GenerateCached.
type CacheOptions struct {
	Key  string     // empty derives a content key from task and prompt
	Type cache.Type // empty defaults to the session cache
	Skip bool       // bypass the cache entirely
}

// CachedResult is the outcome of a cache-first generation.
type CachedResult struct {
	Text           string `json:"text"`
	WasCached      bool   `json:"was_cached"`
	CostSavedCents int64  `json:"cost_saved_cents"`
}

// GenerateCached wraps Generate with a cache-first check and a write-back on
// miss.
func (s *Service) GenerateCached(ctx context.Context, params GenerateParams, opts CacheOptions) (*CachedResult, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("orchestrator: service not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Skip {
		text, errGenerate := s.Generate(ctx, params)
		if errGenerate != nil {
			return nil, errGenerate
		}
		return &CachedResult{Text: text}, nil
	}

	key := opts.Key
	if key == "" {
		key = cache.ContentKey(params.Task, params.Prompt)
	}
	typ := opts.Type
	if typ == "" {
		typ = cache.TypeSession
	}
	userID := params.UserID

	entry, errGet := s.cache.Get(ctx, key, &userID, typ)
	if errGet != nil {
		log.WithError(errGet).Warnf("orchestrator: cache lookup failed (key=%s)", key)
	}
	if entry != nil {
		var text string
		if errDecode := decodePayload(entry.Payload, &text); errDecode == nil {
			return &CachedResult{Text: text, WasCached: true, CostSavedCents: entry.CostSavedCents}, nil
		}
		log.Warnf("orchestrator: discarding undecodable cache entry (key=%s)", key)
	}

	text, errGenerate := s.Generate(ctx, params)
	if errGenerate != nil {
		return nil, errGenerate
	}

	metadata := map[string]any{
		"task":        string(params.Task),
		"temperature": params.Temperature,
	}
	if params.Provider != "" {
		metadata["provider"] = string(params.Provider)
	}
	if _, errSet := s.cache.Set(ctx, key, text, typ, &userID, nil, metadata); errSet != nil {
		log.WithError(errSet).Warnf("orchestrator: cache store failed (key=%s)", key)
	}

	return &CachedResult{Text: text}, nil
}

// modelFor resolves the model: an explicit config model wins, otherwise the
// plan/task router decides using the provider's model pair.
func (s *Service) modelFor(ctx context.Context, cfg *resolvedConfig, params GenerateParams) string {
	if cfg.model != "" {
		return cfg.model
	}
	plan, errPlan := s.plans.ActivePlan(ctx, params.UserID)
	if errPlan != nil {
		log.WithError(errPlan).Warnf("orchestrator: plan lookup failed, routing as free tier (user=%d)", params.UserID)
		plan = models.PlanFree
	}
	fast, quality := providers.DefaultModels(cfg.kind)
	return modelrouter.New(fast, quality).Resolve(plan, params.Task)
}

// invoke builds the adapter and runs the text or multimodal path.
func (s *Service) invoke(ctx context.Context, cfg *resolvedConfig, model string, params GenerateParams) (string, error) {
	adapter, errNew := s.factory(cfg.kind, cfg.credential, model)
	if errNew != nil {
		return "", errNew
	}
	req := providers.GenerateRequest{
		Prompt:       params.Prompt,
		SystemPrompt: params.SystemPrompt,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
	}
	if len(params.Image) > 0 {
		return adapter.GenerateWithImage(ctx, req, params.Image, params.ImageMIME)
	}
	return adapter.GenerateText(ctx, req)
}

// logAttempt writes one usage log row. Failures are warned and discarded so a
// logging problem never changes the outcome of the generation itself.
func (s *Service) logAttempt(ctx context.Context, params GenerateParams, configID *uint64, kind providers.Kind, model, text, status, errorMessage string, latency time.Duration) {
	inputTokens := estimateTokens(params.Prompt) + estimateTokens(params.SystemPrompt)
	outputTokens := estimateTokens(text)
	totalTokens := inputTokens + outputTokens

	row := models.UsageLog{
		UserID:           params.UserID,
		ProviderConfigID: configID,
		Provider:         string(kind),
		Model:            model,
		TaskType:         string(params.Task),
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		TotalTokens:      totalTokens,
		CostCents:        costCents(kind, totalTokens),
		Status:           status,
		ErrorMessage:     errorMessage,
		LatencyMS:        latency.Milliseconds(),
		RequestedAt:      time.Now().UTC(),
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).Warn("orchestrator: failed to persist usage log")
	}
}
