package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind identifies an LLM backend vendor.
type Kind string

// Supported provider kinds.
const (
	// KindGemini is Google's Generative Language API.
	KindGemini Kind = "gemini"
	// KindOpenAI is the OpenAI chat completions API.
	KindOpenAI Kind = "openai"
	// KindClaude is the Anthropic messages API.
	KindClaude Kind = "claude"
)

// Provider construction errors.
var (
	// ErrUnknownKind indicates an unrecognized provider kind string.
	ErrUnknownKind = errors.New("providers: unknown provider kind")
	// ErrEmptyCredential indicates a missing API key.
	ErrEmptyCredential = errors.New("providers: empty credential")
	// ErrImageUnsupported indicates the adapter has no multimodal path.
	ErrImageUnsupported = errors.New("providers: image input not supported")
)

// AllKinds lists every supported provider kind.
func AllKinds() []Kind {
	return []Kind{KindGemini, KindOpenAI, KindClaude}
}

// ParseKind normalizes a raw provider string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindGemini:
		return KindGemini, nil
	case KindOpenAI:
		return KindOpenAI, nil
	case KindClaude:
		return KindClaude, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

// GenerateRequest carries the inputs for a single generation call.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Adapter is the uniform capability surface over one provider backend.
//
// Text and multimodal calls retry a fixed ordered list of alternate model
// names before the adapter reports failure; individual model names can become
// unavailable independent of provider or credential validity.
type Adapter interface {
	Kind() Kind
	Model() string
	GenerateText(ctx context.Context, req GenerateRequest) (string, error)
	GenerateWithImage(ctx context.Context, req GenerateRequest, image []byte, mimeType string) (string, error)
	ValidateCredentials(ctx context.Context) error
}

// Factory constructs an Adapter for a provider kind. The orchestrator takes a
// Factory so tests can substitute fakes.
type Factory func(kind Kind, apiKey, model string) (Adapter, error)

// New builds the adapter matching the provider kind.
func New(kind Kind, apiKey, model string) (Adapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrEmptyCredential
	}
	switch kind {
	case KindGemini:
		return newGeminiAdapter(apiKey, model), nil
	case KindOpenAI:
		return newOpenAIAdapter(apiKey, model), nil
	case KindClaude:
		return newClaudeAdapter(apiKey, model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// DefaultModels returns the fast and quality model names for a provider kind.
func DefaultModels(kind Kind) (fast, quality string) {
	switch kind {
	case KindOpenAI:
		return "gpt-4o-mini", "gpt-4o"
	case KindClaude:
		return "claude-3-5-haiku-latest", "claude-3-5-sonnet-latest"
	default:
		return "gemini-2.0-flash", "gemini-1.5-pro"
	}
}

// FallbackModel returns the known-good model used by the orchestrator's
// one-shot config fallback.
func FallbackModel(kind Kind) string {
	fast, _ := DefaultModels(kind)
	return fast
}

// apiError is a provider-reported failure with an optional HTTP status.
type apiError struct {
	kind       Kind
	model      string
	statusCode int
	message    string
}

func (e *apiError) Error() string {
	if e == nil {
		return ""
	}
	if e.statusCode > 0 {
		return fmt.Sprintf("%s api error (model=%s status=%d): %s", e.kind, e.model, e.statusCode, e.message)
	}
	return fmt.Sprintf("%s api error (model=%s): %s", e.kind, e.model, e.message)
}

// StatusCode returns the HTTP status reported by the provider, if any.
func (e *apiError) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.statusCode
}

// newHTTPClient returns the outbound client shared by all adapters.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// modelAttempts returns the configured model followed by the fallback chain,
// with duplicates removed and order preserved.
func modelAttempts(configured string, chain []string) []string {
	attempts := make([]string, 0, len(chain)+1)
	seen := make(map[string]struct{}, len(chain)+1)
	for _, model := range append([]string{strings.TrimSpace(configured)}, chain...) {
		if model == "" {
			continue
		}
		if _, ok := seen[model]; ok {
			continue
		}
		seen[model] = struct{}{}
		attempts = append(attempts, model)
	}
	return attempts
}
