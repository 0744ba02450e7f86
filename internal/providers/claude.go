package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

const (
	claudeBaseURL    = "https://api.anthropic.com/v1"
	claudeAPIVersion = "2023-06-01"
)

// claudeFallbackModels is tried in order after the configured model fails.
var claudeFallbackModels = []string{"claude-3-5-haiku-latest", "claude-3-5-sonnet-latest"}

type claudeAdapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func newClaudeAdapter(apiKey, model string) *claudeAdapter {
	return &claudeAdapter{
		apiKey:  apiKey,
		model:   model,
		baseURL: claudeBaseURL,
		client:  newHTTPClient(),
	}
}

func (a *claudeAdapter) Kind() Kind    { return KindClaude }
func (a *claudeAdapter) Model() string { return a.model }

func (a *claudeAdapter) GenerateText(ctx context.Context, req GenerateRequest) (string, error) {
	return a.generate(ctx, req, nil, "")
}

func (a *claudeAdapter) GenerateWithImage(ctx context.Context, req GenerateRequest, image []byte, mimeType string) (string, error) {
	return a.generate(ctx, req, image, mimeType)
}

// ValidateCredentials performs a minimal generation against the fast model.
func (a *claudeAdapter) ValidateCredentials(ctx context.Context) error {
	fast, _ := DefaultModels(KindClaude)
	_, err := a.call(ctx, fast, GenerateRequest{Prompt: "ping", MaxTokens: 1}, nil, "")
	return err
}

func (a *claudeAdapter) generate(ctx context.Context, req GenerateRequest, image []byte, mimeType string) (string, error) {
	var lastErr error
	for _, model := range modelAttempts(a.model, claudeFallbackModels) {
		text, errCall := a.call(ctx, model, req, image, mimeType)
		if errCall == nil {
			return text, nil
		}
		lastErr = errCall
		if ctx.Err() != nil {
			break
		}
		log.WithError(errCall).Warnf("claude: model %s failed, trying next", model)
	}
	if lastErr == nil {
		lastErr = &apiError{kind: KindClaude, model: a.model, message: "no model available"}
	}
	return "", lastErr
}

func (a *claudeAdapter) call(ctx context.Context, model string, req GenerateRequest, image []byte, mimeType string) (string, error) {
	var userContent any = req.Prompt
	if len(image) > 0 {
		if mimeType == "" {
			mimeType = "image/png"
		}
		userContent = []map[string]any{
			{
				"type": "image",
				"source": map[string]any{
					"type":       "base64",
					"media_type": mimeType,
					"data":       base64.StdEncoding.EncodeToString(image),
				},
			},
			{"type": "text", "text": req.Prompt},
		}
	}

	requestBody := map[string]any{
		"model":       model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": userContent},
		},
	}
	if req.SystemPrompt != "" {
		requestBody["system"] = req.SystemPrompt
	}

	jsonBody, errMarshal := json.Marshal(requestBody)
	if errMarshal != nil {
		return "", errMarshal
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewBuffer(jsonBody))
	if errReq != nil {
		return "", errReq
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)

	resp, errDo := a.client.Do(httpReq)
	if errDo != nil {
		return "", errDo
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("claude: close response body error: %v", errClose)
		}
	}()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", errRead
	}

	var response struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if errUnmarshal := json.Unmarshal(body, &response); errUnmarshal != nil {
		return "", fmt.Errorf("claude: parse response: %w", errUnmarshal)
	}

	if response.Error != nil {
		return "", &apiError{kind: KindClaude, model: model, statusCode: resp.StatusCode, message: response.Error.Message}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &apiError{kind: KindClaude, model: model, statusCode: resp.StatusCode, message: string(body)}
	}
	if len(response.Content) == 0 {
		return "", &apiError{kind: KindClaude, model: model, message: "empty response"}
	}
	return response.Content[0].Text, nil
}
