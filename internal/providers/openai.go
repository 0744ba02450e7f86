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

const openaiBaseURL = "https://api.openai.com/v1"

// openaiFallbackModels is tried in order after the configured model fails.
var openaiFallbackModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo"}

type openaiAdapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func newOpenAIAdapter(apiKey, model string) *openaiAdapter {
	return &openaiAdapter{
		apiKey:  apiKey,
		model:   model,
		baseURL: openaiBaseURL,
		client:  newHTTPClient(),
	}
}

func (a *openaiAdapter) Kind() Kind    { return KindOpenAI }
func (a *openaiAdapter) Model() string { return a.model }

func (a *openaiAdapter) GenerateText(ctx context.Context, req GenerateRequest) (string, error) {
	return a.generate(ctx, req, nil, "")
}

func (a *openaiAdapter) GenerateWithImage(ctx context.Context, req GenerateRequest, image []byte, mimeType string) (string, error) {
	return a.generate(ctx, req, image, mimeType)
}

// ValidateCredentials lists models, which fails fast on a bad key.
func (a *openaiAdapter) ValidateCredentials(ctx context.Context) error {
	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
	if errReq != nil {
		return errReq
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, errDo := a.client.Do(httpReq)
	if errDo != nil {
		return errDo
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("openai: close response body error: %v", errClose)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return &apiError{kind: KindOpenAI, model: a.model, statusCode: resp.StatusCode, message: "credential check failed"}
	}
	return nil
}

func (a *openaiAdapter) generate(ctx context.Context, req GenerateRequest, image []byte, mimeType string) (string, error) {
	var lastErr error
	for _, model := range modelAttempts(a.model, openaiFallbackModels) {
		text, errCall := a.call(ctx, model, req, image, mimeType)
		if errCall == nil {
			return text, nil
		}
		lastErr = errCall
		if ctx.Err() != nil {
			break
		}
		log.WithError(errCall).Warnf("openai: model %s failed, trying next", model)
	}
	if lastErr == nil {
		lastErr = &apiError{kind: KindOpenAI, model: a.model, message: "no model available"}
	}
	return "", lastErr
}

func (a *openaiAdapter) call(ctx context.Context, model string, req GenerateRequest, image []byte, mimeType string) (string, error) {
	var userContent any = req.Prompt
	if len(image) > 0 {
		if mimeType == "" {
			mimeType = "image/png"
		}
		userContent = []map[string]any{
			{"type": "text", "text": req.Prompt},
			{
				"type": "image_url",
				"image_url": map[string]any{
					"url": fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
				},
			},
		}
	}

	messages := make([]map[string]any, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]any{"role": "user", "content": userContent})

	requestBody := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}

	jsonBody, errMarshal := json.Marshal(requestBody)
	if errMarshal != nil {
		return "", errMarshal
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if errReq != nil {
		return "", errReq
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, errDo := a.client.Do(httpReq)
	if errDo != nil {
		return "", errDo
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("openai: close response body error: %v", errClose)
		}
	}()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", errRead
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if errUnmarshal := json.Unmarshal(body, &response); errUnmarshal != nil {
		return "", fmt.Errorf("openai: parse response: %w", errUnmarshal)
	}

	if response.Error != nil {
		return "", &apiError{kind: KindOpenAI, model: model, statusCode: resp.StatusCode, message: response.Error.Message}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &apiError{kind: KindOpenAI, model: model, statusCode: resp.StatusCode, message: string(body)}
	}
	if len(response.Choices) == 0 {
		return "", &apiError{kind: KindOpenAI, model: model, message: "empty response"}
	}
	return response.Choices[0].Message.Content, nil
}
