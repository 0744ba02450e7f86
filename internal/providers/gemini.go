package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/careerpilot-ke/careerpilot/internal/util"
	log "github.com/sirupsen/logrus"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiFallbackModels is tried in order after the configured model fails.
var geminiFallbackModels = []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro"}

type geminiAdapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func newGeminiAdapter(apiKey, model string) *geminiAdapter {
	return &geminiAdapter{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  newHTTPClient(),
	}
}

func (a *geminiAdapter) Kind() Kind    { return KindGemini }
func (a *geminiAdapter) Model() string { return a.model }

func (a *geminiAdapter) GenerateText(ctx context.Context, req GenerateRequest) (string, error) {
	return a.generate(ctx, req, nil, "")
}

func (a *geminiAdapter) GenerateWithImage(ctx context.Context, req GenerateRequest, image []byte, mimeType string) (string, error) {
	return a.generate(ctx, req, image, mimeType)
}

// ValidateCredentials performs a minimal generation against the fast model.
func (a *geminiAdapter) ValidateCredentials(ctx context.Context) error {
	fast, _ := DefaultModels(KindGemini)
	_, err := a.call(ctx, fast, GenerateRequest{Prompt: "ping", MaxTokens: 1}, nil, "")
	return err
}

func (a *geminiAdapter) generate(ctx context.Context, req GenerateRequest, image []byte, mimeType string) (string, error) {
	var lastErr error
	for _, model := range modelAttempts(a.model, geminiFallbackModels) {
		text, errCall := a.call(ctx, model, req, image, mimeType)
		if errCall == nil {
			return text, nil
		}
		lastErr = errCall
		if ctx.Err() != nil {
			break
		}
		log.WithError(errCall).Warnf("gemini: model %s failed, trying next", model)
	}
	if lastErr == nil {
		lastErr = &apiError{kind: KindGemini, model: a.model, message: "no model available"}
	}
	return "", lastErr
}

func (a *geminiAdapter) call(ctx context.Context, model string, req GenerateRequest, image []byte, mimeType string) (string, error) {
	parts := []map[string]any{{"text": req.Prompt}}
	if len(image) > 0 {
		if mimeType == "" {
			mimeType = "image/png"
		}
		parts = append(parts, map[string]any{
			"inline_data": map[string]any{
				"mime_type": mimeType,
				"data":      base64.StdEncoding.EncodeToString(image),
			},
		})
	}

	requestBody := map[string]any{
		"contents": []map[string]any{{"parts": parts}},
		"generationConfig": map[string]any{
			"maxOutputTokens": req.MaxTokens,
			"temperature":     req.Temperature,
		},
	}
	if req.SystemPrompt != "" {
		requestBody["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.SystemPrompt}},
		}
	}

	jsonBody, errMarshal := json.Marshal(requestBody)
	if errMarshal != nil {
		return "", errMarshal
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, model, url.QueryEscape(a.apiKey))
	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if errReq != nil {
		return "", errReq
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, errDo := a.client.Do(httpReq)
	if errDo != nil {
		return "", errDo
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("gemini: close response body error: %v", errClose)
		}
	}()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", errRead
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if errUnmarshal := json.Unmarshal(body, &response); errUnmarshal != nil {
		return "", fmt.Errorf("gemini: parse response: %w", errUnmarshal)
	}

	if response.Error != nil {
		if parsed, errParse := url.Parse(endpoint); errParse == nil {
			log.Debugf("gemini: request failed url=%s?%s", parsed.Path, util.MaskSensitiveQuery(parsed.RawQuery))
		}
		return "", &apiError{kind: KindGemini, model: model, statusCode: response.Error.Code, message: response.Error.Message}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &apiError{kind: KindGemini, model: model, statusCode: resp.StatusCode, message: string(body)}
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", &apiError{kind: KindGemini, model: model, message: "empty response"}
	}
	return response.Candidates[0].Content.Parts[0].Text, nil
}
