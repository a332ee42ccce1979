package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider talks to any OpenAI-compatible chat completion API
// (Zhipu GLM, DeepSeek, OpenAI itself).
type OpenAIProvider struct {
	httpClient *http.Client
}

func NewOpenAIProvider(httpClient *http.Client) *OpenAIProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &OpenAIProvider{httpClient: httpClient}
}

func (p *OpenAIProvider) Complete(ctx context.Context, s Settings, system, user string) (string, error) {
	client := openai.NewClient(
		option.WithAPIKey(s.APIKey),
		option.WithBaseURL(NormalizeBaseURL(s.BaseURL)),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(s.Temperature),
		MaxTokens:   openai.Int(int64(s.MaxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{Status: apiErr.StatusCode, Message: apiErr.Message, Err: err}
		}
		return "", &UpstreamError{Err: err}
	}

	if msg := errorPayload(resp.RawJSON()); msg != "" {
		return "", &UpstreamError{Status: http.StatusOK, Message: msg}
	}
	if len(resp.Choices) == 0 {
		return "", &SchemaError{Reason: "no choices"}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &SchemaError{Reason: "empty message content"}
	}
	return content, nil
}

// errorPayload extracts {"error": {"message": ...}} that some compatible
// providers send with a 200 status.
func errorPayload(raw string) string {
	if raw == "" {
		return ""
	}
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || len(payload.Error) == 0 || string(payload.Error) == "null" {
		return ""
	}
	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &detail); err == nil && detail.Message != "" {
		return detail.Message
	}
	var text string
	if err := json.Unmarshal(payload.Error, &text); err == nil && text != "" {
		return text
	}
	return string(payload.Error)
}
