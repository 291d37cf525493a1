package analyst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultMaxTokens   = 600
	DefaultTemperature = 0.3
)

// ErrMissingCredential is returned when no API key is configured for the backend.
var ErrMissingCredential = errors.New("text generation API key not set")

// BackendError is a non-2xx response from the text generation backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("text generation request failed (%d): %s", e.StatusCode, e.Message)
}

// Backend turns a prompt into one blob of generated text.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAIBackend is a Backend over any OpenAI-compatible chat completions API.
type OpenAIBackend struct {
	client    *openai.Client
	model     string
	maxTokens int
	temp      float64
}

// NewOpenAIBackend builds a backend. A missing API key is not an error here;
// it surfaces as ErrMissingCredential on every Complete call.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	b := &OpenAIBackend{
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		temp:      cfg.Temperature,
	}
	if b.model == "" {
		b.model = DefaultModel
	}
	if b.maxTokens == 0 {
		b.maxTokens = DefaultMaxTokens
	}
	if cfg.APIKey == "" {
		return b
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	b.client = &client
	return b
}

func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if b.client == nil {
		return "", ErrMissingCredential
	}

	start := time.Now()
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(b.maxTokens)),
		Temperature: openai.Float(b.temp),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &BackendError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", fmt.Errorf("text generation request: %w", err)
	}

	slog.DebugContext(ctx, "text generation completed",
		"model", b.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
