package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrNoStructuredOutput is returned when the provider answered without the
// structured payload the request asked for.
var ErrNoStructuredOutput = errors.New("no structured output in response")

// Config holds LLM client configuration.
type Config struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string // Required: API key for the provider
	BaseURL   string // Optional: custom API endpoint
	Model     string
	MaxTokens int
}

// Client runs single-turn chats whose answer is decoded into a JSON schema.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

type Response struct {
	PromptTokens     int
	CompletionTokens int
}

// NewClient selects the provider from cfg.Provider, defaulting to OpenAI.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	switch cfg.Provider {
	case "", ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// GenerateSchema reflects the JSON schema of T with inlined definitions, the
// form both providers accept for structured output.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}

// RetryPolicy bounds ChatWithRetry.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: time.Second}

// ChatWithRetry retries transient provider errors with exponential backoff
// (BaseDelay, 2*BaseDelay, ...). Non-retryable errors return immediately.
func ChatWithRetry(ctx context.Context, c Client, policy RetryPolicy, req Request, result any) (*Response, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.Chat(ctx, req, result)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(ctx, err) || attempt == attempts-1 {
			break
		}
		slog.WarnContext(ctx, "llm chat retry",
			"schema", req.SchemaName,
			"attempt", attempt+1,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.BaseDelay * time.Duration(1<<attempt)):
		}
	}
	return nil, lastErr
}

// decodeJSON unmarshals model output, tolerating a fenced ```json block.
func decodeJSON(content string, result any) error {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	if content == "" {
		return ErrNoStructuredOutput
	}
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
