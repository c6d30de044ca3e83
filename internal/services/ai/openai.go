package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 60 * time.Second

	// DefaultOllamaModel is the default model served by a local Ollama
	DefaultOllamaModel = "deepseek-r1:7b"
	// DefaultOllamaBaseURL is Ollama's OpenAI-compatible endpoint
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
	// ollamaAPIKey satisfies the client; Ollama does not check it
	ollamaAPIKey = "ollama"
)

// OpenAIProvider implements Completer against any OpenAI-compatible
// chat completions endpoint. Replies are requested as JSON objects.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithConfig(ProviderConfig{APIKey: apiKey, Model: model})
}

// NewOpenAIProviderWithConfig creates a new OpenAI provider with custom configuration
func NewOpenAIProviderWithConfig(config ProviderConfig) *OpenAIProvider {
	if config.Model == "" {
		config.Model = DefaultOpenAIModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultOpenAIBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithHTTPClient(httpClient),
	)

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DebugMode {
		logger.Debug("llm_provider_configured",
			zap.String("model", config.Model),
			zap.String("base_url", config.BaseURL),
			zap.String("api_key", SanitizeAPIKey(config.APIKey)),
			zap.Duration("timeout", config.Timeout),
		)
	}

	return &OpenAIProvider{
		client:    client,
		model:     config.Model,
		logger:    logger,
		debugMode: config.DebugMode,
	}
}

// Model returns the model name sent with every request
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Complete sends the conversation and returns the first choice's content
func (p *OpenAIProvider) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	requestID := ExtractRequestID(ctx)
	sessionID := ExtractSessionID(ctx)

	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: toOpenAIMessages(messages),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		// Temperature omitted - some models only accept their default
	}

	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "complete"),
			zap.String("model", p.model),
			zap.Int("message_count", len(messages)),
			zap.Strings("message_previews", SanitizeMessages(messages, false)),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)

	if err != nil {
		p.logger.Warn("llm_api_error",
			zap.String("operation", "complete"),
			zap.String("model", p.model),
			zap.Error(err),
			zap.Bool("rate_limited", IsRateLimitError(err)),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		return "", endpointError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("failed to complete: %w: %w", ErrEndpointUnavailable, ErrNoChoices)
	}

	content := resp.Choices[0].Message.Content

	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "complete"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.Int64("total_tokens", resp.Usage.TotalTokens),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}

// toOpenAIMessages maps conversation roles onto SDK message params. Tool
// observations travel as developer messages.
func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		case RoleTool:
			out = append(out, openai.DeveloperMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config ProviderConfig) (Completer, error) {
		if config.APIKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}
		return NewOpenAIProviderWithConfig(config), nil
	})
}

// RegisterOllama registers a local Ollama server, reached through its
// OpenAI-compatible API
func RegisterOllama(registry *ProviderRegistry) {
	registry.Register("ollama", func(config ProviderConfig) (Completer, error) {
		if config.BaseURL == "" {
			config.BaseURL = DefaultOllamaBaseURL
		}
		if config.Model == "" {
			config.Model = DefaultOllamaModel
		}
		if config.APIKey == "" {
			config.APIKey = ollamaAPIKey
		}
		return NewOpenAIProviderWithConfig(config), nil
	})
}
