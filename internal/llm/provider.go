package llm

import (
	"context"
	"errors"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrMalformedResponse marks replies that could not be decoded into choices
var ErrMalformedResponse = errors.New("malformed completion response")

// Provider defines the interface for completion services
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends the conversation and returns the service's choices
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Message is one role-tagged conversation entry
type Message struct {
	Role    string
	Content string
}

// CompletionRequest contains the input for one completion call
type CompletionRequest struct {
	// Messages is the full conversation, system message first
	Messages []Message

	// Model overrides the configured model when set
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls sampling; zero means the configured value
	Temperature float32
}

// Choice is one candidate reply
type Choice struct {
	Role    string
	Content string
}

// CompletionResponse contains the service's reply
type CompletionResponse struct {
	Choices    []Choice
	Model      string
	TokensUsed int
}

// FirstAssistant returns the first choice authored by the assistant role
func (r *CompletionResponse) FirstAssistant() (Choice, bool) {
	if r == nil {
		return Choice{}, false
	}
	for _, c := range r.Choices {
		if c.Role == RoleAssistant {
			return c, true
		}
	}
	return Choice{}, false
}

// Config holds completion provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, test servers)
	BaseURL string

	// Timeout bounds each completion call
	Timeout int // seconds

	// MaxTokens and Temperature are applied when a request leaves them unset
	MaxTokens   int
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns the parameters the fact extractor was tuned with
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Model:       "gpt-4",
		Timeout:     30,
		MaxTokens:   100,
		Temperature: 0.1,
	}
}

func (c Config) resolve(req CompletionRequest, fallbackModel string) (model string, maxTokens int, temperature float32) {
	model = req.Model
	if model == "" {
		model = c.Model
	}
	if model == "" {
		model = fallbackModel
	}

	maxTokens = req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 100
	}

	temperature = req.Temperature
	if temperature == 0 {
		temperature = c.Temperature
	}
	return model, maxTokens, temperature
}
