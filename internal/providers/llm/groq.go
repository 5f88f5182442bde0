package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/payphoned/internal/dialogue"
)

// Groq talks to Groq's OpenAI-API-compatible chat-completions endpoint
// via go-openai with a BaseURL override, the same client the OpenAI
// provider uses.
type Groq struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
}

// NewGroq creates a Groq provider. model defaults to "llama3-70b-8192"
// when empty.
func NewGroq(apiKey, model string, temperature, topP float64, maxTokens int) *Groq {
	if model == "" {
		model = "llama3-70b-8192"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = "https://api.groq.com/openai/v1"
	return &Groq{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: float32(temperature),
		topP:        float32(topP),
		maxTokens:   maxTokens,
	}
}

func (p *Groq) Name() string { return "groq-llm" }

func (p *Groq) GenerateStreaming(ctx context.Context, messages []dialogue.Message) (<-chan string, <-chan error) {
	// Groq's endpoint is OpenAI-shaped; reuse the same streaming client
	// call by delegating through a throwaway OpenAI wrapper bound to
	// this client and model.
	delegate := &OpenAI{
		client:      p.client,
		model:       p.model,
		temperature: p.temperature,
		topP:        p.topP,
		maxTokens:   p.maxTokens,
	}
	return delegate.GenerateStreaming(ctx, messages)
}
