package llm

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/payphoned/internal/dialogue"
)

// OpenAI wraps the OpenAI chat-completions API via go-openai, streaming
// tokens as server-sent-event deltas arrive.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
}

// NewOpenAI creates an OpenAI provider. model defaults to "gpt-4o-mini"
// when empty.
func NewOpenAI(apiKey, model string, temperature, topP float64, maxTokens int) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: float32(temperature),
		topP:        float32(topP),
		maxTokens:   maxTokens,
	}
}

func (p *OpenAI) Name() string { return "openai-llm" }

func (p *OpenAI) GenerateStreaming(ctx context.Context, messages []dialogue.Message) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(tokens)

		stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    toOpenAIMessages(messages),
			Temperature: p.temperature,
			TopP:        p.topP,
			MaxTokens:   p.maxTokens,
			Stream:      true,
		})
		if err != nil {
			errs <- err
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case tokens <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()

	return tokens, errs
}

func toOpenAIMessages(messages []dialogue.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
