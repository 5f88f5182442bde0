// Package llm defines the streaming chat-completion contract the
// dialogue pipeline drives, and the concrete provider clients that
// implement it.
package llm

import (
	"context"

	"github.com/lokutor-ai/payphoned/internal/dialogue"
)

// Provider generates a streaming chat completion. Implementations push
// tokens to the returned channel as they arrive and close it on
// completion; at most one error is ever sent on the error channel, and
// it is sent in place of (not in addition to) a clean close. Callers
// own deadline enforcement (first-token vs inter-token) by racing
// against the channel themselves — cancel ctx to stop generation.
type Provider interface {
	Name() string
	GenerateStreaming(ctx context.Context, messages []dialogue.Message) (<-chan string, <-chan error)
}
