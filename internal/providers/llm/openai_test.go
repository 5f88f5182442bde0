package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/payphoned/internal/dialogue"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  "gpt-4o-mini",
	}
}

func TestOpenAIGenerateStreamingEmitsTokens(t *testing.T) {
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, tok := range []string{"Hello", " there"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	tokens, errs := p.GenerateStreaming(context.Background(), []dialogue.Message{{Role: "user", Content: "hi"}})

	var got []string
	for tokens != nil || errs != nil {
		select {
		case tok, ok := <-tokens:
			if !ok {
				tokens = nil
				continue
			}
			got = append(got, tok)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			t.Fatalf("unexpected error: %v", err)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream")
		}
	}

	if len(got) != 2 || got[0] != "Hello" || got[1] != " there" {
		t.Errorf("unexpected tokens: %v", got)
	}
}

func TestOpenAIName(t *testing.T) {
	p := NewOpenAI("key", "", 0.7, 1.0, 100)
	if p.Name() != "openai-llm" {
		t.Errorf("expected openai-llm, got %s", p.Name())
	}
}
