package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lokutor-ai/payphoned/internal/dialogue"
)

// Google talks to the Gemini streamGenerateContent endpoint with
// alt=sse, matching the teacher's hand-rolled (non-streaming) Google
// client's role-remapping (system/assistant have no direct Gemini
// counterpart) but adding the streaming transport the dialogue
// pipeline needs.
type Google struct {
	apiKey string
	url    string
	model  string
}

// NewGoogle creates a Google provider. model defaults to
// "gemini-1.5-flash" when empty.
func NewGoogle(apiKey, model string) *Google {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Google{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":streamGenerateContent",
		model:  model,
	}
}

func (p *Google) Name() string { return "google-llm" }

type googleContentPart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string              `json:"role"`
	Parts []googleContentPart `json:"parts"`
}

func (p *Google) GenerateStreaming(ctx context.Context, messages []dialogue.Message) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(tokens)

		var contents []googleContent
		for _, m := range messages {
			role := m.Role
			switch role {
			case "system":
				role = "user"
			case "assistant":
				role = "model"
			}
			contents = append(contents, googleContent{Role: role, Parts: []googleContentPart{{Text: m.Content}}})
		}

		body, err := json.Marshal(map[string]any{"contents": contents})
		if err != nil {
			errs <- err
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"?alt=sse&key="+p.apiKey, bytes.NewReader(body))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var errResp any
			json.NewDecoder(resp.Body).Decode(&errResp)
			errs <- fmt.Errorf("google llm error (status %d): %v", resp.StatusCode, errResp)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var chunk struct {
				Candidates []struct {
					Content googleContent `json:"content"`
				} `json:"candidates"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Candidates) == 0 || len(chunk.Candidates[0].Content.Parts) == 0 {
				continue
			}
			text := chunk.Candidates[0].Content.Parts[0].Text
			if text == "" {
				continue
			}
			select {
			case tokens <- text:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errs <- err:
			case <-ctx.Done():
			}
		}
	}()

	return tokens, errs
}
