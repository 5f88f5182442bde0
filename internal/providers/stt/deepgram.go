package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Deepgram transcribes via the /v1/listen endpoint, posting raw
// linear-16 PCM directly (no WAV wrapping needed — Deepgram takes the
// sample rate as a Content-Type parameter).
type Deepgram struct {
	apiKey     string
	url        string
	sampleRate int
}

// NewDeepgram creates a Deepgram STT provider.
func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		apiKey:     apiKey,
		url:        "https://api.deepgram.com/v1/listen",
		sampleRate: 16000,
	}
}

func (s *Deepgram) Name() string           { return "deepgram-stt" }
func (s *Deepgram) SampleRate() int        { return s.sampleRate }
func (s *Deepgram) SetSampleRate(rate int) { s.sampleRate = rate }

func (s *Deepgram) Transcribe(ctx context.Context, audioPCM []byte, lang string) (Result, error) {
	start := time.Now()

	u, err := url.Parse(s.url)
	if err != nil {
		return Result{}, err
	}
	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if lang != "" {
		params.Set("language", lang)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(audioPCM))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", s.sampleRate))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("deepgram stt error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return Result{Duration: time.Since(start)}, nil
	}
	alt := result.Results.Channels[0].Alternatives[0]
	return Result{Text: alt.Transcript, Confidence: alt.Confidence, Duration: time.Since(start)}, nil
}
