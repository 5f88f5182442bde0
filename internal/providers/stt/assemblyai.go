package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AssemblyAI transcribes via the upload + submit + poll transcript
// workflow: there is no synchronous transcription endpoint, so
// Transcribe blocks internally on a poll loop.
type AssemblyAI struct {
	apiKey     string
	sampleRate int
}

// NewAssemblyAI creates an AssemblyAI STT provider.
func NewAssemblyAI(apiKey string) *AssemblyAI {
	return &AssemblyAI{apiKey: apiKey, sampleRate: 16000}
}

func (s *AssemblyAI) Name() string           { return "assemblyai-stt" }
func (s *AssemblyAI) SampleRate() int        { return s.sampleRate }
func (s *AssemblyAI) SetSampleRate(rate int) { s.sampleRate = rate }

func (s *AssemblyAI) Transcribe(ctx context.Context, audioPCM []byte, lang string) (Result, error) {
	start := time.Now()

	uploadURL, err := s.upload(ctx, audioPCM)
	if err != nil {
		return Result{}, err
	}

	transcriptID, err := s.submit(ctx, uploadURL, lang)
	if err != nil {
		return Result{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			text, confidence, status, err := s.getTranscript(ctx, transcriptID)
			if err != nil {
				return Result{}, err
			}
			switch status {
			case "completed":
				return Result{Text: text, Confidence: confidence, Duration: time.Since(start)}, nil
			case "error":
				return Result{}, fmt.Errorf("assemblyai transcription failed")
			}
		}
	}
}

func (s *AssemblyAI) upload(ctx context.Context, audioPCM []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.assemblyai.com/v2/upload", bytes.NewReader(audioPCM))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.UploadURL, nil
}

func (s *AssemblyAI) submit(ctx context.Context, uploadURL, lang string) (string, error) {
	payload := map[string]any{"audio_url": uploadURL}
	if lang != "" {
		payload["language_code"] = lang
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.assemblyai.com/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (s *AssemblyAI) getTranscript(ctx context.Context, id string) (text string, confidence float64, status string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.assemblyai.com/v2/transcript/"+id, nil)
	if err != nil {
		return "", 0, "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status     string  `json:"status"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, "", err
	}
	return result.Text, result.Confidence, result.Status, nil
}
