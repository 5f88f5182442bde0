package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/lokutor-ai/payphoned/internal/audio"
)

// Groq transcribes via Groq's OpenAI-compatible Whisper endpoint.
type Groq struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

// NewGroq creates a Groq STT provider. model defaults to
// "whisper-large-v3-turbo" when empty.
func NewGroq(apiKey, model string) *Groq {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &Groq{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
	}
}

func (s *Groq) Name() string           { return "groq-stt" }
func (s *Groq) SampleRate() int        { return s.sampleRate }
func (s *Groq) SetSampleRate(rate int) { s.sampleRate = rate }

func (s *Groq) Transcribe(ctx context.Context, audioPCM []byte, lang string) (Result, error) {
	start := time.Now()
	wavData := audio.NewWavBuffer(audioPCM, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("model", s.model)
	writer.WriteField("response_format", "verbose_json")
	if lang != "" {
		writer.WriteField("language", lang)
	}
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("groq stt error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, err
	}

	return Result{Text: result.Text, Confidence: avgSegmentConfidence(result.Segments), Duration: time.Since(start)}, nil
}
