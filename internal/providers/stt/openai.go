package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/lokutor-ai/payphoned/internal/audio"
)

// OpenAI transcribes via the Whisper transcriptions endpoint, requesting
// verbose_json so a per-segment avg_logprob is available to approximate
// a confidence score (the legacy json format returns none at all).
type OpenAI struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

// NewOpenAI creates an OpenAI STT provider. model defaults to
// "whisper-1" when empty.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAI{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
	}
}

func (s *OpenAI) Name() string           { return "openai-stt" }
func (s *OpenAI) SampleRate() int        { return s.sampleRate }
func (s *OpenAI) SetSampleRate(rate int) { s.sampleRate = rate }

type verboseSegment struct {
	AvgLogprob float64 `json:"avg_logprob"`
}

type verboseTranscription struct {
	Text     string           `json:"text"`
	Segments []verboseSegment `json:"segments"`
}

func (s *OpenAI) Transcribe(ctx context.Context, audioPCM []byte, lang string) (Result, error) {
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
		return Result{}, fmt.Errorf("openai stt error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, err
	}

	return Result{Text: result.Text, Confidence: avgSegmentConfidence(result.Segments), Duration: time.Since(start)}, nil
}

// avgSegmentConfidence converts Whisper's log-probability segments into
// a [0,1] confidence estimate; exp(avg_logprob) approximates per-token
// likelihood.
func avgSegmentConfidence(segs []verboseSegment) float64 {
	if len(segs) == 0 {
		return 0
	}
	var sum float64
	for _, seg := range segs {
		p := math.Exp(seg.AvgLogprob)
		if p > 1 {
			p = 1
		}
		sum += p
	}
	return sum / float64(len(segs))
}
