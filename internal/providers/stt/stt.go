// Package stt defines the speech-to-text contract the listen stage
// drives, and the concrete provider clients that implement it.
package stt

import (
	"context"
	"time"
)

// Result is a completed transcription. Confidence is in [0, 1] and 0
// when a provider doesn't report one (callers should treat that as
// "unknown", not "silence"); Duration is how long the call to the
// remote service took, for metrics.
type Result struct {
	Text       string
	Confidence float64
	Duration   time.Duration
}

// Provider transcribes one utterance's worth of audio. audioPCM is
// 16-bit signed little-endian mono PCM at SampleRate; lang is an
// optional ISO language hint, "" meaning auto-detect.
type Provider interface {
	Name() string
	SampleRate() int
	SetSampleRate(rate int)
	Transcribe(ctx context.Context, audioPCM []byte, lang string) (Result, error)
}
