// Package tts defines the speech-synthesis contract the speak stage
// drives, and the concrete provider clients that implement it.
package tts

import "context"

// Provider synthesizes speech, streaming PCM chunks to onChunk as they
// arrive rather than waiting for the full utterance. Abort cancels
// whichever StreamSynthesize call is currently in flight (used on
// barge-in, where the caller interrupts TTS playback mid-sentence);
// it is a no-op if nothing is in flight.
type Provider interface {
	Name() string
	StreamSynthesize(ctx context.Context, text, voice, lang string, onChunk func([]byte) error) error
	Abort()
	Close() error
}
