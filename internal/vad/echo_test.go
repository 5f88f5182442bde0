package vad

import (
	"testing"
	"time"
)

func toneBytes(n int, amplitude int16) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = byte(amplitude)
		out[i*2+1] = byte(amplitude >> 8)
	}
	return out
}

func TestIsEchoFalseWithNoPlayedAudio(t *testing.T) {
	es := NewEchoSuppressor()
	if es.IsEcho(toneBytes(160, 8000)) {
		t.Error("expected no echo detected with an empty playback history")
	}
}

func TestIsEchoDetectsMatchingPlayback(t *testing.T) {
	es := NewEchoSuppressor()
	chunk := toneBytes(160, 8000)
	es.RecordPlayedAudio(chunk)
	if !es.IsEcho(chunk) {
		t.Error("expected identical input to be flagged as echo")
	}
}

func TestIsEchoIgnoresStalePlayback(t *testing.T) {
	es := NewEchoSuppressor()
	chunk := toneBytes(160, 8000)
	es.RecordPlayedAudio(chunk)
	es.lastPlayedAt = es.lastPlayedAt.Add(-2 * time.Duration(es.echoSilenceMS) * time.Millisecond)
	if es.IsEcho(chunk) {
		t.Error("expected stale playback history to no longer suppress as echo")
	}
}

func TestIsEchoDisabled(t *testing.T) {
	es := NewEchoSuppressor()
	chunk := toneBytes(160, 8000)
	es.RecordPlayedAudio(chunk)
	es.SetEnabled(false)
	if es.IsEcho(chunk) {
		t.Error("expected IsEcho to always return false once disabled")
	}
}

func TestClearEchoBuffer(t *testing.T) {
	es := NewEchoSuppressor()
	chunk := toneBytes(160, 8000)
	es.RecordPlayedAudio(chunk)
	es.ClearEchoBuffer()
	if es.IsEcho(chunk) {
		t.Error("expected IsEcho to return false after the played-audio buffer is cleared")
	}
}
