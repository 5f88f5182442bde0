package vad

import (
	"math"
	"testing"
)

func loudFrame(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(float64(i)) * 0.9
	}
	return out
}

func quietFrame(n int) []float64 {
	return make([]float64, n)
}

func TestProcessChunkPartialWindowStaysSilent(t *testing.T) {
	m := NewModel()
	var state SessionState
	cfg := Config{Threshold: 0.3, MinSpeechDuration: 0, MinSilenceDuration: 0}

	res := m.ProcessChunk(make([]float64, 10), 16000, &state, cfg)
	if res.Event != EventSilence {
		t.Fatalf("expected SILENCE on a partial window, got %s", res.Event)
	}
}

func TestProcessChunkDetectsSpeechStart(t *testing.T) {
	m := NewModel()
	var state SessionState
	cfg := Config{Threshold: 0.3, MinSpeechDuration: 0, MinSilenceDuration: 0}

	res := m.ProcessChunk(loudFrame(windowSamples(16000)), 16000, &state, cfg)
	if res.Event != EventSpeechStart {
		t.Fatalf("expected SPEECH_START on first loud window, got %s", res.Event)
	}
	if !state.IsSpeaking {
		t.Error("expected state to record IsSpeaking after speech start")
	}
}

func TestProcessChunkRequiresMinSpeechDuration(t *testing.T) {
	m := NewModel()
	var state SessionState
	cfg := Config{Threshold: 0.3, MinSpeechDuration: 1000, MinSilenceDuration: 0}

	res := m.ProcessChunk(loudFrame(windowSamples(16000)), 16000, &state, cfg)
	if res.Event != EventSilence {
		t.Fatalf("expected SILENCE before MinSpeechDuration elapses, got %s", res.Event)
	}
	if state.IsSpeaking {
		t.Error("expected IsSpeaking to stay false before the threshold duration")
	}
}

func TestProcessChunkDetectsSpeechEnd(t *testing.T) {
	m := NewModel()
	var state SessionState
	cfg := Config{Threshold: 0.3, MinSpeechDuration: 0, MinSilenceDuration: 0}

	if res := m.ProcessChunk(loudFrame(windowSamples(16000)), 16000, &state, cfg); res.Event != EventSpeechStart {
		t.Fatalf("setup: expected SPEECH_START, got %s", res.Event)
	}
	res := m.ProcessChunk(quietFrame(windowSamples(16000)), 16000, &state, cfg)
	if res.Event != EventSpeechEnd {
		t.Fatalf("expected SPEECH_END after silence, got %s", res.Event)
	}
	if state.IsSpeaking {
		t.Error("expected IsSpeaking cleared after speech end")
	}
}

func TestEventString(t *testing.T) {
	cases := map[Event]string{
		EventSilence:     "SILENCE",
		EventSpeech:      "SPEECH",
		EventSpeechStart: "SPEECH_START",
		EventSpeechEnd:   "SPEECH_END",
	}
	for ev, want := range cases {
		if got := ev.String(); got != want {
			t.Errorf("Event(%d).String() = %q, want %q", ev, got, want)
		}
	}
}
