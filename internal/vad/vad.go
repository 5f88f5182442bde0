// Package vad implements per-session voice-activity endpointing: a
// fixed-size pool of independent model handles, the two-threshold
// hysteresis state machine each session drives, and a barge-in variant
// with a raised threshold plus an echo double-check.
//
// The actual inference network is an external collaborator (out of
// scope per the interface contract); Model stands in for it with an
// energy-based probability estimate so the windowing, pooling, and
// hysteresis contracts — the part this package actually owns — are
// exercised faithfully.
package vad

import "math"

// Event is a VAD state transition emitted by ProcessChunk.
type Event int

const (
	EventSilence Event = iota
	EventSpeech
	EventSpeechStart
	EventSpeechEnd
)

func (e Event) String() string {
	switch e {
	case EventSpeech:
		return "SPEECH"
	case EventSpeechStart:
		return "SPEECH_START"
	case EventSpeechEnd:
		return "SPEECH_END"
	default:
		return "SILENCE"
	}
}

// SessionState is the per-session hysteresis counters (§3).
type SessionState struct {
	IsSpeaking     bool
	SpeechSamples  uint64
	SilenceSamples uint64
}

// Reset clears the state at the start of a fresh utterance.
func (s *SessionState) Reset() {
	*s = SessionState{}
}

// Result is returned from one ProcessChunk call.
type Result struct {
	Event       Event
	Probability float64
}

// Config holds endpointing thresholds, expressed in milliseconds as
// the spec requires.
type Config struct {
	Threshold          float64
	MinSpeechDuration   int // ms
	MinSilenceDuration  int // ms
}

// windowSamples returns the model's fixed inference window size for a
// given sample rate: 512 samples at 16kHz (32ms), scaled proportionally
// for other rates (256 at 8kHz).
func windowSamples(rate int) int {
	return rate * 32 / 1000
}

// Model is one independent endpointer handle: its own ring buffer and
// sample accumulator, so concurrent sessions never share inference
// state.
type Model struct {
	residual []float64
}

// NewModel creates a fresh, empty model handle.
func NewModel() *Model {
	return &Model{}
}

// Reset clears the ring buffer, as done on release back to the pool.
func (m *Model) Reset() {
	m.residual = m.residual[:0]
}

// ProcessChunk feeds samples into the model's ring buffer, runs
// inference on exactly one window if enough samples are now available,
// and advances session state per the two-threshold hysteresis in §4.4.
// A partial window (not enough samples yet) returns SILENCE without
// advancing state.
func (m *Model) ProcessChunk(samples []float64, rate int, state *SessionState, cfg Config) Result {
	m.residual = append(m.residual, samples...)

	window := windowSamples(rate)
	if len(m.residual) < window {
		return Result{Event: EventSilence, Probability: 0}
	}

	frame := m.residual[:window]
	m.residual = append([]float64(nil), m.residual[window:]...)

	prob := energyProbability(frame)
	return Result{Event: advance(prob, len(frame), rate, state, cfg), Probability: prob}
}

// energyProbability is the inference stand-in: normalized RMS energy,
// clamped to [0,1].
func energyProbability(frame []float64) float64 {
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	p := rms * 4 // empirical gain so typical speech RMS approaches 1.0
	if p > 1 {
		p = 1
	}
	return p
}

// advance implements the exact two-threshold transition contract of §4.4.
func advance(probability float64, numSamples, rate int, state *SessionState, cfg Config) Event {
	if probability >= cfg.Threshold {
		state.SpeechSamples += uint64(numSamples)
		state.SilenceSamples = 0
		if !state.IsSpeaking {
			if msElapsed(state.SpeechSamples, rate) >= cfg.MinSpeechDuration {
				state.IsSpeaking = true
				return EventSpeechStart
			}
			return EventSilence
		}
		return EventSpeech
	}

	state.SilenceSamples += uint64(numSamples)
	if state.IsSpeaking {
		if msElapsed(state.SilenceSamples, rate) >= cfg.MinSilenceDuration {
			state.IsSpeaking = false
			state.SpeechSamples = 0
			return EventSpeechEnd
		}
		return EventSpeech
	}
	state.SpeechSamples = 0
	return EventSilence
}

func msElapsed(samples uint64, rate int) int {
	return int(samples * 1000 / uint64(rate))
}
