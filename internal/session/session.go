// Package session tracks the per-call state that lives for the
// duration of one AudioSocket connection: conversation context, DTMF
// accumulation, feature/persona routing state, and call metrics.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lokutor-ai/payphoned/internal/config"
	"github.com/lokutor-ai/payphoned/internal/dialogue"
	"github.com/lokutor-ai/payphoned/internal/prompts"
)

const (
	validDTMFDigits = "0123456789*#ABCD"
	maxDTMFBuffer   = 32
)

// errShortUUIDFrame is returned when a UUID frame's payload is shorter
// than the 36 bytes a UUID requires.
var errShortUUIDFrame = errors.New("session: uuid frame payload shorter than 36 bytes")

// Metrics accumulates per-call statistics surfaced at hangup.
type Metrics struct {
	mu                    sync.Mutex
	StartTime             time.Time
	EndTime               time.Time
	TotalSpeechDurationMS float64
	TotalSilenceDurationMS float64
	STTCalls              int
	LLMCalls              int
	TTSCalls              int
	DTMFDigits            int
	FeaturesUsed          map[string]struct{}
}

// NewMetrics starts a fresh metrics block timed from now.
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now(), FeaturesUsed: make(map[string]struct{})}
}

// AddFeature records a feature/persona as used during this call.
func (m *Metrics) AddFeature(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeaturesUsed[name] = struct{}{}
}

// DurationSeconds returns elapsed call time, using now if the call
// hasn't ended yet.
func (m *Metrics) DurationSeconds() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(m.StartTime).Seconds()
}

// End stamps the call's end time.
func (m *Metrics) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndTime.IsZero() {
		m.EndTime = time.Now()
	}
}

// IncSTTCalls records one completed transcription call.
func (m *Metrics) IncSTTCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.STTCalls++
}

// IncLLMCalls records one completed generation call.
func (m *Metrics) IncLLMCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LLMCalls++
}

// IncTTSCalls records one completed synthesis call.
func (m *Metrics) IncTTSCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TTSCalls++
}

// AddSpeechDuration accumulates detected caller speech time.
func (m *Metrics) AddSpeechDuration(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalSpeechDurationMS += ms
}

// AddSilenceDuration accumulates detected caller silence time.
func (m *Metrics) AddSilenceDuration(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalSilenceDurationMS += ms
}

// FeatureNames returns a snapshot of features used this call.
func (m *Metrics) FeatureNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.FeaturesUsed))
	for f := range m.FeaturesUsed {
		out = append(out, f)
	}
	return out
}

// Session is the full state of one active call.
type Session struct {
	mu sync.Mutex

	CallID   string
	DialedExtension string // "" if the UUID frame carried no extension

	Context *dialogue.Context
	Metrics *Metrics

	currentFeature string
	currentPersona string

	IsActive bool

	dtmfBuffer   string
	dtmfLastTime time.Time

	IsSpeaking       bool
	BargeInRequested bool

	settings *config.Settings
}

// New creates a session for callID, seeded with the operator feature's
// system prompt.
func New(callID string, settings *config.Settings) *Session {
	s := &Session{
		CallID:         callID,
		Context:        dialogue.NewContext(defaultMaxHistory),
		Metrics:        NewMetrics(),
		currentFeature: "operator",
		IsActive:       true,
		settings:       settings,
	}
	s.Context.AddSystem(prompts.GetSystemPrompt(s.currentFeature, ""))
	return s
}

const defaultMaxHistory = 10

// ParseDialedExtension extracts an optional ASCII extension string
// following the 36-byte UUID in a UUID frame's payload. Per the UUID
// frame contract: exactly 36 bytes means no direct dial was requested.
func ParseDialedExtension(payload []byte) (uuid.UUID, string, error) {
	if len(payload) < 36 {
		return uuid.UUID{}, "", errShortUUIDFrame
	}
	id, err := uuid.ParseBytes(payload[:36])
	if err != nil {
		return uuid.UUID{}, "", err
	}
	if len(payload) == 36 {
		return id, "", nil
	}
	return id, string(payload[36:]), nil
}

// CurrentFeature returns the active feature name.
func (s *Session) CurrentFeature() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentFeature
}

// CurrentPersona returns the active persona name, "" if none.
func (s *Session) CurrentPersona() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPersona
}

// SwitchFeature changes the active feature, resets persona, records
// feature usage, and rewrites the system prompt in-place.
func (s *Session) SwitchFeature(feature string) {
	s.mu.Lock()
	s.currentFeature = feature
	s.currentPersona = ""
	s.mu.Unlock()

	s.Metrics.AddFeature(feature)
	s.replaceSystemPrompt(prompts.GetSystemPrompt(feature, ""))
}

// SwitchPersona changes the active persona within the current feature.
func (s *Session) SwitchPersona(persona string) {
	s.mu.Lock()
	s.currentPersona = persona
	feature := s.currentFeature
	s.mu.Unlock()

	s.Metrics.AddFeature("persona_" + persona)
	s.replaceSystemPrompt(prompts.GetSystemPrompt(feature, persona))
}

func (s *Session) replaceSystemPrompt(prompt string) {
	ctx := dialogue.NewContext(defaultMaxHistory)
	ctx.AddSystem(prompt)
	s.Context = ctx
}

// AddDTMF folds a DTMF digit into the accumulation buffer. It returns
// a completed digit string if the inter-digit timeout has elapsed
// since the last digit, in which case the new digit starts a fresh
// buffer; otherwise it returns "" and keeps accumulating.
func (s *Session) AddDTMF(digit string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(digit) != 1 || !containsByte(validDTMFDigits, digit[0]) {
		return ""
	}

	now := time.Now()
	s.Metrics.mu.Lock()
	s.Metrics.DTMFDigits++
	s.Metrics.mu.Unlock()

	if s.dtmfBuffer != "" && now.Sub(s.dtmfLastTime) > s.settings.Timeouts.DTMFInterDigit {
		result := s.dtmfBuffer
		s.dtmfBuffer = digit
		s.dtmfLastTime = now
		return result
	}

	if len(s.dtmfBuffer) >= maxDTMFBuffer {
		s.dtmfBuffer = s.dtmfBuffer[1:]
	}
	s.dtmfBuffer += digit
	s.dtmfLastTime = now
	return ""
}

// FlushDTMF returns and clears the accumulated DTMF buffer (e.g. on
// '#' finalize).
func (s *Session) FlushDTMF() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := s.dtmfBuffer
	s.dtmfBuffer = ""
	return result
}

// SetSpeaking records whether TTS is currently playing audio to the
// caller. Barge-in requests are only honored while true.
func (s *Session) SetSpeaking(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsSpeaking = speaking
}

// RequestBargeIn marks an interruption request, only meaningful while
// TTS is actively playing.
func (s *Session) RequestBargeIn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IsSpeaking {
		s.BargeInRequested = true
	}
}

// ClearBargeIn resets the interruption flag once handled.
func (s *Session) ClearBargeIn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BargeInRequested = false
}

// Speaking reports whether TTS is currently playing to the caller.
func (s *Session) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IsSpeaking
}

// BargeInPending reports whether an interruption has been requested
// and not yet cleared.
func (s *Session) BargeInPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.BargeInRequested
}

// End marks the session inactive and stamps its end time.
func (s *Session) End() {
	s.mu.Lock()
	s.IsActive = false
	s.mu.Unlock()
	s.Metrics.End()
}

func containsByte(set string, b byte) bool {
	for i := 0; i < len(set); i++ {
		if set[i] == b {
			return true
		}
	}
	return false
}
