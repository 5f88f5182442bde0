package statemachine

import (
	"context"
	"strings"
	"time"

	"github.com/lokutor-ai/payphoned/internal/audiosocket"
	"github.com/lokutor-ai/payphoned/internal/config"
	"github.com/lokutor-ai/payphoned/internal/pipeline"
	"github.com/lokutor-ai/payphoned/internal/prompts"
	"github.com/lokutor-ai/payphoned/internal/routing"
	"github.com/lokutor-ai/payphoned/internal/session"
	"github.com/lokutor-ai/payphoned/internal/telemetry"
)

// maxConsecutiveErrors ends a call after this many handler failures in
// a row — a transient STT/LLM/TTS error is recovered with a spoken
// apology, but a run of them means something is actually broken.
const maxConsecutiveErrors = 3

const (
	welcomeGreeting = "Welcome to the AI Payphone! " +
		"I'm your operator. You can talk to me naturally, " +
		"or dial a number for specific services. " +
		"Press star at any time to return to this menu. " +
		"How can I help you today?"

	menuReturnPrompt = "Returning to the main menu. How can I help you?"

	goodbyeMessage = "Thanks for calling the AI Payphone! Have a great day. Goodbye!"

	stillThereTimeoutPrompt = "Are you still there? Say something or press any key to continue."

	invalidNumberPrompt = "I don't recognize that number. Press 1 through 8 for a feature, " +
		"or star for the operator."
)

// Machine drives one call through greeting, listening, responding,
// DTMF routing, silence timeout, and hangup. It owns no I/O itself —
// every blocking operation goes through Pipeline and Connection.
type Machine struct {
	conn     *audiosocket.Connection
	sess     *session.Session
	pipe     *pipeline.Pipeline
	settings *config.Settings
	logger   telemetry.Logger
	metrics  *telemetry.Metrics

	state         State
	previousState State

	silenceStart      time.Time
	timeoutPrompted   bool
	consecutiveErrors int
}

// New builds a Machine starting in IDLE.
func New(
	conn *audiosocket.Connection,
	sess *session.Session,
	pipe *pipeline.Pipeline,
	settings *config.Settings,
	logger telemetry.Logger,
	metrics *telemetry.Metrics,
) *Machine {
	if logger == nil {
		logger = telemetry.NoOpLogger{}
	}
	return &Machine{
		conn:     conn,
		sess:     sess,
		pipe:     pipe,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		state:    StateIdle,
	}
}

// State reports the machine's current state.
func (m *Machine) State() State { return m.state }

// transitionTo moves to a new state and logs the trigger. Entering any
// state other than TIMEOUT or LISTENING clears the silence-timeout
// bookkeeping, mirroring the original rule that only those two states
// carry timeout state forward.
func (m *Machine) transitionTo(state State, trigger string) {
	if state == m.state {
		return
	}
	m.logger.Debug("statemachine: transition",
		"call", m.sess.CallID, "from", m.state.String(), "to", state.String(), "trigger", trigger)
	m.previousState = m.state
	m.state = state
	if state != StateTimeout && state != StateListening {
		m.silenceStart = time.Time{}
		m.timeoutPrompted = false
	}
}

// Run drives the call to completion: one handler step at a time until
// HANGUP or ctx is cancelled. Three consecutive handler failures force
// a hangup; anything under that is recovered with a spoken apology and
// a return to LISTENING, matching the original's tolerance for
// transient STT/LLM/TTS hiccups.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			m.handleHangup(context.Background())
			return ctx.Err()
		}

		if m.state == StateHangup {
			return m.handleHangup(ctx)
		}

		if !m.conn.IsActive() {
			m.transitionTo(StateHangup, "remote_hangup")
			continue
		}

		if m.sess.Metrics.DurationSeconds() >= m.settings.Timeouts.MaxCallDuration.Seconds() {
			m.transitionTo(StateHangup, "max_call_duration")
			continue
		}

		if err := m.step(ctx); err != nil {
			m.consecutiveErrors++
			m.logger.Error("statemachine: step failed",
				"call", m.sess.CallID, "state", m.state.String(),
				"err", err, "consecutiveErrors", m.consecutiveErrors)

			if m.consecutiveErrors >= maxConsecutiveErrors {
				if m.metrics != nil {
					m.metrics.ConsecutiveErrorHangups.Inc()
				}
				m.transitionTo(StateHangup, "consecutive_errors")
				continue
			}

			m.speakApology(ctx)
			m.transitionTo(StateListening, "error_recovered")
			continue
		}
		m.consecutiveErrors = 0
	}
}

func (m *Machine) speakApology(ctx context.Context) {
	const apology = "Sorry, I had trouble with that. Could you say it again?"
	if _, err := m.pipe.SpeakText(ctx, apology); err != nil {
		m.logger.Warn("statemachine: apology speech failed", "call", m.sess.CallID, "err", err)
	}
}

func (m *Machine) step(ctx context.Context) error {
	switch m.state {
	case StateIdle:
		return m.handleIdle(ctx)
	case StateMainMenu:
		return m.handleMainMenu(ctx)
	case StateListening:
		return m.handleListening(ctx)
	case StateBargeIn:
		return m.handleBargeIn(ctx)
	case StateTimeout:
		return m.handleTimeout(ctx)
	case StateGoodbye:
		return m.handleGoodbye(ctx)
	case StateGreeting, StateProcessing, StateSpeaking, StateFeature:
		// Entered and exited synchronously within the handler that
		// transitioned here (handleIdle, processTranscript,
		// handleDTMF, routeNumber); Run never observes them as a
		// standing state.
		return nil
	default:
		return nil
	}
}

// handleIdle plays the opening greeting. A directly-dialed extension
// (from the UUID frame) routes straight to its feature; anything
// invalid is told so and the call ends. Otherwise the caller lands on
// the operator with the standard welcome message.
func (m *Machine) handleIdle(ctx context.Context) error {
	m.transitionTo(StateGreeting, "call_start")

	if ext := m.sess.DialedExtension; ext != "" {
		result := routing.Route(ext)
		if result.EntryType == prompts.EntryInvalid {
			m.transitionTo(StateSpeaking, "play_not_in_service")
			if _, err := m.pipe.SpeakText(ctx, result.FallbackGreeting); err != nil {
				return err
			}
			m.transitionTo(StateHangup, "invalid_direct_dial")
			return nil
		}

		m.sess.SwitchFeature(result.Feature)
		if result.PersonaKey != "" {
			m.sess.SwitchPersona(result.PersonaKey)
		}

		greeting := result.Greeting
		if greeting == "" {
			greeting = welcomeGreeting
		}

		m.transitionTo(StateSpeaking, "play_greeting")
		if _, err := m.pipe.SpeakText(ctx, greeting); err != nil {
			return err
		}
		m.transitionTo(StateListening, "greeting_complete")
		return nil
	}

	m.transitionTo(StateSpeaking, "play_greeting")
	if _, err := m.pipe.SpeakText(ctx, welcomeGreeting); err != nil {
		return err
	}
	m.transitionTo(StateListening, "greeting_complete")
	return nil
}

// handleMainMenu peeks for a waiting DTMF digit; otherwise it's just a
// waypoint back to LISTENING.
func (m *Machine) handleMainMenu(ctx context.Context) error {
	if digit, ok := m.conn.PopDTMF(); ok {
		return m.handleDTMF(ctx, digit)
	}
	m.transitionTo(StateListening, "awaiting_input")
	return nil
}

// handleListening collects one caller turn: a DTMF digit takes
// priority, then speech is awaited up to SilencePrompt. Silence that
// long moves to TIMEOUT for the first stall prompt; once that prompt
// has fired, handleListening keeps timing the same silenceStart clock
// against SilenceGoodbye so the second stage is reachable too — it
// aliases the same state pair (LISTENING/TIMEOUT) but a different
// deadline, so the gate can't key off timeoutPrompted alone. Anything
// said is handed to processTranscript.
func (m *Machine) handleListening(ctx context.Context) error {
	if m.silenceStart.IsZero() {
		m.silenceStart = time.Now()
	}

	if digit, ok := m.conn.PopDTMF(); ok {
		return m.handleDTMF(ctx, digit)
	}

	listenCtx, cancel := context.WithTimeout(ctx, m.settings.Timeouts.SilencePrompt)
	defer cancel()

	transcript, confidence, err := m.pipe.ListenAndTranscribe(listenCtx)
	if err != nil && listenCtx.Err() == nil {
		return err
	}
	// A reported confidence below MinConfidence counts as no transcript;
	// 0 means the provider reported none and is not treated as low.
	if confidence > 0 && confidence < m.settings.MinConfidence {
		transcript = ""
	}

	if strings.TrimSpace(transcript) != "" {
		m.silenceStart = time.Time{}
		return m.processTranscript(ctx, transcript)
	}

	switch {
	case !m.timeoutPrompted && time.Since(m.silenceStart) >= m.settings.Timeouts.SilencePrompt:
		m.transitionTo(StateTimeout, "silence_timeout")
	case m.timeoutPrompted && time.Since(m.silenceStart) >= m.settings.Timeouts.SilenceGoodbye:
		m.transitionTo(StateTimeout, "extended_silence")
	}
	return nil
}

// processTranscript checks navigation phrases before falling through
// to the LLM, then routes the resulting state on whether the reply was
// interrupted.
func (m *Machine) processTranscript(ctx context.Context, transcript string) error {
	m.transitionTo(StateProcessing, "transcript_ready")

	if isMenuRequest(transcript) {
		m.sess.SwitchFeature("operator")
		m.transitionTo(StateSpeaking, "menu_return")
		if _, err := m.pipe.SpeakText(ctx, menuReturnPrompt); err != nil {
			return err
		}
		m.transitionTo(StateListening, "menu_return")
		return nil
	}

	if isGoodbyeRequest(transcript) {
		m.transitionTo(StateGoodbye, "user_goodbye")
		return nil
	}

	m.transitionTo(StateSpeaking, "response_ready")
	_, interrupted, err := m.pipe.GenerateAndSpeak(ctx, transcript)
	if err != nil {
		return err
	}

	if interrupted {
		m.transitionTo(StateBargeIn, "user_interrupt")
	} else {
		m.transitionTo(StateListening, "response_complete")
	}
	return nil
}

// handleDTMF implements the in-call digit rules: '*' always returns to
// the operator menu, '#' finalizes whatever's accumulated, any other
// digit accumulates until the inter-digit timeout completes a number.
func (m *Machine) handleDTMF(ctx context.Context, digit string) error {
	m.logger.Debug("statemachine: dtmf received", "call", m.sess.CallID, "digit", digit)

	if digit == "*" {
		m.sess.SwitchFeature("operator")
		m.transitionTo(StateSpeaking, "menu_return")
		if _, err := m.pipe.SpeakText(ctx, menuReturnPrompt); err != nil {
			return err
		}
		m.transitionTo(StateListening, "menu_return")
		return nil
	}

	if digit == "#" {
		if number := m.sess.FlushDTMF(); number != "" {
			return m.routeNumber(ctx, number)
		}
		return nil
	}

	if complete := m.sess.AddDTMF(digit); complete != "" {
		return m.routeNumber(ctx, complete)
	}
	return nil
}

// routeNumber resolves a finalized digit string to a feature, speaks
// its greeting, and lands back on LISTENING — or, if the number is
// unrecognized, apologizes and stays on LISTENING without switching
// features.
func (m *Machine) routeNumber(ctx context.Context, number string) error {
	m.logger.Info("statemachine: routing dialed number", "call", m.sess.CallID, "number", number)
	result := routing.RouteDTMF(number)

	if result.EntryType == prompts.EntryInvalid {
		m.transitionTo(StateSpeaking, "invalid_number")
		if _, err := m.pipe.SpeakText(ctx, invalidNumberPrompt); err != nil {
			return err
		}
		m.transitionTo(StateListening, "invalid_number")
		return nil
	}

	m.sess.SwitchFeature(result.Feature)
	if result.PersonaKey != "" {
		m.sess.SwitchPersona(result.PersonaKey)
	}

	greeting := result.Greeting
	if greeting == "" {
		greeting = "Welcome to " + result.DisplayName + "!"
	}

	m.transitionTo(StateFeature, "feature_"+result.Feature)
	if _, err := m.pipe.SpeakText(ctx, greeting); err != nil {
		return err
	}
	m.transitionTo(StateListening, "feature_"+result.Feature)
	return nil
}

// handleBargeIn clears the interruption flag and resumes listening —
// the caller already has the floor.
func (m *Machine) handleBargeIn(ctx context.Context) error {
	m.sess.ClearBargeIn()
	m.transitionTo(StateListening, "barge_in")
	return nil
}

// handleTimeout is the two-stage silence handler: the first time
// through, it prompts once and returns to LISTENING without ending the
// call. handleListening re-enters TIMEOUT a second time once silence
// since that prompt passes SilenceGoodbye, at which point the call
// ends; short of that it keeps giving LISTENING another turn, letting
// that handler's own blocking read set the pace rather than spinning
// here.
func (m *Machine) handleTimeout(ctx context.Context) error {
	if !m.timeoutPrompted {
		m.timeoutPrompted = true
		if _, err := m.pipe.SpeakText(ctx, stillThereTimeoutPrompt); err != nil {
			return err
		}
		m.silenceStart = time.Now()
		m.transitionTo(StateListening, "timeout_prompt")
		return nil
	}

	if time.Since(m.silenceStart) >= m.settings.Timeouts.SilenceGoodbye {
		m.transitionTo(StateGoodbye, "extended_silence")
		return nil
	}
	m.transitionTo(StateListening, "still_waiting")
	return nil
}

func (m *Machine) handleGoodbye(ctx context.Context) error {
	if _, err := m.pipe.SpeakText(ctx, goodbyeMessage); err != nil {
		return err
	}
	m.transitionTo(StateHangup, "goodbye_complete")
	return nil
}

func (m *Machine) handleHangup(ctx context.Context) error {
	_ = m.conn.Hangup()
	m.sess.End()
	if m.metrics != nil {
		m.metrics.SessionsEnded.Inc()
		m.metrics.CallDurationSecs.Observe(m.sess.Metrics.DurationSeconds())
	}
	m.logger.Info("statemachine: call ended", "call", m.sess.CallID,
		"durationSecs", m.sess.Metrics.DurationSeconds(), "features", m.sess.Metrics.FeatureNames())
	return nil
}
