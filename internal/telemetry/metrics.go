package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the process-wide Prometheus registry for the per-session
// Metrics data model (§3): monotonically increasing counters that must
// never block call progress. Every Inc/Observe call here is lock-free on
// the hot path.
type Metrics struct {
	Registry *prometheus.Registry

	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsEnded   prometheus.Counter

	STTCalls prometheus.Counter
	LLMCalls prometheus.Counter
	TTSCalls prometheus.Counter

	ConsecutiveErrorHangups prometheus.Counter
	ProtocolErrors          prometheus.Counter

	AudioQueueDrops prometheus.Counter
	DTMFQueueDrops  prometheus.Counter

	PacedSenderLagMs prometheus.Histogram
	CallDurationSecs prometheus.Histogram
}

// New registers and returns the full metrics set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payphoned_active_sessions",
			Help: "Number of live call sessions.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_sessions_started_total",
			Help: "Total sessions started.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_sessions_ended_total",
			Help: "Total sessions ended.",
		}),
		STTCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_stt_calls_total",
			Help: "Total STT transcribe calls.",
		}),
		LLMCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_llm_calls_total",
			Help: "Total LLM generate calls.",
		}),
		TTSCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_tts_calls_total",
			Help: "Total TTS synthesize calls.",
		}),
		ConsecutiveErrorHangups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_consecutive_error_hangups_total",
			Help: "Calls ended after three consecutive errors.",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_protocol_errors_total",
			Help: "Fatal AudioSocket framing errors.",
		}),
		AudioQueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_audio_queue_drops_total",
			Help: "Audio chunks dropped due to a full audio queue.",
		}),
		DTMFQueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payphoned_dtmf_queue_drops_total",
			Help: "DTMF digits dropped due to a full DTMF queue.",
		}),
		PacedSenderLagMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payphoned_paced_sender_lag_ms",
			Help:    "Observed lag behind the expected pacing schedule.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		CallDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payphoned_call_duration_seconds",
			Help:    "Completed call durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
	reg.MustRegister(
		m.ActiveSessions, m.SessionsStarted, m.SessionsEnded,
		m.STTCalls, m.LLMCalls, m.TTSCalls,
		m.ConsecutiveErrorHangups, m.ProtocolErrors,
		m.AudioQueueDrops, m.DTMFQueueDrops,
		m.PacedSenderLagMs, m.CallDurationSecs,
	)
	return m
}
