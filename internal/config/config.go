// Package config assembles process-wide settings from the environment,
// mirroring the sub-settings grouping of the original payphone application:
// audio, VAD, STT, LLM, TTS, and timeouts each get their own block.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Audio holds the audio-processing surface (§6 configuration table).
type Audio struct {
	AudioSocketHost string `validate:"required"`
	AudioSocketPort int    `validate:"required,gt=0,lt=65536"`

	InputSampleRate  int `validate:"required"`
	STTSampleRate    int `validate:"required"`
	TTSOutputRate    int `validate:"required"`
	OutputSampleRate int `validate:"required"`

	TelephoneLowcutHz  float64 `validate:"required"`
	TelephoneHighcutHz float64 `validate:"required"`

	ChunkSize int `validate:"required,gt=0"`
}

// VAD holds endpointing and barge-in tuning.
type VAD struct {
	Threshold           float64       `validate:"gt=0,lt=1"`
	MinSpeechDuration    time.Duration `validate:"gt=0"`
	MinSilenceDuration   time.Duration `validate:"gt=0"`
	MaxUtterance         time.Duration `validate:"gt=0"`
	BargeInThreshold     float64       `validate:"gt=0,lt=1"`
	BargeInEnabled       bool
	PoolSize             int `validate:"gt=0"`
}

// LLM holds generation policy.
type LLM struct {
	FirstTokenTimeout time.Duration `validate:"gt=0"`
	InterTokenTimeout time.Duration `validate:"gt=0"`
	Temperature       float64
	TopP              float64
	MaxTokens         int `validate:"gt=0"`
}

// TTS holds speech-synthesis chunking.
type TTS struct {
	MinSentenceLength int    `validate:"gt=0"`
	SentenceDelimiters string `validate:"required"`
	Voice             string `validate:"required"`
	Speed             float64
}

// Timeouts holds conversation pacing.
type Timeouts struct {
	SilencePrompt   time.Duration `validate:"gt=0"`
	SilenceGoodbye  time.Duration `validate:"gt=0"`
	DTMFInterDigit  time.Duration `validate:"gt=0"`
	MaxCallDuration time.Duration `validate:"gt=0"`
	SpeakingSafety  time.Duration `validate:"gt=0"`
}

// Settings aggregates all sub-settings, initialized once at process start.
type Settings struct {
	Audio    Audio
	VAD      VAD
	LLM      LLM
	TTS      TTS
	Timeouts Timeouts

	MinConfidence float64

	PromptsOverlayPath string
}

// Load reads .env (best-effort) then assembles Settings from the
// environment, applying the same defaults as the original application.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is not fatal; system environment variables still apply.
	}

	s := &Settings{
		Audio: Audio{
			AudioSocketHost:    envStr("AUDIO_AUDIOSOCKET_HOST", "0.0.0.0"),
			AudioSocketPort:    envInt("AUDIO_AUDIOSOCKET_PORT", 9092),
			InputSampleRate:    envInt("AUDIO_INPUT_SAMPLE_RATE", 8000),
			STTSampleRate:      envInt("AUDIO_STT_SAMPLE_RATE", 16000),
			TTSOutputRate:      envInt("AUDIO_TTS_OUTPUT_RATE", 24000),
			OutputSampleRate:   envInt("AUDIO_OUTPUT_SAMPLE_RATE", 8000),
			TelephoneLowcutHz:  envFloat("AUDIO_TELEPHONE_LOWCUT", 300.0),
			TelephoneHighcutHz: envFloat("AUDIO_TELEPHONE_HIGHCUT", 3400.0),
			ChunkSize:          envInt("AUDIO_CHUNK_SIZE", 320),
		},
		VAD: VAD{
			Threshold:          envFloat("VAD_THRESHOLD", 0.5),
			MinSpeechDuration:  envDuration("VAD_MIN_SPEECH_DURATION_MS", 250*time.Millisecond),
			MinSilenceDuration: envDuration("VAD_MIN_SILENCE_DURATION_MS", 500*time.Millisecond),
			MaxUtterance:       envDuration("VAD_MAX_UTTERANCE_SECONDS", 30*time.Second),
			BargeInThreshold:   envFloat("VAD_BARGE_IN_THRESHOLD", 0.8),
			BargeInEnabled:     envBool("VAD_BARGE_IN_ENABLED", true),
			PoolSize:           envInt("VAD_POOL_SIZE", 3),
		},
		LLM: LLM{
			FirstTokenTimeout: envDuration("LLM_FIRST_TOKEN_TIMEOUT", 25*time.Second),
			InterTokenTimeout: envDuration("LLM_INTER_TOKEN_TIMEOUT", 5*time.Second),
			Temperature:       envFloat("LLM_TEMPERATURE", 0.7),
			TopP:              envFloat("LLM_TOP_P", 0.9),
			MaxTokens:         envInt("LLM_MAX_TOKENS", 150),
		},
		TTS: TTS{
			MinSentenceLength:  envInt("TTS_MIN_SENTENCE_LENGTH", 10),
			SentenceDelimiters: envStr("TTS_SENTENCE_DELIMITERS", ".!?,"),
			Voice:              envStr("TTS_VOICE", "af_bella"),
			Speed:              envFloat("TTS_SPEED", 1.0),
		},
		Timeouts: Timeouts{
			SilencePrompt:   envDuration("TIMEOUT_SILENCE_PROMPT_S", 10*time.Second),
			SilenceGoodbye:  envDuration("TIMEOUT_SILENCE_GOODBYE_S", 30*time.Second),
			DTMFInterDigit:  envDuration("TIMEOUT_DTMF_INTER_DIGIT_S", 3*time.Second),
			MaxCallDuration: envDuration("TIMEOUT_MAX_CALL_DURATION_S", 1800*time.Second),
			SpeakingSafety:  envDuration("TIMEOUT_SPEAKING_SAFETY_S", 5*time.Second),
		},
		MinConfidence:      envFloat("STT_MIN_CONFIDENCE", 0.35),
		PromptsOverlayPath: envStr("PROMPTS_OVERLAY_PATH", ""),
	}

	if err := validator.New().Struct(s); err != nil {
		return nil, fmt.Errorf("config: invalid settings: %w", err)
	}
	return s, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			// Bare integers in these keys are seconds or milliseconds depending
			// on the suffix already baked into the key name; the default's unit
			// tells us which, so scale relative to it.
			if def >= time.Second {
				return time.Duration(n) * time.Second
			}
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}
