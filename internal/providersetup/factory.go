// Package providersetup resolves which STT/LLM/TTS backends to use
// from environment variables, following the same PROVIDER env-var
// convention as the original local-mic agent.
package providersetup

import (
	"fmt"
	"log"
	"os"

	"github.com/lokutor-ai/payphoned/internal/config"
	"github.com/lokutor-ai/payphoned/internal/providers/llm"
	"github.com/lokutor-ai/payphoned/internal/providers/stt"
	"github.com/lokutor-ai/payphoned/internal/providers/tts"
)

// Factory builds one fresh STT/LLM/TTS provider set. Provider instances
// carry per-conversation state (streaming connections, history), so a
// new set is built per call/session rather than shared.
type Factory func() (stt.Provider, llm.Provider, tts.Provider)

// Build resolves STT_PROVIDER/LLM_PROVIDER (default "groq") and their
// API keys from the environment, validates the selection once up
// front, and returns a Factory that builds fresh providers on demand.
func Build(settings *config.Settings) (Factory, error) {
	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	googleKey := os.Getenv("GOOGLE_API_KEY")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	assemblyKey := os.Getenv("ASSEMBLYAI_API_KEY")
	lokutorKey := os.Getenv("LOKUTOR_API_KEY")

	sttProviderName := envOr("STT_PROVIDER", "groq")
	llmProviderName := envOr("LLM_PROVIDER", "groq")

	if lokutorKey == "" {
		return nil, fmt.Errorf("LOKUTOR_API_KEY must be set")
	}

	newSTT := func() (stt.Provider, error) {
		switch sttProviderName {
		case "openai":
			if openaiKey == "" {
				return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai STT")
			}
			return stt.NewOpenAI(openaiKey, envOr("OPENAI_STT_MODEL", "whisper-1")), nil
		case "deepgram":
			if deepgramKey == "" {
				return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram STT")
			}
			return stt.NewDeepgram(deepgramKey), nil
		case "assemblyai":
			if assemblyKey == "" {
				return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for assemblyai STT")
			}
			return stt.NewAssemblyAI(assemblyKey), nil
		default:
			if groqKey == "" {
				return nil, fmt.Errorf("GROQ_API_KEY must be set for groq STT")
			}
			return stt.NewGroq(groqKey, envOr("GROQ_STT_MODEL", "whisper-large-v3-turbo")), nil
		}
	}

	newLLM := func() (llm.Provider, error) {
		temp, topP, maxTokens := settings.LLM.Temperature, settings.LLM.TopP, settings.LLM.MaxTokens
		switch llmProviderName {
		case "openai":
			if openaiKey == "" {
				return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai LLM")
			}
			return llm.NewOpenAI(openaiKey, envOr("OPENAI_LLM_MODEL", "gpt-4o"), temp, topP, maxTokens), nil
		case "anthropic":
			if anthropicKey == "" {
				return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for anthropic LLM")
			}
			return llm.NewAnthropic(anthropicKey, envOr("ANTHROPIC_LLM_MODEL", "claude-3-5-sonnet-20241022")), nil
		case "google":
			if googleKey == "" {
				return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google LLM")
			}
			return llm.NewGoogle(googleKey, envOr("GOOGLE_LLM_MODEL", "gemini-1.5-flash")), nil
		default:
			if groqKey == "" {
				return nil, fmt.Errorf("GROQ_API_KEY must be set for groq LLM")
			}
			return llm.NewGroq(groqKey, envOr("GROQ_LLM_MODEL", "llama-3.3-70b-versatile"), temp, topP, maxTokens), nil
		}
	}

	if _, err := newSTT(); err != nil {
		return nil, err
	}
	if _, err := newLLM(); err != nil {
		return nil, err
	}

	return func() (stt.Provider, llm.Provider, tts.Provider) {
		sttP, err := newSTT()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		llmP, err := newLLM()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		return sttP, llmP, tts.NewLokutor(lokutorKey)
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
