package providersetup

import (
	"testing"

	"github.com/lokutor-ai/payphoned/internal/config"
)

func testSettings() *config.Settings {
	return &config.Settings{
		LLM: config.LLM{Temperature: 0.7, TopP: 0.9, MaxTokens: 150},
	}
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STT_PROVIDER", "LLM_PROVIDER",
		"GROQ_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GOOGLE_API_KEY",
		"DEEPGRAM_API_KEY", "ASSEMBLYAI_API_KEY", "LOKUTOR_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestBuildRequiresLokutorKey(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GROQ_API_KEY", "groq-key")

	if _, err := Build(testSettings()); err == nil {
		t.Fatal("expected an error when LOKUTOR_API_KEY is unset")
	}
}

func TestBuildDefaultsToGroq(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("LOKUTOR_API_KEY", "lokutor-key")

	factory, err := Build(testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sttP, llmP, ttsP := factory()
	if sttP.Name() != "groq-stt" {
		t.Errorf("expected groq-stt, got %s", sttP.Name())
	}
	if llmP.Name() != "groq-llm" {
		t.Errorf("expected groq-llm, got %s", llmP.Name())
	}
	if ttsP == nil {
		t.Error("expected a non-nil tts provider")
	}
}

func TestBuildRejectsMissingProviderKey(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("LOKUTOR_API_KEY", "lokutor-key")
	t.Setenv("STT_PROVIDER", "deepgram")

	if _, err := Build(testSettings()); err == nil {
		t.Fatal("expected an error when the selected STT provider's key is missing")
	}
}

func TestBuildHonorsExplicitProviderSelection(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("LOKUTOR_API_KEY", "lokutor-key")
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("STT_PROVIDER", "openai")
	t.Setenv("LLM_PROVIDER", "openai")

	factory, err := Build(testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sttP, llmP, _ := factory()
	if sttP.Name() != "openai-stt" {
		t.Errorf("expected openai-stt, got %s", sttP.Name())
	}
	if llmP.Name() != "openai-llm" {
		t.Errorf("expected openai-llm, got %s", llmP.Name())
	}
}
