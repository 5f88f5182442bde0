// Package prompts holds the static, read-only, process-wide tables: the
// phone directory, DTMF shortcuts, the birthday easter egg pattern, and
// the system prompt catalog. These are initialized once and never
// mutated; an optional YAML overlay can extend or override the built-in
// tables without a rebuild.
package prompts

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// EntryType enumerates the three flavors of dialed destination.
type EntryType string

const (
	EntryFeature   EntryType = "feature"
	EntryPersona   EntryType = "persona"
	EntryEasterEgg EntryType = "easter_egg"
	EntryInvalid   EntryType = "invalid"
)

// DirectoryEntry is the static phone-directory record (§3).
type DirectoryEntry struct {
	Feature    string    `yaml:"feature"`
	Name       string    `yaml:"name"`
	Type       EntryType `yaml:"type"`
	Greeting   string    `yaml:"greeting"`
	PersonaKey string    `yaml:"persona_key,omitempty"`
	Alias      string    `yaml:"alias,omitempty"`
}

const OperatorNumber = "555-0000"

// BirthdayPattern matches 555-MMDD (01<=MM<=12, 01<=DD<=31).
var BirthdayPattern = regexp.MustCompile(`^555-(?:0[1-9]|1[0-2])(?:0[1-9]|[12]\d|3[01])$`)

const BirthdayGreeting = "Happy birthday to you! The AI Payphone wishes you a wonderful day!"

const DefaultGreetingNotInService = "We're sorry. The number you have dialed is not in service. " +
	"Please check the number and try again, or dial 555-0000 for the operator."

// Directory is the built-in phone directory, keyed by normalized
// "XXX-XXXX" number.
var Directory = map[string]DirectoryEntry{
	"555-0000": {Feature: "operator", Name: "The Operator", Type: EntryFeature,
		Greeting: "You're speaking with the operator. How can I help?"},
	"767-2676": {Feature: "time_temp", Name: "Time & Temperature", Alias: "POPCORN", Type: EntryFeature,
		Greeting: "At the tone, the time will be now. Welcome to Time and Temperature."},
	"777-3456": {Feature: "moviefone", Name: "Moviefone", Alias: "777-FILM", Type: EntryFeature,
		Greeting: "Hello, and welcome to Moviefone! What movie would you like to see?"},
	"867-5309": {Feature: "easter_jenny", Name: "Jenny", Type: EntryEasterEgg,
		Greeting: "Hello? Who is this? How did you get this number? Oh, you must have got it off the wall."},
	"555-9328": {Feature: "weather", Name: "Weather Forecast", Alias: "WEAT", Type: EntryFeature,
		Greeting: "Welcome to the Weather Forecast line. What city would you like the forecast for?"},
	"555-4676": {Feature: "horoscope", Name: "Daily Horoscope", Alias: "HORO", Type: EntryFeature,
		Greeting: "Welcome to the Horoscope Line. What's your sign?"},
	"555-6397": {Feature: "news", Name: "News Headlines", Alias: "NEWS", Type: EntryFeature,
		Greeting: "Welcome to News Headlines. Here are today's top stories."},
	"555-7767": {Feature: "sports", Name: "Sports Scores", Alias: "SPOR", Type: EntryFeature,
		Greeting: "Welcome to Sports Scores. What sport are you following?"},
	"555-5653": {Feature: "jokes", Name: "Dial-A-Joke", Alias: "JOKE", Type: EntryFeature,
		Greeting: "Welcome to Dial-A-Joke! Want to hear a joke?"},
	"555-8748": {Feature: "trivia", Name: "Trivia Challenge", Alias: "TRIV", Type: EntryFeature,
		Greeting: "Welcome to Trivia Challenge! Ready for a question?"},
	"555-7867": {Feature: "stories", Name: "Story Time", Alias: "STOR", Type: EntryFeature,
		Greeting: "Welcome to Story Time. Would you like to hear a story?"},
	"555-3678": {Feature: "fortune", Name: "Fortune Teller", Alias: "FORT", Type: EntryFeature,
		Greeting: "Welcome to the Fortune Teller. The spirits are listening. Ask about your future."},
}

// DTMFShortcuts maps a single dialed digit (during a call) to a feature.
var DTMFShortcuts = map[string]string{
	"1": "jokes",
	"2": "trivia",
	"3": "weather",
	"4": "horoscope",
	"5": "news",
	"6": "sports",
	"7": "stories",
	"8": "fortune",
}

// FeatureToNumber is the reverse index used to look up a feature's
// display name from its directory entry.
var FeatureToNumber = buildFeatureIndex()

func buildFeatureIndex() map[string]string {
	idx := make(map[string]string, len(Directory))
	for number, entry := range Directory {
		idx[entry.Feature] = number
	}
	return idx
}

// basePrompt is the default system prompt applied when no feature or
// persona override exists.
const basePrompt = "You are a friendly AI operator answering calls on a nostalgic " +
	"novelty payphone line. Keep responses brief and speakable."

// featurePrompts overrides basePrompt per feature.
var featurePrompts = map[string]string{
	"operator": basePrompt,
	"jokes":    "You are a cheesy joke-telling phone operator. Tell one short joke per turn.",
	"trivia":   "You run a trivia phone line. Ask one question at a time and confirm the answer.",
	"weather":  "You are a friendly weather hotline. Ask for a city if none was given, then describe conditions briefly.",
}

// personaPrompts overrides basePrompt per persona key.
var personaPrompts = map[string]string{}

// GetSystemPrompt resolves the system prompt for a feature and/or
// persona, falling back to the base prompt.
func GetSystemPrompt(feature, persona string) string {
	if persona != "" {
		if p, ok := personaPrompts[persona]; ok {
			return p
		}
	}
	if feature != "" {
		if p, ok := featurePrompts[feature]; ok {
			return p
		}
	}
	return basePrompt
}

// overlay is the shape an optional YAML overlay file may take; any
// non-empty maps extend or override the built-in tables.
type overlay struct {
	Directory      map[string]DirectoryEntry `yaml:"directory"`
	DTMFShortcuts  map[string]string         `yaml:"dtmf_shortcuts"`
	FeaturePrompts map[string]string         `yaml:"feature_prompts"`
	PersonaPrompts map[string]string         `yaml:"persona_prompts"`
}

// LoadOverlay reads a YAML overlay file and merges it into the built-in
// tables. It is safe to call with an empty path (no-op).
func LoadOverlay(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("prompts: reading overlay: %w", err)
	}
	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("prompts: parsing overlay: %w", err)
	}
	for k, v := range ov.Directory {
		Directory[k] = v
	}
	for k, v := range ov.DTMFShortcuts {
		DTMFShortcuts[k] = v
	}
	for k, v := range ov.FeaturePrompts {
		featurePrompts[k] = v
	}
	for k, v := range ov.PersonaPrompts {
		personaPrompts[k] = v
	}
	FeatureToNumber = buildFeatureIndex()
	return nil
}
