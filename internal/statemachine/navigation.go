package statemachine

import "strings"

// menuPhrases, anywhere in a transcript, return the caller to the
// operator's main menu.
var menuPhrases = []string{"menu", "main menu", "go back"}

// goodbyePhrases end the call.
var goodbyePhrases = []string{"goodbye", "hang up", "bye"}

func containsAny(transcript string, phrases []string) bool {
	lower := strings.ToLower(strings.TrimSpace(transcript))
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isMenuRequest(transcript string) bool    { return containsAny(transcript, menuPhrases) }
func isGoodbyeRequest(transcript string) bool { return containsAny(transcript, goodbyePhrases) }
