// Package routing maps dialed numbers and in-call DTMF digits to
// features, personas, and easter eggs, following the original
// PhoneRouter's normalize/route/route_dtmf algorithm.
package routing

import (
	"regexp"
	"strings"

	"github.com/lokutor-ai/payphoned/internal/prompts"
)

// RouteResult describes where to route a call (§3).
type RouteResult struct {
	Feature         string
	DisplayName     string
	EntryType       prompts.EntryType
	PersonaKey      string
	IsDirectDial    bool
	Greeting        string // the matched entry's greeting (birthday greeting for the easter egg), "" if none
	FallbackGreeting string
}

var nonDigit = regexp.MustCompile(`\D`)

// Normalize strips non-digits and reduces the result to "XXX-XXXX"
// format for 7, 10, and 11 (leading "1") digit inputs. Any other length
// is returned as bare digits, guaranteed not to match any directory
// entry. Normalize is a retraction: Normalize(Normalize(x)) == Normalize(x).
func Normalize(number string) string {
	digits := nonDigit.ReplaceAllString(number, "")

	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		digits = digits[4:]
	case len(digits) == 10:
		digits = digits[3:]
	}

	if len(digits) == 7 {
		return digits[:3] + "-" + digits[3:]
	}
	return digits
}

// Route resolves a dialed number to a feature, persona, easter egg, or
// the not-in-service fallback.
func Route(dialed string) RouteResult {
	normalized := Normalize(dialed)

	if entry, ok := prompts.Directory[normalized]; ok {
		return RouteResult{
			Feature:      entry.Feature,
			DisplayName:  entry.Name,
			EntryType:    entry.Type,
			PersonaKey:   entry.PersonaKey,
			IsDirectDial: true,
			Greeting:     entry.Greeting,
		}
	}

	if prompts.BirthdayPattern.MatchString(normalized) {
		return RouteResult{
			Feature:      "easter_birthday",
			DisplayName:  "Birthday Line",
			EntryType:    prompts.EntryEasterEgg,
			IsDirectDial: true,
			Greeting:     prompts.BirthdayGreeting,
		}
	}

	return RouteResult{
		Feature:          "invalid",
		DisplayName:      "Not In Service",
		EntryType:        prompts.EntryInvalid,
		FallbackGreeting: prompts.DefaultGreetingNotInService,
		IsDirectDial:     false,
	}
}

// RouteDTMF resolves in-call DTMF input: a single recognised shortcut
// digit maps directly to its feature; anything else is treated as a
// dialed number.
func RouteDTMF(digits string) RouteResult {
	if len(digits) == 1 {
		if feature, ok := prompts.DTMFShortcuts[digits]; ok {
			name, greeting := directoryLookup(feature)
			return RouteResult{
				Feature:      feature,
				DisplayName:  name,
				EntryType:    prompts.EntryFeature,
				IsDirectDial: false,
				Greeting:     greeting,
			}
		}
	}
	return Route(digits)
}

// directoryLookup resolves a feature's display name and greeting from
// its directory entry, falling back to a title-cased feature name and
// no greeting when the feature has no directory entry (e.g. a pure
// DTMF shortcut with no direct-dial number).
func directoryLookup(feature string) (name, greeting string) {
	if number, ok := prompts.FeatureToNumber[feature]; ok {
		if entry, ok := prompts.Directory[number]; ok {
			return entry.Name, entry.Greeting
		}
	}
	return titleCase(strings.ReplaceAll(feature, "_", " ")), ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
