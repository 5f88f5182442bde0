package dialogue

import "strings"

// Sentence incrementally accumulates streamed LLM tokens and yields
// complete sentences as soon as they're available, without rescanning
// text it has already scanned. Each Push call only looks at the bytes
// appended since the last scan, making accumulation O(n) amortized
// over the life of the buffer rather than O(n^2) for a long response.
type Sentence struct {
	buf     strings.Builder
	scanned int // byte offset into buf already scanned for boundaries

	minFlushLen int    // shortest candidate flushed early rather than held for more text
	enders      string // punctuation runes that terminate a sentence
}

// NewSentence creates an empty incremental sentence buffer. minLength
// and delimiters come from the caller's TTS settings (MinSentenceLength,
// SentenceDelimiters) rather than being fixed at compile time.
func NewSentence(minLength int, delimiters string) *Sentence {
	return &Sentence{minFlushLen: minLength, enders: delimiters}
}

// Push appends a streamed token and returns any complete sentences it
// now completes, in order. Text after the last boundary remains
// buffered for the next call.
func (s *Sentence) Push(token string) []string {
	s.buf.WriteString(token)
	text := s.buf.String()

	var out []string
	start := 0
	for i := s.scanned; i < len(text); i++ {
		if !strings.ContainsRune(s.enders, rune(text[i])) {
			continue
		}
		// Absorb trailing quotes/close-parens/whitespace after the
		// ender before cutting, so `"Hello!"` flushes as one unit.
		end := i + 1
		for end < len(text) && (text[end] == '"' || text[end] == '\'' || text[end] == ')' || text[end] == ' ') {
			if text[end] == ' ' {
				end++
				break
			}
			end++
		}
		candidate := strings.TrimSpace(text[start:end])
		if len(candidate) >= s.minFlushLen {
			out = append(out, candidate)
			start = end
		}
	}
	s.scanned = len(text)
	if start > 0 {
		remainder := text[start:]
		s.buf.Reset()
		s.buf.WriteString(remainder)
		s.scanned -= start
	}
	return out
}

// Flush returns any remaining buffered text as a final sentence
// (called once the LLM stream ends), clearing the buffer.
func (s *Sentence) Flush() string {
	remainder := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	s.scanned = 0
	return remainder
}
