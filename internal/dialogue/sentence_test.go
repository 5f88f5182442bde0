package dialogue

import "testing"

func TestSentencePushEmitsOnBoundary(t *testing.T) {
	s := NewSentence(8, ".!?")
	var got []string
	for _, tok := range []string{"Hello there", ", ", "world", ". ", "How are you", "?"} {
		got = append(got, s.Push(tok)...)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(got), got)
	}
	if got[0] != "Hello there, world." {
		t.Errorf("unexpected first sentence: %q", got[0])
	}
}

func TestSentenceShortFragmentNotFlushedMidStream(t *testing.T) {
	s := NewSentence(8, ".!?")
	out := s.Push("Hi.")
	if len(out) != 0 {
		t.Errorf("expected no flush for short fragment mid-stream, got %v", out)
	}
}

func TestSentenceFlushReturnsRemainder(t *testing.T) {
	s := NewSentence(8, ".!?")
	s.Push("this has no terminator yet")
	rest := s.Flush()
	if rest != "this has no terminator yet" {
		t.Errorf("unexpected flush remainder: %q", rest)
	}
	if s.Flush() != "" {
		t.Error("expected empty buffer after flush")
	}
}

func TestSentenceHonorsConfiguredDelimiters(t *testing.T) {
	s := NewSentence(8, ".!?,")
	out := s.Push("First clause, still going")
	if len(out) != 1 || out[0] != "First clause," {
		t.Errorf("expected the comma delimiter to flush early, got %v", out)
	}
}

func TestSentenceIncrementalScanDoesNotReexamineConsumedText(t *testing.T) {
	s := NewSentence(8, ".!?")
	s.Push("First sentence here. ")
	// scanned should now point past the emitted sentence; pushing more
	// text must not re-derive the first sentence again.
	out := s.Push("Second sentence follows. ")
	if len(out) != 1 || out[0] != "Second sentence follows." {
		t.Errorf("unexpected second-call output: %v", out)
	}
}
