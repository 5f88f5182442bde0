package dialogue

import "testing"

func TestContextSystemMessagesPrecedeOthers(t *testing.T) {
	c := NewContext(5)
	c.AddUser("hi")
	c.AddSystem("you are a bot")
	msgs := c.Messages()
	if msgs[0].Role != "system" {
		t.Fatalf("expected system message first, got %+v", msgs)
	}
}

func TestContextTrimKeepsSystemMessages(t *testing.T) {
	c := NewContext(2) // limit = 4 non-system messages
	c.AddSystem("sys")
	for i := 0; i < 10; i++ {
		c.AddUser("u")
		c.AddAssistant("a")
	}
	msgs := c.Messages()
	systemCount := 0
	nonSystemCount := 0
	for _, m := range msgs {
		if m.Role == "system" {
			systemCount++
		} else {
			nonSystemCount++
		}
	}
	if systemCount != 1 {
		t.Errorf("expected system message to survive trimming, got count %d", systemCount)
	}
	if nonSystemCount != 4 {
		t.Errorf("expected exactly 4 non-system messages after trim, got %d", nonSystemCount)
	}
}

func TestContextLastUserAndAssistant(t *testing.T) {
	c := NewContext(5)
	c.AddUser("first")
	c.AddAssistant("reply one")
	c.AddUser("second")
	c.AddAssistant("reply two")
	if c.LastUser() != "second" {
		t.Errorf("unexpected last user: %q", c.LastUser())
	}
	if c.LastAssistant() != "reply two" {
		t.Errorf("unexpected last assistant: %q", c.LastAssistant())
	}
}

func TestContextClearPreservesSystem(t *testing.T) {
	c := NewContext(5)
	c.AddSystem("sys")
	c.AddUser("hi")
	c.Clear()
	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Role != "system" {
		t.Errorf("expected only system message to remain, got %+v", msgs)
	}
}
