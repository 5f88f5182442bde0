package audiosocket

import (
	"testing"
	"time"
)

func TestAudioQueueDropOldest(t *testing.T) {
	drops := 0
	q := NewAudioQueue(2, func() { drops++ })
	q.TryPut([]byte{1})
	q.TryPut([]byte{2})
	q.TryPut([]byte{3}) // drops {1}

	first, ok := q.Get(0)
	if !ok || first[0] != 2 {
		t.Fatalf("expected oldest retained chunk to be {2}, got %v ok=%v", first, ok)
	}
	second, ok := q.Get(0)
	if !ok || second[0] != 3 {
		t.Fatalf("expected second chunk {3}, got %v ok=%v", second, ok)
	}
	if drops != 1 {
		t.Errorf("expected 1 drop, got %d", drops)
	}
}

func TestAudioQueueGetTimeout(t *testing.T) {
	q := NewAudioQueue(2, nil)
	start := time.Now()
	_, ok := q.Get(20 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout with no items")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Error("returned too early")
	}
}

func TestDTMFQueueDropNewest(t *testing.T) {
	drops := 0
	q := NewDTMFQueue(2, func() { drops++ })
	q.TryPut('1')
	q.TryPut('2')
	q.TryPut('3') // dropped, queue stays {1,2}

	first, ok := q.Get(0)
	if !ok || first != '1' {
		t.Fatalf("expected '1' first, got %c ok=%v", first, ok)
	}
	second, ok := q.Get(0)
	if !ok || second != '2' {
		t.Fatalf("expected '2' second, got %c ok=%v", second, ok)
	}
	if drops != 1 {
		t.Errorf("expected 1 drop, got %d", drops)
	}
}

func TestQueueHasItems(t *testing.T) {
	q := NewAudioQueue(1, nil)
	if q.HasItems() {
		t.Fatal("expected empty queue")
	}
	q.TryPut([]byte{1})
	if !q.HasItems() {
		t.Fatal("expected non-empty queue")
	}
}
