package logging

import (
	"sync"
	"testing"
)

func TestLogBufferCircular(t *testing.T) {
	buffer := NewLogBuffer(2)
	buffer.Add(LogEntry{Message: "first"})
	buffer.Add(LogEntry{Message: "second"})
	buffer.Add(LogEntry{Message: "third"})

	entries := buffer.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "second" || entries[1].Message != "third" {
		t.Fatalf("unexpected order: %q, %q", entries[0].Message, entries[1].Message)
	}
}

func TestLogBufferEmpty(t *testing.T) {
	buffer := NewLogBuffer(0)
	if entries := buffer.List(); entries != nil {
		t.Fatalf("expected nil entries, got %d", len(entries))
	}
	buffer.Add(LogEntry{Message: "only"})
	if entries := buffer.Find("only"); len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestLogBufferConcurrentAdds(t *testing.T) {
	buffer := NewLogBuffer(50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				buffer.Add(LogEntry{Message: "entry"})
			}
		}()
	}
	wg.Wait()

	if entries := buffer.List(); len(entries) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(entries))
	}
}
