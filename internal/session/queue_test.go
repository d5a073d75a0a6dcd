package session

import (
	"fmt"
	"testing"
)

func TestQueueBound(t *testing.T) {
	q := NewQueue(40)

	// Push 50 chunks without flushing; only the 40 most recent survive.
	for i := 0; i < 50; i++ {
		q.Push([]byte(fmt.Sprintf("chunk-%d", i)))
	}

	if q.Len() != 40 {
		t.Fatalf("Expected queue length 40, got %d", q.Len())
	}
	if q.Dropped() != 10 {
		t.Errorf("Expected 10 evictions, got %d", q.Dropped())
	}

	chunks := q.Drain()
	for i, chunk := range chunks {
		expected := fmt.Sprintf("chunk-%d", i+10)
		if string(chunk) != expected {
			t.Errorf("Position %d: expected %s, got %s", i, expected, chunk)
		}
	}
}

func TestQueueDrainEmpties(t *testing.T) {
	q := NewQueue(10)
	q.Push([]byte("a"))
	q.Push([]byte("b"))

	chunks := q.Drain()
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 drained chunks, got %d", len(chunks))
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue after drain, got %d", q.Len())
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 5; i++ {
		q.Push([]byte{byte(i)})
	}

	chunks := q.Drain()
	for i, chunk := range chunks {
		if chunk[0] != byte(i) {
			t.Errorf("Position %d: expected %d, got %d", i, i, chunk[0])
		}
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue(10)
	q.Push([]byte("a"))
	q.Clear()

	if q.Len() != 0 {
		t.Errorf("Expected empty queue after clear, got %d", q.Len())
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < DefaultQueueCapacity+5; i++ {
		q.Push([]byte{byte(i)})
	}
	if q.Len() != DefaultQueueCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultQueueCapacity, q.Len())
	}
}
