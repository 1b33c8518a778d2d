package containers

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestRingQueueOrderAndWrap(t *testing.T) {
	q := NewRingQueue[int](3)
	for round := 0; round < 4; round++ {
		for i := 0; i < 3; i++ {
			if err := q.Enqueue(round*10 + i); err != nil {
				t.Fatalf("round %d enqueue %d: %v", round, i, err)
			}
		}
		if !q.IsFull() {
			t.Fatalf("round %d: expected full queue", round)
		}
		if err := q.Enqueue(99); !errors.Is(err, ErrQueueFull) {
			t.Fatalf("round %d: expected ErrQueueFull, got %v", round, err)
		}
		front, err := q.Peek()
		if err != nil || front != round*10 {
			t.Fatalf("round %d: peek = %d, %v", round, front, err)
		}
		for i := 0; i < 3; i++ {
			v, err := q.Dequeue()
			if err != nil {
				t.Fatalf("round %d dequeue: %v", round, err)
			}
			if v != round*10+i {
				t.Fatalf("round %d: got %d, want %d", round, v, round*10+i)
			}
		}
		if q.Len() != 0 || !q.IsEmpty() {
			t.Fatalf("round %d: expected empty queue, len %d", round, q.Len())
		}
	}
}

func TestRingQueueEmpty(t *testing.T) {
	q := NewRingQueue[string](1)
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("dequeue on empty: %v", err)
	}
	if _, err := q.Peek(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("peek on empty: %v", err)
	}
}
