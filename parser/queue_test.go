package parser

import "testing"

func TestBufferQueueOrdering(t *testing.T) {
	q := NewBufferQueue()
	if !q.IsEmpty() {
		t.Error("Expected a new queue to be empty")
	}
	q.PushBack("b")
	q.PushBack("c")
	q.PushFront("a")
	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.PopFront()
		if !ok {
			t.Fatalf("Expected %q, queue was empty", want)
		}
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
	if _, ok := q.PopFront(); ok {
		t.Error("Expected the queue to be drained")
	}
	if !q.IsEmpty() {
		t.Error("Expected the queue to be empty after draining")
	}
}

func TestBufferQueueIgnoresEmptyChunks(t *testing.T) {
	q := NewBufferQueue()
	q.PushBack("")
	q.PushFront("")
	if !q.IsEmpty() {
		t.Error("Expected empty chunks to be dropped")
	}
	q.PushBack("x")
	q.PushFront("")
	got, _ := q.PopFront()
	if got != "x" {
		t.Errorf("Expected %q, got %q", "x", got)
	}
}
