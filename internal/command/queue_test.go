package command

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestEnqueueDeliversInOrder(t *testing.T) {
	q := NewQueue[int](4, "test", zerolog.Nop())

	for i := 0; i < 3; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue %d failed on non-full queue", i)
		}
	}

	for i := 0; i < 3; i++ {
		if got := <-q.C(); got != i {
			t.Fatalf("expected %d, got %d", i, got)
		}
	}
}

func TestEnqueueDropsNewestWhenFull(t *testing.T) {
	q := NewQueue[string](2, "test", zerolog.Nop())

	q.Enqueue("a")
	q.Enqueue("b")
	if q.Enqueue("c") {
		t.Fatal("expected drop on full queue")
	}

	if got := <-q.C(); got != "a" {
		t.Fatalf("expected oldest command kept, got %q", got)
	}
	if got := <-q.C(); got != "b" {
		t.Fatalf("expected second command kept, got %q", got)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, len = %d", q.Len())
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	q := NewQueue[int](1, "test", zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Enqueue(i)
		}
		close(done)
	}()

	<-done
}
