package state

import (
	"sync"
	"testing"
	"time"
)

func TestSnapshotIsCopy(t *testing.T) {
	s := New()
	s.Update(func(snap *Snapshot) {
		snap.ActiveSource = SourceSequencer
		snap.Track.Title = "original"
	})

	snap := s.Snapshot()
	snap.Track.Title = "mutated"

	if got := s.Snapshot().Track.Title; got != "original" {
		t.Fatalf("snapshot mutation leaked into state: %q", got)
	}
}

func TestEventsEvictOldestBeyondCapacity(t *testing.T) {
	s := New()
	for i := 0; i < maxEvents+10; i++ {
		s.AddEvent(ButtonEvent{Pin: i, Timestamp: time.Now()})
	}

	events := s.RecentEvents(0)
	if len(events) != maxEvents {
		t.Fatalf("expected %d events, got %d", maxEvents, len(events))
	}
	if events[0].Pin != 10 {
		t.Fatalf("expected oldest evicted, first pin = %d", events[0].Pin)
	}
	if events[len(events)-1].Pin != maxEvents+9 {
		t.Fatalf("expected newest kept, last pin = %d", events[len(events)-1].Pin)
	}
}

func TestRecentEventsLimit(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.AddEvent(ButtonEvent{Pin: i})
	}

	events := s.RecentEvents(2)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Pin != 3 || events[1].Pin != 4 {
		t.Fatalf("expected newest two, got pins %d, %d", events[0].Pin, events[1].Pin)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(snap *Snapshot) { snap.Volume++ })
		}()
	}
	wg.Wait()

	if got := s.Snapshot().Volume; got != 50 {
		t.Fatalf("expected 50 increments, got %d", got)
	}
}
