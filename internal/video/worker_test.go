package video

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/playout"
	"github.com/friendsincode/grimnir_jukebox/internal/state"
)

type fakeSource struct {
	mu    sync.Mutex
	items []Item
	fail  map[string]bool
}

func (s *fakeSource) ListItems(ctx context.Context, locator string, limit int) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...), nil
}

func (s *fakeSource) ResolvePlayableURL(ctx context.Context, item Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[item.ID] {
		return "", errors.New("not yet live")
	}
	return "stream://" + item.ID, nil
}

type fakeHandle struct {
	once sync.Once
	done chan struct{}
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{done: make(chan struct{})}
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Stop() error {
	h.exit()
	return nil
}

func (h *fakeHandle) exit() {
	h.once.Do(func() { close(h.done) })
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
	handles  []*fakeHandle
}

func (l *fakeLauncher) LaunchVideo(ctx context.Context, url string) (playout.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := newFakeHandle()
	l.launched = append(l.launched, url)
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLauncher) LaunchAudio(ctx context.Context, path string) (playout.Handle, error) {
	return l.LaunchVideo(ctx, path)
}

func (l *fakeLauncher) urls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.launched...)
}

func (l *fakeLauncher) handle(i int) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= len(l.handles) {
		return nil
	}
	return l.handles[i]
}

type fakeStore struct {
	mu      sync.Mutex
	watched map[string]bool
	marks   []string
}

func (s *fakeStore) LoadWatchedSet() (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.watched))
	for id := range s.watched {
		out[id] = true
	}
	return out, nil
}

func (s *fakeStore) MarkWatched(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = append(s.marks, ids...)
	return nil
}

func (s *fakeStore) marked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.marks...)
}

func testConfig() *config.Config {
	return &config.Config{
		CommandQueueSize:  8,
		VideoFetchMax:     10,
		WorkerJoinTimeout: time.Second,
	}
}

func videoState() *state.State {
	st := state.New()
	st.Update(func(snap *state.Snapshot) { snap.ActiveSource = state.SourceVideo })
	return st
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func threeItems() []Item {
	return []Item{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "second"},
		{ID: "c", Title: "third"},
	}
}

func TestSkipsWatchedItems(t *testing.T) {
	src := &fakeSource{items: threeItems()}
	launcher := &fakeLauncher{}
	store := &fakeStore{watched: map[string]bool{"a": true, "b": true}}

	w := NewWorker(testConfig(), src, launcher, store, videoState(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(PlayChannel("channel"))

	waitFor(t, func() bool { return len(launcher.urls()) == 1 })
	if got := launcher.urls()[0]; got != "stream://c" {
		t.Fatalf("expected first unwatched item, got %q", got)
	}
}

func TestAllWatchedLoopsToFirstItem(t *testing.T) {
	src := &fakeSource{items: threeItems()}
	launcher := &fakeLauncher{}
	store := &fakeStore{watched: map[string]bool{"a": true, "b": true, "c": true}}

	w := NewWorker(testConfig(), src, launcher, store, videoState(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(PlayChannel("channel"))

	waitFor(t, func() bool { return len(launcher.urls()) == 1 })
	if got := launcher.urls()[0]; got != "stream://a" {
		t.Fatalf("expected loop-around to first item, got %q", got)
	}
}

func TestResolveFailureMarksWatchedAndAdvances(t *testing.T) {
	src := &fakeSource{items: threeItems(), fail: map[string]bool{"a": true}}
	launcher := &fakeLauncher{}
	store := &fakeStore{watched: map[string]bool{}}

	w := NewWorker(testConfig(), src, launcher, store, videoState(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(PlayChannel("channel"))

	waitFor(t, func() bool { return len(launcher.urls()) == 1 })
	if got := launcher.urls()[0]; got != "stream://b" {
		t.Fatalf("expected advance past unresolvable item, got %q", got)
	}

	marks := store.marked()
	sawFailed := false
	for _, id := range marks {
		if id == "a" {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Fatalf("expected failed item marked watched, marks: %v", marks)
	}
}

func TestAutoAdvanceOnProcessExit(t *testing.T) {
	src := &fakeSource{items: threeItems()}
	launcher := &fakeLauncher{}
	store := &fakeStore{watched: map[string]bool{}}

	st := videoState()
	w := NewWorker(testConfig(), src, launcher, store, st, events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(PlayChannel("channel"))
	waitFor(t, func() bool { return len(launcher.urls()) == 1 })

	// Simulate the player exiting on its own.
	launcher.handle(0).exit()

	waitFor(t, func() bool { return len(launcher.urls()) == 2 })
	if got := launcher.urls()[1]; got != "stream://b" {
		t.Fatalf("expected auto-advance to next item, got %q", got)
	}
	if got := st.Snapshot().VideoID; got != "b" {
		t.Fatalf("expected state updated to item b, got %q", got)
	}
}

func TestAllWatchedSkipsUnplayableFirstItem(t *testing.T) {
	src := &fakeSource{items: threeItems(), fail: map[string]bool{"a": true}}
	launcher := &fakeLauncher{}
	store := &fakeStore{watched: map[string]bool{"a": true, "b": true, "c": true}}

	w := NewWorker(testConfig(), src, launcher, store, videoState(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(PlayChannel("channel"))

	// The loop starts over at item a; when a cannot resolve, the retry
	// advances to the next candidate instead of hammering index 0.
	waitFor(t, func() bool { return len(launcher.urls()) == 1 })
	if got := launcher.urls()[0]; got != "stream://b" {
		t.Fatalf("expected advance past unplayable first item, got %q", got)
	}
}

func TestStopDrainsQueuedCommands(t *testing.T) {
	src := &fakeSource{items: threeItems()}
	launcher := &fakeLauncher{}
	store := &fakeStore{watched: map[string]bool{}}

	w := NewWorker(testConfig(), src, launcher, store, videoState(), events.NewBus(), zerolog.Nop())
	w.Start()

	w.Enqueue(PlayChannel("channel"))
	w.Enqueue(Next())
	w.Stop()

	urls := launcher.urls()
	if len(urls) != 2 || urls[0] != "stream://a" || urls[1] != "stream://b" {
		t.Fatalf("shutdown pre-empted queued commands: launched %v", urls)
	}
}

func TestManualNextStopsCurrentProcess(t *testing.T) {
	src := &fakeSource{items: threeItems()}
	launcher := &fakeLauncher{}
	store := &fakeStore{watched: map[string]bool{}}

	w := NewWorker(testConfig(), src, launcher, store, videoState(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(PlayChannel("channel"))
	waitFor(t, func() bool { return len(launcher.urls()) == 1 })

	w.Enqueue(Next())
	waitFor(t, func() bool { return len(launcher.urls()) == 2 })

	first := launcher.handle(0)
	select {
	case <-first.Done():
	default:
		t.Fatal("expected first process stopped before next started")
	}
	if got := launcher.urls()[1]; got != "stream://b" {
		t.Fatalf("expected second item, got %q", got)
	}
}
