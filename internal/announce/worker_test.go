package announce

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/playout"
	"github.com/friendsincode/grimnir_jukebox/internal/state"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *fakeSynth) Synthesize(ctx context.Context, text, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(path, []byte("wav"), 0o644)
}

func (s *fakeSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
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

func (l *fakeLauncher) LaunchAudio(ctx context.Context, path string) (playout.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := newFakeHandle()
	l.launched = append(l.launched, path)
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLauncher) LaunchVideo(ctx context.Context, url string) (playout.Handle, error) {
	return l.LaunchAudio(ctx, url)
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func (l *fakeLauncher) handle(i int) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= len(l.handles) {
		return nil
	}
	return l.handles[i]
}

type fakeAttenuator struct {
	mu       sync.Mutex
	ducks    int
	restores int
}

func (a *fakeAttenuator) Duck() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ducks++
}

func (a *fakeAttenuator) Restore() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.restores++
}

func (a *fakeAttenuator) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ducks, a.restores
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		CommandQueueSize:  8,
		AnnounceCacheDir:  t.TempDir(),
		WorkerJoinTimeout: time.Second,
	}
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

func TestCachePathStableAndDistinct(t *testing.T) {
	a := cachePath("/cache", "hello")
	b := cachePath("/cache", "hello")
	c := cachePath("/cache", "goodbye")

	if a != b {
		t.Fatalf("same text produced different paths: %q vs %q", a, b)
	}
	if a == c {
		t.Fatal("different texts produced the same path")
	}
}

func TestRepeatedTextSkipsSynthesis(t *testing.T) {
	synth := &fakeSynth{}
	launcher := &fakeLauncher{}

	w := NewWorker(testConfig(t), synth, launcher, nil, state.New(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(Announce("station id"))
	waitFor(t, func() bool { return launcher.count() == 1 })

	w.Enqueue(Announce("station id"))
	waitFor(t, func() bool { return launcher.count() == 2 })

	if got := synth.callCount(); got != 1 {
		t.Fatalf("expected one synthesis for repeated text, got %d", got)
	}
}

func TestNewAnnouncementInterruptsCurrent(t *testing.T) {
	synth := &fakeSynth{}
	launcher := &fakeLauncher{}
	st := state.New()

	w := NewWorker(testConfig(t), synth, launcher, nil, st, events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(Announce("A"))
	waitFor(t, func() bool { return launcher.count() == 1 })

	w.Enqueue(Announce("B"))
	waitFor(t, func() bool { return launcher.count() == 2 })

	select {
	case <-launcher.handle(0).Done():
	default:
		t.Fatal("expected first announcement terminated before second started")
	}
	if got := st.Snapshot().LastAnnouncement; got != "B" {
		t.Fatalf("expected last announcement B, got %q", got)
	}
}

func TestSynthesisFailureIsTerminalForCall(t *testing.T) {
	synth := &fakeSynth{err: errors.New("no voice")}
	launcher := &fakeLauncher{}

	w := NewWorker(testConfig(t), synth, launcher, nil, state.New(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(Announce("broken"))
	waitFor(t, func() bool { return synth.callCount() == 1 })

	time.Sleep(50 * time.Millisecond)
	if got := launcher.count(); got != 0 {
		t.Fatalf("expected no playback after synthesis failure, got %d launches", got)
	}
}

func TestStopDrainsQueuedAnnouncements(t *testing.T) {
	synth := &fakeSynth{}
	launcher := &fakeLauncher{}

	w := NewWorker(testConfig(t), synth, launcher, nil, state.New(), events.NewBus(), zerolog.Nop())
	w.Start()

	w.Enqueue(Announce("first"))
	w.Enqueue(Announce("second"))
	w.Stop()

	if got := launcher.count(); got != 2 {
		t.Fatalf("shutdown pre-empted queued announcements: %d launched", got)
	}
	if got := synth.callCount(); got != 2 {
		t.Fatalf("expected both texts synthesized, got %d", got)
	}
}

func TestDucksWhilePlayingAndRestoresOnExit(t *testing.T) {
	synth := &fakeSynth{}
	launcher := &fakeLauncher{}
	atten := &fakeAttenuator{}
	st := state.New()

	w := NewWorker(testConfig(t), synth, launcher, atten, st, events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(Announce("dinner time"))
	waitFor(t, func() bool { return launcher.count() == 1 })

	ducks, restores := atten.counts()
	if ducks != 1 || restores != 0 {
		t.Fatalf("expected duck without restore while playing, got %d/%d", ducks, restores)
	}
	if !st.Snapshot().Announcing {
		t.Fatal("expected announcing flag set")
	}

	launcher.handle(0).exit()
	waitFor(t, func() bool {
		_, restores := atten.counts()
		return restores == 1
	})
	waitFor(t, func() bool { return !st.Snapshot().Announcing })
}
