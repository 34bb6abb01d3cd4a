package sequencer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/state"
)

type fakeClient struct {
	mu     sync.Mutex
	calls  []string
	phase  Phase
	volume int
	fail   error
	closed bool
}

func (c *fakeClient) record(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	return c.fail
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) Play() error     { return c.record("play") }
func (c *fakeClient) Pause() error    { return c.record("pause") }
func (c *fakeClient) Next() error     { return c.record("next") }
func (c *fakeClient) Previous() error { return c.record("previous") }
func (c *fakeClient) Stop() error     { return c.record("stop") }

func (c *fakeClient) Load(playlist string, shuffle, autoplay bool) error {
	return c.record("load:" + playlist)
}

func (c *fakeClient) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "status")
	return Status{Phase: c.phase, Volume: c.volume}, c.fail
}

func (c *fakeClient) CurrentTrack() (TrackInfo, error) {
	return TrackInfo{Title: "song"}, nil
}

func (c *fakeClient) SetVolume(level int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "setvolume")
	c.volume = level
	return c.fail
}

func (c *fakeClient) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func testConfig() *config.Config {
	return &config.Config{
		CommandQueueSize:   8,
		MPDPollInterval:    time.Hour,
		ReconnectBaseDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:  50 * time.Millisecond,
		WorkerJoinTimeout:  time.Second,
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

func TestCommandsExecuteInOrder(t *testing.T) {
	client := &fakeClient{}
	w := NewWorker(testConfig(), func() (Client, error) { return client, nil },
		state.New(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(Next())
	w.Enqueue(Pause())
	w.Enqueue(Previous())
	w.Enqueue(Stop())

	waitFor(t, func() bool { return len(client.snapshot()) >= 4 })

	calls := client.snapshot()[:4]
	want := []string{"next", "pause", "previous", "stop"}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: expected %q, got %q (all: %v)", i, want[i], calls[i], calls)
		}
	}
}

func TestStopDrainsQueuedCommands(t *testing.T) {
	client := &fakeClient{}
	w := NewWorker(testConfig(), func() (Client, error) { return client, nil },
		state.New(), events.NewBus(), zerolog.Nop())
	w.Start()

	w.Enqueue(Next())
	w.Enqueue(Previous())
	w.Enqueue(Stop())
	w.Stop()

	calls := client.snapshot()
	want := []string{"next", "previous", "stop"}
	if len(calls) < len(want) {
		t.Fatalf("shutdown pre-empted queued commands: only %v executed", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: expected %q, got %q (all: %v)", i, want[i], calls[i], calls)
		}
	}
}

func TestToggleQueriesActualPhase(t *testing.T) {
	client := &fakeClient{phase: PhasePlaying}
	w := NewWorker(testConfig(), func() (Client, error) { return client, nil },
		state.New(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(Toggle())
	waitFor(t, func() bool {
		calls := client.snapshot()
		return len(calls) >= 2 && calls[len(calls)-1] == "pause"
	})

	client.mu.Lock()
	client.phase = PhaseStopped
	client.mu.Unlock()

	w.Enqueue(Toggle())
	waitFor(t, func() bool {
		calls := client.snapshot()
		return calls[len(calls)-1] == "play"
	})
}

func TestCommandFailureDropsConnection(t *testing.T) {
	first := &fakeClient{fail: errors.New("broken pipe")}
	second := &fakeClient{}

	var mu sync.Mutex
	dials := 0
	dial := func() (Client, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if dials == 1 {
			return first, nil
		}
		return second, nil
	}

	st := state.New()
	w := NewWorker(testConfig(), dial, st, events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	w.Enqueue(Next())

	waitFor(t, func() bool {
		first.mu.Lock()
		closed := first.closed
		first.mu.Unlock()
		return closed
	})

	// The worker should come back with a fresh connection.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials >= 2
	})
	waitFor(t, func() bool { return st.Snapshot().SequencerOnline })
}

func TestSyncVolumeWhileOffline(t *testing.T) {
	dial := func() (Client, error) { return nil, errors.New("connection refused") }
	w := NewWorker(testConfig(), dial, state.New(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	reply := make(chan VolumeReply, 1)
	w.Enqueue(GetVolume(reply))

	select {
	case got := <-reply:
		if !errors.Is(got.Err, ErrNotConnected) {
			t.Fatalf("expected ErrNotConnected, got %v", got.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply while offline")
	}
}

func TestSyncSetVolume(t *testing.T) {
	client := &fakeClient{}
	w := NewWorker(testConfig(), func() (Client, error) { return client, nil },
		state.New(), events.NewBus(), zerolog.Nop())
	w.Start()
	defer w.Stop()

	reply := make(chan VolumeReply, 1)
	w.Enqueue(SetVolume(42, reply))

	select {
	case got := <-reply:
		if got.Err != nil {
			t.Fatalf("set volume: %v", got.Err)
		}
		if got.Volume != 42 {
			t.Fatalf("expected volume 42, got %d", got.Volume)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
	}
}

func TestReconnectDelayGrowsAndCaps(t *testing.T) {
	base := 5 * time.Second
	max := 60 * time.Second

	delay := base
	var seen []time.Duration
	for i := 0; i < 10; i++ {
		delay = nextReconnectDelay(delay, max)
		seen = append(seen, delay)
	}

	if seen[0] != 7500*time.Millisecond {
		t.Fatalf("expected first growth to 7.5s, got %v", seen[0])
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("delay shrank: %v then %v", seen[i-1], seen[i])
		}
		if seen[i] > max {
			t.Fatalf("delay exceeded cap: %v", seen[i])
		}
	}
	if seen[len(seen)-1] != max {
		t.Fatalf("expected delay to cap at %v, got %v", max, seen[len(seen)-1])
	}
}
