/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package video

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/command"
	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/playout"
	"github.com/friendsincode/grimnir_jukebox/internal/state"
	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
)

const workerName = "video"

// CommandType enumerates video worker commands.
type CommandType string

const (
	CmdPlayChannel  CommandType = "play_channel"
	CmdNext         CommandType = "next"
	CmdPrevious     CommandType = "previous"
	CmdStopPlayback CommandType = "stop_playback"
	CmdPause        CommandType = "pause"
	CmdResume       CommandType = "resume"
	CmdShutdown     CommandType = "shutdown"
)

// Command is one instruction for the video worker.
type Command struct {
	Type    CommandType `json:"type"`
	Locator string      `json:"locator,omitempty"`
}

func PlayChannel(locator string) Command { return Command{Type: CmdPlayChannel, Locator: locator} }
func Next() Command                      { return Command{Type: CmdNext} }
func Previous() Command                  { return Command{Type: CmdPrevious} }
func StopPlayback() Command              { return Command{Type: CmdStopPlayback} }
func Pause() Command                     { return Command{Type: CmdPause} }
func Resume() Command                    { return Command{Type: CmdResume} }
func Shutdown() Command                  { return Command{Type: CmdShutdown} }

// WatchedStore persists the watched set. A nil store degrades to in-memory
// tracking for the process lifetime.
type WatchedStore interface {
	LoadWatchedSet() (map[string]bool, error)
	MarkWatched(ids ...string) error
}

// Worker plays one channel at a time, item by item. All playback state
// (items, index, watched set, the running process) is owned by the worker
// goroutine.
type Worker struct {
	cfg      *config.Config
	source   Source
	launcher playout.Launcher
	store    WatchedStore
	state    *state.State
	bus      *events.Bus
	logger   zerolog.Logger
	queue    *command.Queue[Command]

	items   []Item
	index   int
	watched map[string]bool
	proc    playout.Handle

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewWorker builds a video worker. Call Start to begin processing.
func NewWorker(cfg *config.Config, source Source, launcher playout.Launcher, store WatchedStore, st *state.State, bus *events.Bus, logger zerolog.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		source:   source,
		launcher: launcher,
		store:    store,
		state:    st,
		bus:      bus,
		logger:   logger.With().Str("component", workerName).Logger(),
		queue:    command.NewQueue[Command](cfg.CommandQueueSize, workerName, logger),
		watched:  make(map[string]bool),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Enqueue offers a command to the worker without blocking.
func (w *Worker) Enqueue(cmd Command) bool {
	return w.queue.Enqueue(cmd)
}

// Stop sends shutdown through the command queue so work enqueued earlier
// drains first, then waits up to the configured join timeout. The quit
// channel is the escape hatch for a saturated queue or a wedged worker.
func (w *Worker) Stop() {
	if !w.queue.Enqueue(Shutdown()) {
		w.interrupt()
	}

	select {
	case <-w.done:
		return
	case <-time.After(w.cfg.WorkerJoinTimeout):
	}

	w.interrupt()
	select {
	case <-w.done:
	case <-time.After(w.cfg.WorkerJoinTimeout):
		w.logger.Warn().Msg("video worker did not stop in time")
	}
}

func (w *Worker) interrupt() {
	w.quitOnce.Do(func() { close(w.quit) })
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.stopProcess()

	for {
		// A nil proc yields a nil channel, which never fires.
		var procDone <-chan struct{}
		if w.proc != nil {
			procDone = w.proc.Done()
		}

		select {
		case <-w.quit:
			return
		case cmd := <-w.queue.C():
			if w.handle(cmd) {
				return
			}
		case <-procDone:
			// Finished on its own, advance to the next unwatched item.
			w.proc = nil
			w.playFrom(w.index + 1)
		}
	}
}

func (w *Worker) handle(cmd Command) bool {
	telemetry.CommandsProcessed.WithLabelValues(workerName).Inc()

	switch cmd.Type {
	case CmdShutdown:
		return true
	case CmdPlayChannel:
		w.loadChannel(cmd.Locator)
	case CmdNext:
		w.stopProcess()
		w.playFrom(w.index + 1)
	case CmdPrevious:
		w.stopProcess()
		w.playAt(w.prevIndex())
	case CmdStopPlayback:
		w.stopProcess()
		w.setStopped()
	case CmdPause:
		w.stopProcess()
		w.setStopped()
	case CmdResume:
		w.playAt(w.index)
	default:
		w.logger.Warn().Str("command", string(cmd.Type)).Msg("unknown command")
	}
	return false
}

func (w *Worker) loadChannel(locator string) {
	w.stopProcess()

	items, err := w.source.ListItems(context.Background(), locator, w.cfg.VideoFetchMax)
	if err != nil {
		w.logger.Error().Err(err).Str("locator", locator).Msg("channel listing failed")
		w.setStopped()
		return
	}
	if len(items) == 0 {
		w.logger.Warn().Str("locator", locator).Msg("channel is empty")
		w.setStopped()
		return
	}

	w.items = items
	w.index = 0
	w.watched = w.loadWatched()
	w.playFrom(0)
}

func (w *Worker) loadWatched() map[string]bool {
	if w.store == nil {
		return make(map[string]bool)
	}
	watched, err := w.store.LoadWatchedSet()
	if err != nil {
		w.logger.Warn().Err(err).Msg("watched set unavailable, starting empty")
		return make(map[string]bool)
	}
	return watched
}

// findUnwatched scans forward circularly from position `from`. When every
// item is watched it loops around to the requested position rather than
// failing, so a fresh channel starts over at index 0 and retry scans still
// advance through candidates.
func (w *Worker) findUnwatched(from int) int {
	n := len(w.items)
	from = ((from % n) + n) % n
	for off := 0; off < n; off++ {
		pos := (from + off) % n
		if !w.watched[w.items[pos].ID] {
			return pos
		}
	}
	return from
}

// playFrom selects the next unwatched item starting at `from` and plays it.
// Items whose stream URL cannot be resolved (e.g. scheduled but not yet
// live) are marked watched and skipped, bounded by the list length.
func (w *Worker) playFrom(from int) {
	if len(w.items) == 0 {
		w.logger.Warn().Msg("no channel loaded")
		return
	}

	for attempts := 0; attempts <= len(w.items); attempts++ {
		pos := w.findUnwatched(from)
		if w.startItem(pos) {
			return
		}
		from = pos + 1
	}
	w.logger.Error().Msg("no playable item in channel")
	w.setStopped()
}

// playAt plays the item at pos regardless of its watched flag, so previous
// and resume can replay already-seen items.
func (w *Worker) playAt(pos int) {
	if len(w.items) == 0 {
		w.logger.Warn().Msg("no channel loaded")
		return
	}
	n := len(w.items)
	pos = ((pos % n) + n) % n
	if !w.startItem(pos) {
		w.playFrom(pos + 1)
	}
}

// startItem marks the item watched, resolves its stream URL and spawns the
// player. Returns false when the item is unplayable.
func (w *Worker) startItem(pos int) bool {
	item := w.items[pos]
	w.index = pos
	w.markWatched(item.ID)

	url, err := w.source.ResolvePlayableURL(context.Background(), item)
	if err != nil {
		w.logger.Warn().Err(err).Str("video_id", item.ID).Msg("stream unavailable, skipping")
		return false
	}

	proc, err := w.launcher.LaunchVideo(context.Background(), url)
	if err != nil {
		w.logger.Error().Err(err).Str("video_id", item.ID).Msg("player launch failed")
		return false
	}
	w.proc = proc
	telemetry.VideosPlayed.Inc()

	if w.state.ActiveSource() == state.SourceVideo {
		w.state.Update(func(snap *state.Snapshot) {
			snap.Playing = true
			snap.VideoID = item.ID
			snap.VideoTitle = item.Title
			snap.Track = state.Track{Title: item.Title}
		})
	}
	w.bus.Publish(events.EventNowPlaying, events.Payload{
		"video_id": item.ID,
		"title":    item.Title,
	})

	w.logger.Info().Str("video_id", item.ID).Str("title", item.Title).Msg("playing video")
	return true
}

func (w *Worker) markWatched(id string) {
	w.watched[id] = true
	if w.store == nil {
		return
	}
	if err := w.store.MarkWatched(id); err != nil {
		w.logger.Warn().Err(err).Str("video_id", id).Msg("persist watched failed")
	}
}

func (w *Worker) prevIndex() int {
	if len(w.items) == 0 {
		return 0
	}
	return (w.index - 1 + len(w.items)) % len(w.items)
}

func (w *Worker) stopProcess() {
	if w.proc == nil {
		return
	}
	_ = w.proc.Stop()
	w.proc = nil
}

func (w *Worker) setStopped() {
	if w.state.ActiveSource() != state.SourceVideo {
		return
	}
	w.state.Update(func(snap *state.Snapshot) {
		snap.Playing = false
	})
}
