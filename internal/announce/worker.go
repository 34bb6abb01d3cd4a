/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package announce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
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

const workerName = "announce"

// CommandType enumerates announcer commands.
type CommandType string

const (
	CmdAnnounce CommandType = "announce"
	CmdShutdown CommandType = "shutdown"
)

// Command is one instruction for the announcer worker.
type Command struct {
	Type CommandType `json:"type"`
	Text string      `json:"text,omitempty"`
}

func Announce(text string) Command { return Command{Type: CmdAnnounce, Text: text} }
func Shutdown() Command            { return Command{Type: CmdShutdown} }

// Attenuator lowers music volume while an announcement plays and restores
// it afterwards. Implementations must tolerate repeated calls.
type Attenuator interface {
	Duck()
	Restore()
}

// Worker synthesizes and plays announcements. At most one announcement is
// audible at a time: a new one interrupts and replaces the current one.
type Worker struct {
	cfg      *config.Config
	synth    Synthesizer
	launcher playout.Launcher
	atten    Attenuator
	state    *state.State
	bus      *events.Bus
	logger   zerolog.Logger
	queue    *command.Queue[Command]

	proc   playout.Handle
	ducked bool

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewWorker builds an announcer worker. atten may be nil. Call Start to
// begin processing.
func NewWorker(cfg *config.Config, synth Synthesizer, launcher playout.Launcher, atten Attenuator, st *state.State, bus *events.Bus, logger zerolog.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		synth:    synth,
		launcher: launcher,
		atten:    atten,
		state:    st,
		bus:      bus,
		logger:   logger.With().Str("component", workerName).Logger(),
		queue:    command.NewQueue[Command](cfg.CommandQueueSize, workerName, logger),
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
		w.logger.Warn().Msg("announcer worker did not stop in time")
	}
}

func (w *Worker) interrupt() {
	w.quitOnce.Do(func() { close(w.quit) })
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.finish()

	for {
		var procDone <-chan struct{}
		if w.proc != nil {
			procDone = w.proc.Done()
		}

		select {
		case <-w.quit:
			return
		case cmd := <-w.queue.C():
			telemetry.CommandsProcessed.WithLabelValues(workerName).Inc()
			switch cmd.Type {
			case CmdShutdown:
				return
			case CmdAnnounce:
				w.announce(cmd.Text)
			default:
				w.logger.Warn().Str("command", string(cmd.Type)).Msg("unknown command")
			}
		case <-procDone:
			w.proc = nil
			w.finish()
		}
	}
}

// announce renders (or reuses) the audio artifact for text, interrupts any
// in-flight announcement and plays the new one. A synthesis failure is
// terminal for this call only.
func (w *Worker) announce(text string) {
	if text == "" {
		return
	}

	path := cachePath(w.cfg.AnnounceCacheDir, text)
	if _, err := os.Stat(path); err != nil {
		if err := os.MkdirAll(w.cfg.AnnounceCacheDir, 0o755); err != nil {
			w.logger.Error().Err(err).Msg("create announce cache dir failed")
			return
		}
		if err := w.synth.Synthesize(context.Background(), text, path); err != nil {
			w.logger.Error().Err(err).Str("text", text).Msg("synthesis failed")
			return
		}
	}

	// Interrupt-and-replace: never two announcements at once.
	if w.proc != nil {
		_ = w.proc.Stop()
		w.proc = nil
	}

	if w.atten != nil && !w.ducked {
		w.atten.Duck()
		w.ducked = true
	}

	proc, err := w.launcher.LaunchAudio(context.Background(), path)
	if err != nil {
		w.logger.Error().Err(err).Msg("announcement playback failed")
		w.finish()
		return
	}
	w.proc = proc
	telemetry.AnnouncementsPlayed.Inc()

	w.state.Update(func(snap *state.Snapshot) {
		snap.Announcing = true
		snap.LastAnnouncement = text
	})
	w.bus.Publish(events.EventAnnouncement, events.Payload{"text": text})
	w.logger.Info().Str("text", text).Msg("announcing")
}

// finish clears the announcing flag and restores music volume.
func (w *Worker) finish() {
	if w.proc != nil {
		_ = w.proc.Stop()
		w.proc = nil
	}
	w.state.Update(func(snap *state.Snapshot) {
		snap.Announcing = false
	})
	if w.atten != nil && w.ducked {
		w.atten.Restore()
		w.ducked = false
	}
}

// cachePath addresses artifacts by the hash of the exact text, so repeated
// phrases skip synthesis entirely.
func cachePath(dir, text string) string {
	sum := sha256.Sum256([]byte(text))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".wav")
}
