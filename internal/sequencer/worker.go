/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sequencer

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/command"
	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/state"
	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
)

// ErrNotConnected is returned on synchronous commands while the backend is
// unreachable.
var ErrNotConnected = errors.New("sequencer backend not connected")

const workerName = "sequencer"

// Worker owns the backend connection. It drains its command queue, polls
// transport status, and reconnects with capped backoff when the backend
// drops.
type Worker struct {
	cfg    *config.Config
	dial   Dialer
	queue  *command.Queue[Command]
	state  *state.State
	bus    *events.Bus
	logger zerolog.Logger

	client    Client
	lastTitle string

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewWorker builds a sequencer worker. Call Start to begin processing.
func NewWorker(cfg *config.Config, dial Dialer, st *state.State, bus *events.Bus, logger zerolog.Logger) *Worker {
	return &Worker{
		cfg:    cfg,
		dial:   dial,
		queue:  command.NewQueue[Command](cfg.CommandQueueSize, workerName, logger),
		state:  st,
		bus:    bus,
		logger: logger.With().Str("component", workerName).Logger(),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Enqueue offers a command to the worker without blocking. Returns false
// when the queue is full and the command was dropped.
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
		w.logger.Warn().Msg("sequencer worker did not stop in time")
	}
}

func (w *Worker) interrupt() {
	w.quitOnce.Do(func() { close(w.quit) })
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.disconnect()

	delay := w.cfg.ReconnectBaseDelay

	for {
		if w.client == nil {
			telemetry.SequencerReconnects.Inc()
			client, err := w.dial()
			if err != nil {
				w.logger.Warn().Err(err).Dur("retry_in", delay).Msg("backend unreachable")
				if w.waitOffline(delay) {
					return
				}
				delay = nextReconnectDelay(delay, w.cfg.ReconnectMaxDelay)
				continue
			}
			w.client = client
			delay = w.cfg.ReconnectBaseDelay
			w.setOnline(true)
			w.logger.Info().Msg("backend connected")
		}

		select {
		case <-w.quit:
			return
		case cmd := <-w.queue.C():
			if w.handle(cmd) {
				return
			}
		case <-time.After(w.cfg.MPDPollInterval):
			w.poll()
		}
	}
}

// waitOffline sleeps the backoff delay but keeps draining the queue so
// callers never see a stuck daemon. Only shutdown is honored while offline;
// everything else is answered with ErrNotConnected or dropped. Returns true
// when the worker should exit.
func (w *Worker) waitOffline(delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-w.quit:
			return true
		case cmd := <-w.queue.C():
			if cmd.Type == CmdShutdown {
				return true
			}
			if cmd.Reply != nil {
				cmd.Reply <- VolumeReply{Err: ErrNotConnected}
			}
			w.logger.Warn().Str("command", string(cmd.Type)).Msg("backend offline, command dropped")
		case <-timer.C:
			return false
		}
	}
}

// handle executes one command. Any backend error forces a disconnect so the
// reconnect loop gets a clean connection. Returns true on shutdown.
func (w *Worker) handle(cmd Command) bool {
	telemetry.CommandsProcessed.WithLabelValues(workerName).Inc()

	var err error
	switch cmd.Type {
	case CmdShutdown:
		return true
	case CmdToggle:
		err = w.toggle()
	case CmdPlay:
		err = w.client.Play()
	case CmdPause:
		err = w.client.Pause()
	case CmdNext:
		err = w.client.Next()
	case CmdPrevious:
		err = w.client.Previous()
	case CmdStop:
		err = w.client.Stop()
	case CmdLoad:
		err = w.client.Load(cmd.Playlist, cmd.Shuffle, cmd.AutoPlay)
	case CmdSetVolume:
		err = w.client.SetVolume(cmd.Volume)
		if cmd.Reply != nil {
			cmd.Reply <- VolumeReply{Volume: cmd.Volume, Err: err}
		}
	case CmdGetVolume:
		var status Status
		status, err = w.client.Status()
		if cmd.Reply != nil {
			cmd.Reply <- VolumeReply{Volume: status.Volume, Err: err}
		}
	default:
		w.logger.Warn().Str("command", string(cmd.Type)).Msg("unknown command")
	}

	if err != nil {
		w.logger.Error().Err(err).Str("command", string(cmd.Type)).Msg("command failed, dropping connection")
		w.disconnect()
	}
	return false
}

// toggle inspects the actual transport phase rather than trusting cached
// state, so a toggle after an external pause does the right thing.
func (w *Worker) toggle() error {
	status, err := w.client.Status()
	if err != nil {
		return err
	}
	if status.Phase == PhasePlaying {
		return w.client.Pause()
	}
	return w.client.Play()
}

func (w *Worker) poll() {
	status, err := w.client.Status()
	if err != nil {
		w.logger.Warn().Err(err).Msg("status poll failed, dropping connection")
		w.disconnect()
		return
	}

	track, err := w.client.CurrentTrack()
	if err != nil {
		w.logger.Warn().Err(err).Msg("current track poll failed, dropping connection")
		w.disconnect()
		return
	}

	// Only publish into shared state while the sequencer owns playback,
	// otherwise background polling would clobber video state.
	if w.state.ActiveSource() != state.SourceSequencer {
		return
	}

	w.state.Update(func(snap *state.Snapshot) {
		snap.Playing = status.Phase == PhasePlaying
		snap.Volume = status.Volume
		snap.Track = state.Track{
			Title:    track.Title,
			Artist:   track.Artist,
			Album:    track.Album,
			Elapsed:  status.Elapsed,
			Duration: status.Duration,
		}
	})

	if track.Title != w.lastTitle {
		w.lastTitle = track.Title
		w.bus.Publish(events.EventNowPlaying, events.Payload{
			"title":  track.Title,
			"artist": track.Artist,
			"album":  track.Album,
		})
	}
}

func (w *Worker) setOnline(online bool) {
	w.state.Update(func(snap *state.Snapshot) {
		snap.SequencerOnline = online
	})
	w.bus.Publish(events.EventConnection, events.Payload{
		"backend": workerName,
		"online":  online,
	})
}

func (w *Worker) disconnect() {
	if w.client == nil {
		return
	}
	_ = w.client.Close()
	w.client = nil
	w.setOnline(false)
}

// nextReconnectDelay grows the backoff by half, capped at max.
func nextReconnectDelay(current, max time.Duration) time.Duration {
	next := current + current/2
	if next > max {
		return max
	}
	return next
}
