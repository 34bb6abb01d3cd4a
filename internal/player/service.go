/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player orchestrates the workers behind transport-agnostic
// playback operations. Every inbound surface (HTTP, websocket, physical
// buttons) maps 1:1 onto this service.
package player

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/announce"
	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
	"github.com/friendsincode/grimnir_jukebox/internal/sequencer"
	"github.com/friendsincode/grimnir_jukebox/internal/sources"
	"github.com/friendsincode/grimnir_jukebox/internal/state"
	"github.com/friendsincode/grimnir_jukebox/internal/video"
)

// ErrVolumeUnavailable is returned when the synchronous volume path times
// out or the backend is offline.
var ErrVolumeUnavailable = errors.New("volume unavailable")

// SequencerControl is the sequencer worker's queue.
type SequencerControl interface {
	Enqueue(cmd sequencer.Command) bool
}

// VideoControl is the video worker's queue.
type VideoControl interface {
	Enqueue(cmd video.Command) bool
}

// AnnounceControl is the announcer worker's queue.
type AnnounceControl interface {
	Enqueue(cmd announce.Command) bool
}

// Service routes playback operations to whichever worker owns the active
// source. All operations are fire-and-forget except the synchronous volume
// path.
type Service struct {
	cfg    *config.Config
	seq    SequencerControl
	vid    VideoControl
	ann    AnnounceControl
	mgr    *sources.Manager
	state  *state.State
	bus    *events.Bus
	logger zerolog.Logger

	// cycleMu serializes source transitions so stop-before-load ordering
	// holds under concurrent callers.
	cycleMu sync.Mutex

	ready      atomic.Bool
	prevVolume atomic.Int64
}

// NewService wires the orchestrator. ann may be nil at construction when
// the announcer itself depends on this service for volume ducking; wire it
// afterwards with SetAnnouncer.
func NewService(cfg *config.Config, seq SequencerControl, vid VideoControl, ann AnnounceControl, mgr *sources.Manager, st *state.State, bus *events.Bus, logger zerolog.Logger) *Service {
	s := &Service{
		cfg:    cfg,
		seq:    seq,
		vid:    vid,
		ann:    ann,
		mgr:    mgr,
		state:  st,
		bus:    bus,
		logger: logger.With().Str("component", "player").Logger(),
	}
	s.prevVolume.Store(int64(cfg.FullVolume))
	return s
}

// SetAnnouncer completes the service/announcer cycle after construction.
func (s *Service) SetAnnouncer(ann AnnounceControl) {
	s.ann = ann
}

// SetReady marks all workers as started. Drives the health endpoint.
func (s *Service) SetReady() {
	s.ready.Store(true)
}

// Ready reports whether the service accepts operations.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// Sources returns the rotation list.
func (s *Service) Sources() []models.Source {
	return s.mgr.All()
}

// TogglePlay pauses or resumes whatever is active.
func (s *Service) TogglePlay() {
	switch s.state.ActiveSource() {
	case state.SourceSequencer:
		s.seq.Enqueue(sequencer.Toggle())
	case state.SourceVideo:
		if s.state.Snapshot().Playing {
			s.vid.Enqueue(video.Pause())
		} else {
			s.vid.Enqueue(video.Resume())
		}
	default:
		s.logger.Info().Msg("toggle with no active source, ignored")
	}
}

// Next skips forward within the active source.
func (s *Service) Next() {
	switch s.state.ActiveSource() {
	case state.SourceSequencer:
		s.seq.Enqueue(sequencer.Next())
	case state.SourceVideo:
		s.vid.Enqueue(video.Next())
	default:
		s.logger.Info().Msg("next with no active source, ignored")
	}
}

// Previous skips backward within the active source.
func (s *Service) Previous() {
	switch s.state.ActiveSource() {
	case state.SourceSequencer:
		s.seq.Enqueue(sequencer.Previous())
	case state.SourceVideo:
		s.vid.Enqueue(video.Previous())
	default:
		s.logger.Info().Msg("previous with no active source, ignored")
	}
}

// CycleSource rotates to the next source: announce it, stop the old worker,
// then load the new one. Stop-before-load must hold for every transition.
func (s *Service) CycleSource() error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	next, err := s.mgr.Next()
	if err != nil {
		return err
	}

	s.Announce(fmt.Sprintf("%s, %s", next.Category, next.Name))

	switch s.state.ActiveSource() {
	case state.SourceSequencer:
		s.seq.Enqueue(sequencer.Stop())
	case state.SourceVideo:
		s.vid.Enqueue(video.StopPlayback())
	}

	s.loadSource(next)
	return nil
}

// PlayCurrent starts the current rotation source, used at boot.
func (s *Service) PlayCurrent() error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	current, err := s.mgr.Current()
	if err != nil {
		return err
	}
	s.loadSource(current)
	return nil
}

func (s *Service) loadSource(src models.Source) {
	switch src.Kind {
	case models.SourceSequencer:
		s.state.Update(func(snap *state.Snapshot) {
			snap.ActiveSource = state.SourceSequencer
			snap.SourceName = src.Name
			snap.SourceCategory = src.Category
			snap.VideoID = ""
			snap.VideoTitle = ""
		})
		// Music must come back at full volume even if an announcement
		// ducked it; synchronous so the load plays at the right level.
		if err := s.SetVolume(s.cfg.FullVolume, true); err != nil {
			s.logger.Warn().Err(err).Msg("restore volume before load failed")
		}
		s.seq.Enqueue(sequencer.Load(src.Locator, true, true))
	case models.SourceVideo:
		s.state.Update(func(snap *state.Snapshot) {
			snap.ActiveSource = state.SourceVideo
			snap.SourceName = src.Name
			snap.SourceCategory = src.Category
			snap.Track = state.Track{}
		})
		s.vid.Enqueue(video.PlayChannel(src.Locator))
	default:
		s.logger.Warn().Str("kind", string(src.Kind)).Str("name", src.Name).Msg("unknown source kind, skipped")
		return
	}

	s.logger.Info().Str("name", src.Name).Str("kind", string(src.Kind)).Msg("source loaded")
	s.bus.Publish(events.EventSourceChange, events.Payload{
		"name":     src.Name,
		"kind":     string(src.Kind),
		"category": src.Category,
	})
}

// CurrentVolume asks the sequencer backend synchronously, bounded by the
// configured timeout.
func (s *Service) CurrentVolume() (int, error) {
	reply := make(chan sequencer.VolumeReply, 1)
	if !s.seq.Enqueue(sequencer.GetVolume(reply)) {
		return 0, ErrVolumeUnavailable
	}
	select {
	case got := <-reply:
		if got.Err != nil {
			return 0, fmt.Errorf("%w: %s", ErrVolumeUnavailable, got.Err)
		}
		return got.Volume, nil
	case <-timeoutAfter(s.cfg):
		return 0, ErrVolumeUnavailable
	}
}

// SetVolume sets the sequencer volume, optionally waiting for confirmation.
func (s *Service) SetVolume(level int, synchronous bool) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	if !synchronous {
		s.seq.Enqueue(sequencer.SetVolume(level, nil))
		return nil
	}

	reply := make(chan sequencer.VolumeReply, 1)
	if !s.seq.Enqueue(sequencer.SetVolume(level, reply)) {
		return ErrVolumeUnavailable
	}
	select {
	case got := <-reply:
		if got.Err != nil {
			return fmt.Errorf("%w: %s", ErrVolumeUnavailable, got.Err)
		}
		return nil
	case <-timeoutAfter(s.cfg):
		return ErrVolumeUnavailable
	}
}

// Announce speaks text over the current audio.
func (s *Service) Announce(text string) {
	if s.ann == nil {
		s.logger.Debug().Str("text", text).Msg("no announcer wired, dropped")
		return
	}
	s.ann.Enqueue(announce.Announce(text))
}

// Duck lowers music volume for an announcement, remembering the level to
// come back to.
func (s *Service) Duck() {
	if volume, err := s.CurrentVolume(); err == nil {
		s.prevVolume.Store(int64(volume))
	}
	if err := s.SetVolume(s.cfg.DuckVolume, true); err != nil {
		s.logger.Debug().Err(err).Msg("duck failed")
	}
}

// Restore brings music volume back after an announcement.
func (s *Service) Restore() {
	if err := s.SetVolume(int(s.prevVolume.Load()), false); err != nil {
		s.logger.Debug().Err(err).Msg("restore failed")
	}
}

func timeoutAfter(cfg *config.Config) <-chan time.Time {
	return time.After(cfg.VolumeCallTimeout)
}
