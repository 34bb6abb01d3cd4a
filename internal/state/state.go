/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package state holds the shared playback state of the daemon. Workers
// write to it and the API reads consistent snapshots from it.
package state

import (
	"sync"
	"time"
)

// SourceKind identifies which worker owns playback right now.
type SourceKind string

const (
	SourceNone      SourceKind = "none"
	SourceSequencer SourceKind = "sequencer"
	SourceVideo     SourceKind = "video"
)

// Track describes what is currently playing.
type Track struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	Elapsed  float64 `json:"elapsed"`
	Duration float64 `json:"duration"`
}

// ButtonEvent records one physical or API input event.
type ButtonEvent struct {
	Pin       int       `json:"pin"`
	Phase     string    `json:"phase"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time copy of the playback state.
type Snapshot struct {
	ActiveSource     SourceKind `json:"active_source"`
	SourceName       string     `json:"source_name"`
	SourceCategory   string     `json:"source_category"`
	Playing          bool       `json:"playing"`
	Volume           int        `json:"volume"`
	Track            Track      `json:"track"`
	VideoID          string     `json:"video_id"`
	VideoTitle       string     `json:"video_title"`
	SequencerOnline  bool       `json:"sequencer_online"`
	Announcing       bool       `json:"announcing"`
	LastAnnouncement string     `json:"last_announcement"`
}

const maxEvents = 100

// State is the mutable shared playback state.
type State struct {
	mu       sync.RWMutex
	snapshot Snapshot
	events   []ButtonEvent
}

// New creates an empty State with no active source.
func New() *State {
	return &State{
		snapshot: Snapshot{ActiveSource: SourceNone},
	}
}

// Update applies fn to the state under the write lock.
func (s *State) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snapshot)
}

// Snapshot returns a copy of the current state. The copy shares nothing
// with the live state, so callers can hold it as long as they like.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// ActiveSource returns the currently owning source kind.
func (s *State) ActiveSource() SourceKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.ActiveSource
}

// AddEvent appends an input event, evicting the oldest past capacity.
func (s *State) AddEvent(event ButtonEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

// RecentEvents returns up to n events, newest last.
func (s *State) RecentEvents(n int) []ButtonEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]ButtonEvent, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}
