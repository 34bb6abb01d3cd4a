/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sources manages the playback source rotation and persists the
// current position with a debounced save.
package sources

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

// ErrNoSources is returned when the rotation list is empty.
var ErrNoSources = errors.New("no sources configured")

// Saver persists the rotation index. A nil Saver means rotation state is
// in-memory only.
type Saver interface {
	SaveCurrentIndex(index int) error
}

// Manager owns the ordered source list and the current rotation index.
// Rapid rotations collapse into a single index write after the debounce
// window, so a held-down button cannot hammer the store.
type Manager struct {
	mu       sync.Mutex
	sources  []models.Source
	index    int
	saver    Saver
	debounce time.Duration
	timer    *time.Timer
	pending  int
	logger   zerolog.Logger
}

// NewManager builds a manager. An out-of-range start index resets to 0.
func NewManager(sources []models.Source, startIndex int, saver Saver, debounce time.Duration, logger zerolog.Logger) *Manager {
	if startIndex < 0 || startIndex >= len(sources) {
		startIndex = 0
	}
	return &Manager{
		sources:  append([]models.Source(nil), sources...),
		index:    startIndex,
		saver:    saver,
		debounce: debounce,
		logger:   logger.With().Str("component", "sources").Logger(),
	}
}

// Count returns the number of sources in rotation.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

// All returns a copy of the rotation list.
func (m *Manager) All() []models.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Source(nil), m.sources...)
}

// Current returns the source at the rotation index.
func (m *Manager) Current() (models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sources) == 0 {
		return models.Source{}, ErrNoSources
	}
	return m.sources[m.index], nil
}

// Next advances the rotation, wrapping at the end.
func (m *Manager) Next() (models.Source, error) {
	return m.rotate(1)
}

// Previous steps the rotation back, wrapping at the start.
func (m *Manager) Previous() (models.Source, error) {
	return m.rotate(-1)
}

func (m *Manager) rotate(step int) (models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sources) == 0 {
		return models.Source{}, ErrNoSources
	}
	n := len(m.sources)
	m.index = ((m.index+step)%n + n) % n
	m.scheduleSaveLocked()
	return m.sources[m.index], nil
}

// scheduleSaveLocked records the latest index and arms the flush timer only
// if one is not already pending.
func (m *Manager) scheduleSaveLocked() {
	m.pending = m.index
	if m.saver == nil {
		return
	}
	if m.timer == nil {
		m.timer = time.AfterFunc(m.debounce, m.flushTimer)
	}
}

func (m *Manager) flushTimer() {
	m.mu.Lock()
	m.timer = nil
	index := m.pending
	saver := m.saver
	m.mu.Unlock()

	if saver == nil {
		return
	}
	if err := saver.SaveCurrentIndex(index); err != nil {
		m.logger.Warn().Err(err).Int("index", index).Msg("persist source index failed")
	}
}

// Flush writes any pending index immediately. Called on shutdown.
func (m *Manager) Flush() {
	m.mu.Lock()
	if m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer.Stop()
	m.timer = nil
	index := m.pending
	saver := m.saver
	m.mu.Unlock()

	if saver == nil {
		return
	}
	if err := saver.SaveCurrentIndex(index); err != nil {
		m.logger.Warn().Err(err).Int("index", index).Msg("persist source index failed")
	}
}
