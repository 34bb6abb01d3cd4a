/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the persistent records of the jukebox.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceKind distinguishes how a source is played out.
type SourceKind string

const (
	// SourceSequencer is a music playlist handled by the sequencer backend.
	SourceSequencer SourceKind = "sequencer"
	// SourceVideo is a streamed-video channel handled by the video worker.
	SourceVideo SourceKind = "video"
)

// Source is one rotation entry: a playlist or a video channel.
type Source struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Kind      SourceKind `gorm:"not null;index" json:"kind"`
	Name      string     `gorm:"not null" json:"name"`
	Locator   string     `gorm:"not null" json:"locator"`
	Category  string     `json:"category"`
	Position  int        `gorm:"index" json:"position"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BeforeCreate assigns an ID when missing.
func (s *Source) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// WatchedVideo records a video item that has been played (or failed to
// resolve) so rotation skips it.
type WatchedVideo struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VideoID   string    `gorm:"uniqueIndex;not null" json:"video_id"`
	WatchedAt time.Time `json:"watched_at"`
}

// BeforeCreate assigns an ID when missing.
func (w *WatchedVideo) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// AppState is a small key/value store for runtime state that survives
// restarts, like the current source index.
type AppState struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
