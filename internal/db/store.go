/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

// ErrUnavailable is returned when the store was built without a database,
// typically because the daemon started with the database unreachable.
var ErrUnavailable = errors.New("database unavailable")

const currentSourceKey = "current_source_index"

// Store wraps the persistence operations the workers need. A Store with a
// nil DB is valid: every call fails with ErrUnavailable and callers fall
// back to file or in-memory state.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a Store. db may be nil.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// Available reports whether a database connection backs this store.
func (s *Store) Available() bool {
	return s != nil && s.db != nil
}

// LoadSources returns all sources ordered by rotation position.
func (s *Store) LoadSources() ([]models.Source, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	var sources []models.Source
	if err := s.db.Order("position asc, created_at asc").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// ReplaceSources swaps the stored source list for the given one.
func (s *Store) ReplaceSources(sources []models.Source) error {
	if !s.Available() {
		return ErrUnavailable
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Source{}).Error; err != nil {
			return err
		}
		if len(sources) == 0 {
			return nil
		}
		return tx.Create(&sources).Error
	})
}

// LoadCurrentIndex returns the persisted rotation index, or 0 when unset.
func (s *Store) LoadCurrentIndex() (int, error) {
	value, err := s.GetSetting(currentSourceKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	index, err := strconv.Atoi(value)
	if err != nil {
		s.logger.Warn().Str("value", value).Msg("corrupt source index, resetting to 0")
		return 0, nil
	}
	return index, nil
}

// SaveCurrentIndex persists the rotation index.
func (s *Store) SaveCurrentIndex(index int) error {
	return s.SetSetting(currentSourceKey, strconv.Itoa(index))
}

// LoadWatchedSet returns the IDs of all watched videos.
func (s *Store) LoadWatchedSet() (map[string]bool, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	var rows []models.WatchedVideo
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	watched := make(map[string]bool, len(rows))
	for _, row := range rows {
		watched[row.VideoID] = true
	}
	return watched, nil
}

// MarkWatched records video IDs as watched. Already-known IDs are ignored.
func (s *Store) MarkWatched(videoIDs ...string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	if len(videoIDs) == 0 {
		return nil
	}
	rows := make([]models.WatchedVideo, 0, len(videoIDs))
	now := time.Now()
	for _, id := range videoIDs {
		rows = append(rows, models.WatchedVideo{VideoID: id, WatchedAt: now})
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// ClearWatched removes every watched-video record.
func (s *Store) ClearWatched() error {
	if !s.Available() {
		return ErrUnavailable
	}
	return s.db.Where("1 = 1").Delete(&models.WatchedVideo{}).Error
}

// GetSetting reads one app state value.
func (s *Store) GetSetting(key string) (string, error) {
	if !s.Available() {
		return "", ErrUnavailable
	}
	var row models.AppState
	if err := s.db.First(&row, "key = ?", key).Error; err != nil {
		return "", err
	}
	return row.Value, nil
}

// SetSetting upserts one app state value.
func (s *Store) SetSetting(key, value string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	row := models.AppState{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}
