/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sources

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_jukebox/internal/db"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

type fileSource struct {
	Kind     string `yaml:"kind"`
	Name     string `yaml:"name"`
	Locator  string `yaml:"locator"`
	Category string `yaml:"category"`
}

type sourcesFile struct {
	Sources []fileSource `yaml:"sources"`
}

// Load resolves the rotation list and start index through the fallback
// chain: database, then the yaml file, then built-in defaults. It never
// fails; an unreachable store just degrades.
func Load(store *db.Store, path string, logger zerolog.Logger) ([]models.Source, int) {
	log := logger.With().Str("component", "sources").Logger()

	if store.Available() {
		list, err := store.LoadSources()
		if err == nil && len(list) > 0 {
			index, err := store.LoadCurrentIndex()
			if err != nil {
				index = 0
			}
			log.Info().Int("count", len(list)).Msg("sources loaded from database")
			return list, index
		}
		if err != nil {
			log.Warn().Err(err).Msg("database source load failed")
		}
	}

	if list, err := LoadFile(path); err == nil && len(list) > 0 {
		log.Info().Int("count", len(list)).Str("file", path).Msg("sources loaded from file")
		return list, 0
	} else if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", path).Msg("source file unreadable")
	}

	log.Info().Msg("using built-in default sources")
	return Defaults(), 0
}

// LoadFile parses a yaml rotation file.
func LoadFile(path string) ([]models.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc sourcesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	list := make([]models.Source, 0, len(doc.Sources))
	for i, src := range doc.Sources {
		if src.Name == "" || src.Locator == "" {
			return nil, fmt.Errorf("parse %s: source %d missing name or locator", path, i)
		}
		kind := models.SourceKind(src.Kind)
		if kind != models.SourceSequencer && kind != models.SourceVideo {
			return nil, fmt.Errorf("parse %s: source %q has unknown kind %q", path, src.Name, src.Kind)
		}
		list = append(list, models.Source{
			Kind:     kind,
			Name:     src.Name,
			Locator:  src.Locator,
			Category: src.Category,
			Position: i,
		})
	}
	return list, nil
}

// Defaults is the rotation used when neither the database nor the yaml file
// provides one.
func Defaults() []models.Source {
	return []models.Source{
		{Kind: models.SourceSequencer, Name: "all music", Locator: "all_music", Category: "music", Position: 0},
		{Kind: models.SourceSequencer, Name: "favorites", Locator: "favorites", Category: "music", Position: 1},
	}
}
