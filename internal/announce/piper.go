/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package announce turns short text into speech and plays it over the
// current audio, replacing any announcement already in flight.
package announce

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrDisabled is returned when the synthesis binary or voice model is
// missing. Announcements stay disabled for the process lifetime.
var ErrDisabled = errors.New("speech synthesis disabled")

const synthTimeout = 30 * time.Second

// Synthesizer renders text to an audio file at path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, path string) error
}

// PiperSynthesizer shells out to piper, feeding text on stdin.
type PiperSynthesizer struct {
	bin      string
	model    string
	disabled bool
	logger   zerolog.Logger
}

// NewPiperSynthesizer probes the binary and voice model once. Either one
// missing disables synthesis permanently with a single warning.
func NewPiperSynthesizer(bin, model string, logger zerolog.Logger) *PiperSynthesizer {
	s := &PiperSynthesizer{bin: bin, model: model, logger: logger.With().Str("component", "piper").Logger()}

	if _, err := exec.LookPath(bin); err != nil {
		s.disabled = true
		s.logger.Warn().Str("bin", bin).Msg("binary not found, announcements disabled")
		return s
	}
	if model == "" {
		s.disabled = true
		s.logger.Warn().Msg("no voice model configured, announcements disabled")
		return s
	}
	if _, err := os.Stat(model); err != nil {
		s.disabled = true
		s.logger.Warn().Str("model", model).Msg("voice model not found, announcements disabled")
	}
	return s
}

// Synthesize renders text into a wav file at path.
func (s *PiperSynthesizer) Synthesize(ctx context.Context, text, path string) error {
	if s.disabled {
		return ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, synthTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.bin, "--model", s.model, "--output_file", path)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		// Do not leave a truncated artifact behind for the cache to reuse.
		_ = os.Remove(path)
		return fmt.Errorf("synthesize: %w", err)
	}
	return nil
}
