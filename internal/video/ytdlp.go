/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package video plays channel-like video sources item by item, skipping
// previously watched entries and looping when the channel is exhausted.
package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrDisabled is returned when the fetch binary was not found at startup.
// The feature stays disabled for the process lifetime.
var ErrDisabled = errors.New("video source disabled")

const (
	listTimeout    = 60 * time.Second
	resolveTimeout = 30 * time.Second
)

// Item is one entry of a channel listing.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Source lists channel items and resolves them to playable URLs.
type Source interface {
	ListItems(ctx context.Context, locator string, limit int) ([]Item, error)
	// ResolvePlayableURL may fail for items that are scheduled but not yet
	// live; callers skip such items rather than retrying.
	ResolvePlayableURL(ctx context.Context, item Item) (string, error)
}

// YtdlpSource shells out to yt-dlp.
type YtdlpSource struct {
	bin      string
	disabled bool
	logger   zerolog.Logger
}

// NewYtdlpSource probes for the binary once. A missing binary disables the
// source permanently with a single warning.
func NewYtdlpSource(bin string, logger zerolog.Logger) *YtdlpSource {
	s := &YtdlpSource{bin: bin, logger: logger.With().Str("component", "ytdlp").Logger()}
	if _, err := exec.LookPath(bin); err != nil {
		s.disabled = true
		s.logger.Warn().Str("bin", bin).Msg("binary not found, video playback disabled")
	}
	return s
}

// ListItems fetches up to limit entries from the channel without resolving
// stream URLs.
func (s *YtdlpSource) ListItems(ctx context.Context, locator string, limit int) ([]Item, error) {
	if s.disabled {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.bin,
		"--flat-playlist",
		"--playlist-end", fmt.Sprintf("%d", limit),
		"--print", "%(id)s\t%(title)s\t%(url)s",
		locator,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("list channel %s: %w", locator, err)
	}

	var items []Item
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		item := Item{ID: parts[0], Title: parts[1]}
		if len(parts) == 3 {
			item.URL = parts[2]
		}
		items = append(items, item)
	}
	return items, nil
}

// ResolvePlayableURL asks yt-dlp for the direct stream URL of one item.
func (s *YtdlpSource) ResolvePlayableURL(ctx context.Context, item Item) (string, error) {
	if s.disabled {
		return "", ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	target := item.URL
	if target == "" {
		target = item.ID
	}

	cmd := exec.CommandContext(ctx, s.bin, "-g", target)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("resolve %s: %w", item.ID, err)
	}

	url := strings.TrimSpace(strings.SplitN(out.String(), "\n", 2)[0])
	if url == "" {
		return "", fmt.Errorf("resolve %s: empty url", item.ID)
	}
	return url, nil
}
