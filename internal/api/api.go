/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP control surface. Every endpoint maps 1:1
// onto a player service operation; no playback logic lives here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/logbuffer"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
	"github.com/friendsincode/grimnir_jukebox/internal/player"
	"github.com/friendsincode/grimnir_jukebox/internal/sources"
	"github.com/friendsincode/grimnir_jukebox/internal/state"
)

// Player is the subset of the player service the API needs.
type Player interface {
	Ready() bool
	TogglePlay()
	Next()
	Previous()
	CycleSource() error
	CurrentVolume() (int, error)
	SetVolume(level int, synchronous bool) error
	Announce(text string)
	Sources() []models.Source
}

// API exposes HTTP handlers.
type API struct {
	player    Player
	state     *state.State
	bus       *events.Bus
	logBuffer *logbuffer.Buffer
	logger    zerolog.Logger
}

// New creates the API handler set.
func New(p Player, st *state.State, bus *events.Bus, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		player:    p,
		state:     st,
		bus:       bus,
		logBuffer: logBuf,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !a.player.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.state.Snapshot())
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": a.state.RecentEvents(limit)})
}

func (a *API) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": a.player.Sources()})
}

func (a *API) handleToggle(w http.ResponseWriter, r *http.Request) {
	a.player.TogglePlay()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	a.player.Next()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handlePrevious(w http.ResponseWriter, r *http.Request) {
	a.player.Previous()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleCycle(w http.ResponseWriter, r *http.Request) {
	if err := a.player.CycleSource(); err != nil {
		if errors.Is(err, sources.ErrNoSources) {
			writeError(w, http.StatusConflict, "no_sources")
			return
		}
		a.logger.Error().Err(err).Msg("cycle source failed")
		writeError(w, http.StatusInternalServerError, "cycle_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	volume, err := a.player.CurrentVolume()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "volume_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"volume": volume})
}

func (a *API) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level       *int `json:"level"`
		Synchronous bool `json:"synchronous"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Level == nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if err := a.player.SetVolume(*req.Level, req.Synchronous); err != nil {
		if errors.Is(err, player.ErrVolumeUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "volume_unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "volume_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	a.player.Announce(req.Text)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusOK, map[string]any{"logs": []logbuffer.LogEntry{}})
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Descending: r.URL.Query().Get("order") != "asc",
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			params.Limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": a.logBuffer.Query(params)})
}

// buttonActions maps physical input pins to playback operations, applied on
// the release phase only.
var buttonActions = map[int]string{
	17: "toggle",
	27: "previous",
	22: "next",
	23: "cycle",
}

func (a *API) handleButton(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pin   int    `json:"pin"`
		Phase string `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Phase != "press" && req.Phase != "release" {
		writeError(w, http.StatusBadRequest, "invalid_phase")
		return
	}

	action := ""
	if req.Phase == "release" {
		action = buttonActions[req.Pin]
	}

	// Every input is recorded, mapped or not.
	a.state.AddEvent(state.ButtonEvent{
		Pin:       req.Pin,
		Phase:     req.Phase,
		Action:    action,
		Timestamp: time.Now(),
	})
	a.bus.Publish(events.EventButton, events.Payload{
		"pin":    req.Pin,
		"phase":  req.Phase,
		"action": action,
	})

	switch action {
	case "toggle":
		a.player.TogglePlay()
	case "next":
		a.player.Next()
	case "previous":
		a.player.Previous()
	case "cycle":
		if err := a.player.CycleSource(); err != nil {
			a.logger.Warn().Err(err).Msg("button cycle failed")
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"action": action})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
