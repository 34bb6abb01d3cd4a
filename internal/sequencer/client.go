/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sequencer drives the music sequencer backend over the MPD
// protocol. A single worker goroutine owns the connection; everything else
// talks to it through a bounded command queue.
package sequencer

import (
	"fmt"
	"strconv"

	"github.com/fhs/gompd/v2/mpd"
)

// Phase is the backend transport state.
type Phase string

const (
	PhasePlaying Phase = "play"
	PhasePaused  Phase = "pause"
	PhaseStopped Phase = "stop"
)

// Status is one snapshot of the backend transport.
type Status struct {
	Phase    Phase
	Volume   int
	Elapsed  float64
	Duration float64
}

// TrackInfo describes the song loaded in the backend.
type TrackInfo struct {
	Title  string
	Artist string
	Album  string
}

// Client abstracts the sequencer backend connection so the worker can be
// tested without a live daemon.
type Client interface {
	Close() error
	Play() error
	Pause() error
	Next() error
	Previous() error
	Stop() error
	Load(playlist string, shuffle, autoplay bool) error
	Status() (Status, error)
	CurrentTrack() (TrackInfo, error)
	SetVolume(level int) error
}

// Dialer opens a fresh backend connection.
type Dialer func() (Client, error)

// MPDDialer returns a Dialer for the MPD daemon at addr.
func MPDDialer(addr string) Dialer {
	return func() (Client, error) {
		conn, err := mpd.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial mpd %s: %w", addr, err)
		}
		return &mpdClient{conn: conn}, nil
	}
}

type mpdClient struct {
	conn *mpd.Client
}

func (c *mpdClient) Close() error    { return c.conn.Close() }
func (c *mpdClient) Play() error     { return c.conn.Play(-1) }
func (c *mpdClient) Pause() error    { return c.conn.Pause(true) }
func (c *mpdClient) Next() error     { return c.conn.Next() }
func (c *mpdClient) Previous() error { return c.conn.Previous() }
func (c *mpdClient) Stop() error     { return c.conn.Stop() }

// Load replaces the play queue with the named stored playlist.
func (c *mpdClient) Load(playlist string, shuffle, autoplay bool) error {
	if err := c.conn.Clear(); err != nil {
		return err
	}
	if err := c.conn.PlaylistLoad(playlist, -1, -1); err != nil {
		return err
	}
	if shuffle {
		if err := c.conn.Shuffle(-1, -1); err != nil {
			return err
		}
	}
	if autoplay {
		return c.conn.Play(-1)
	}
	return nil
}

func (c *mpdClient) Status() (Status, error) {
	attrs, err := c.conn.Status()
	if err != nil {
		return Status{}, err
	}
	status := Status{Phase: Phase(attrs["state"])}
	status.Volume, _ = strconv.Atoi(attrs["volume"])
	status.Elapsed, _ = strconv.ParseFloat(attrs["elapsed"], 64)
	status.Duration, _ = strconv.ParseFloat(attrs["duration"], 64)
	return status, nil
}

func (c *mpdClient) CurrentTrack() (TrackInfo, error) {
	attrs, err := c.conn.CurrentSong()
	if err != nil {
		return TrackInfo{}, err
	}
	return TrackInfo{
		Title:  attrs["Title"],
		Artist: attrs["Artist"],
		Album:  attrs["Album"],
	}, nil
}

func (c *mpdClient) SetVolume(level int) error {
	return c.conn.SetVolume(level)
}
