/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout runs external player processes (mpv for video and
// announcement audio) and supervises their lifecycle.
package playout

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const stopGrace = 5 * time.Second

// Handle supervises one running player process.
type Handle interface {
	// Done is closed once the process has exited, for any reason.
	Done() <-chan struct{}
	// Stop interrupts the process, escalating to kill after a grace period.
	Stop() error
}

// Launcher starts player processes for playback targets.
type Launcher interface {
	// LaunchVideo plays a resolved media URL with video output.
	LaunchVideo(ctx context.Context, url string) (Handle, error)
	// LaunchAudio plays a local audio file with no video output.
	LaunchAudio(ctx context.Context, path string) (Handle, error)
}

// MPVLauncher launches mpv processes.
type MPVLauncher struct {
	bin    string
	logger zerolog.Logger
}

// NewMPVLauncher creates a launcher using the given mpv binary.
func NewMPVLauncher(bin string, logger zerolog.Logger) *MPVLauncher {
	return &MPVLauncher{bin: bin, logger: logger.With().Str("component", "playout").Logger()}
}

// LaunchVideo starts mpv playing the URL fullscreen.
func (l *MPVLauncher) LaunchVideo(ctx context.Context, url string) (Handle, error) {
	return l.launch(ctx, "--fs", "--really-quiet", url)
}

// LaunchAudio starts mpv playing a local file with video disabled.
func (l *MPVLauncher) LaunchAudio(ctx context.Context, path string) (Handle, error) {
	return l.launch(ctx, "--no-video", "--really-quiet", path)
}

func (l *MPVLauncher) launch(ctx context.Context, args ...string) (Handle, error) {
	cmd := exec.CommandContext(ctx, l.bin, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.bin, err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}

	// Single goroutine to wait for process completion
	go func() {
		err := cmd.Wait()
		close(p.done)
		if err != nil {
			l.logger.Debug().Err(err).Str("bin", l.bin).Msg("player process exited")
		} else {
			l.logger.Debug().Str("bin", l.bin).Msg("player process finished")
		}
	}()

	return p, nil
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}

	stopOnce sync.Once
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Stop() error {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		if p.cmd.Process != nil {
			_ = p.cmd.Process.Signal(os.Interrupt)
		}

		select {
		case <-time.After(stopGrace):
			if p.cmd.Process != nil {
				_ = p.cmd.Process.Kill()
			}
			<-p.done
		case <-p.done:
			// Process exited on its own
		}
	})
	return nil
}
