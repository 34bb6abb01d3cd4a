/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package command provides the bounded, non-blocking queues that feed the
// playback workers. Callers never block: when a queue is full the newest
// command is dropped and counted.
package command

import (
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
)

// Queue is a bounded command queue for one worker.
type Queue[T any] struct {
	ch     chan T
	worker string
	logger zerolog.Logger
}

// NewQueue creates a queue with the given capacity for the named worker.
func NewQueue[T any](capacity int, worker string, logger zerolog.Logger) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		ch:     make(chan T, capacity),
		worker: worker,
		logger: logger.With().Str("component", "queue").Str("worker", worker).Logger(),
	}
}

// Enqueue offers cmd to the worker. It never blocks: if the queue is full
// the command is dropped, logged, and counted. Returns false on drop.
func (q *Queue[T]) Enqueue(cmd T) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		telemetry.CommandsDropped.WithLabelValues(q.worker).Inc()
		q.logger.Warn().Interface("command", cmd).Msg("queue full, command dropped")
		return false
	}
}

// C returns the receive side for the worker loop.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Len reports how many commands are waiting.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}
