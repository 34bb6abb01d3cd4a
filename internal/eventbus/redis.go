/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
)

// RedisBridge republishes every local bus event onto Redis pub/sub channels,
// one channel per event type under the juke.events. prefix. It is the Redis
// counterpart of Bridge for deployments that already run Redis.
type RedisBridge struct {
	client *redis.Client
	bus    *events.Bus
	logger zerolog.Logger
	nodeID string

	mu   sync.Mutex
	subs map[events.EventType]events.Subscriber
	wg   sync.WaitGroup
}

// NewRedisBridge connects to Redis and starts forwarding all event types.
func NewRedisBridge(addr string, bus *events.Bus, logger zerolog.Logger) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	b := &RedisBridge{
		client: client,
		bus:    bus,
		logger: logger.With().Str("component", "eventbus").Logger(),
		nodeID: uuid.NewString(),
		subs:   make(map[events.EventType]events.Subscriber),
	}

	for _, eventType := range events.AllTypes() {
		sub := bus.Subscribe(eventType)
		b.subs[eventType] = sub
		b.wg.Add(1)
		go b.forward(eventType, sub)
	}

	b.logger.Info().Str("addr", addr).Msg("redis event bridge started")
	return b, nil
}

func (b *RedisBridge) forward(eventType events.EventType, sub events.Subscriber) {
	defer b.wg.Done()
	channel := subjectPrefix + string(eventType)
	for payload := range sub {
		data, err := marshalMessage(eventType, payload, b.nodeID)
		if err != nil {
			b.logger.Warn().Err(err).Str("channel", channel).Msg("marshal event failed")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
			b.logger.Debug().Err(err).Str("channel", channel).Msg("redis publish failed")
		}
		cancel()
	}
}

// Close unsubscribes from the local bus and closes the Redis client.
func (b *RedisBridge) Close() error {
	b.mu.Lock()
	for eventType, sub := range b.subs {
		b.bus.Unsubscribe(eventType, sub)
	}
	b.subs = make(map[events.EventType]events.Subscriber)
	b.mu.Unlock()

	b.wg.Wait()
	return b.client.Close()
}
