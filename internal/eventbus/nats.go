/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus onto NATS subjects so
// external systems (home automation, dashboards) can observe the jukebox.
package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
)

const subjectPrefix = "juke.events."

// Bridge republishes every local bus event to NATS.
type Bridge struct {
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger
	nodeID string

	mu   sync.Mutex
	subs map[events.EventType]events.Subscriber
	wg   sync.WaitGroup
}

// NewBridge connects to NATS and starts forwarding all event types.
func NewBridge(url string, bus *events.Bus, logger zerolog.Logger) (*Bridge, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	b := &Bridge{
		conn:   conn,
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

	b.logger.Info().Str("url", url).Msg("nats event bridge started")
	return b, nil
}

func (b *Bridge) forward(eventType events.EventType, sub events.Subscriber) {
	defer b.wg.Done()
	subject := subjectPrefix + string(eventType)
	for payload := range sub {
		data, err := marshalMessage(eventType, payload, b.nodeID)
		if err != nil {
			b.logger.Warn().Err(err).Str("subject", subject).Msg("marshal event failed")
			continue
		}
		if err := b.conn.Publish(subject, data); err != nil {
			b.logger.Debug().Err(err).Str("subject", subject).Msg("nats publish failed")
		}
	}
}

// Close unsubscribes from the local bus and drains the NATS connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	for eventType, sub := range b.subs {
		b.bus.Unsubscribe(eventType, sub)
	}
	b.subs = make(map[events.EventType]events.Subscriber)
	b.mu.Unlock()

	b.wg.Wait()
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}

// message is the wire format published to NATS.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}
