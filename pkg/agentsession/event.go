// Package agentsession describes the part of a voice-agent session that an
// observer depends on: four event kinds, their payloads, and a way to
// subscribe to them.
package agentsession

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/papercomputeco/voxtap/pkg/export"
)

// EventKind names a session event.
type EventKind string

const (
	KindConversationItemAdded EventKind = "conversation_item_added"
	KindMetricsCollected      EventKind = "metrics_collected"
	KindDisconnected          EventKind = "disconnected"
	KindClose                 EventKind = "close"
)

// Event is a session event delivered to handlers.
type Event interface {
	Kind() EventKind
}

// ConversationItemAdded is emitted when a transcript item is committed to the
// conversation.
type ConversationItemAdded struct {
	Role string
	Text string
}

func (ConversationItemAdded) Kind() EventKind { return KindConversationItemAdded }

// MetricsCollected carries one stage metrics payload, typically one of the
// turns package metric types.
type MetricsCollected struct {
	Metrics any
}

func (MetricsCollected) Kind() EventKind { return KindMetricsCollected }

// Disconnected is emitted when the agent leaves the room.
type Disconnected struct {
	Reason string
}

func (Disconnected) Kind() EventKind { return KindDisconnected }

// Close is emitted when the session shuts down, with the error that caused it
// if any.
type Close struct {
	Error error
}

func (Close) Kind() EventKind { return KindClose }

// Handler receives session events.
type Handler func(Event)

// Source is the subscription surface of a host session.
type Source interface {
	On(kind EventKind, handler Handler)
}

// ConnectionInfo describes the room a session is attached to. A nil
// ConnectTime means the agent has not joined yet.
type ConnectionInfo struct {
	RoomName    string     `json:"room_name,omitempty"`
	ConnectTime *time.Time `json:"connect_time,omitempty"`
}

// UnmarshalJSON accepts connect_time as Unix seconds or an ISO-8601 string.
// null and "" leave ConnectTime nil.
func (c *ConnectionInfo) UnmarshalJSON(data []byte) error {
	var wire struct {
		RoomName    string          `json:"room_name"`
		ConnectTime json.RawMessage `json:"connect_time"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	c.RoomName = wire.RoomName
	c.ConnectTime = nil

	raw := bytes.TrimSpace(wire.ConnectTime)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("connect_time: %w", err)
	}

	t, ok := export.ParseTimestamp(v)
	if !ok {
		return fmt.Errorf("connect_time: unsupported timestamp %s", raw)
	}
	c.ConnectTime = &t
	return nil
}
