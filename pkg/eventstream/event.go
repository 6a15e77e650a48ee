package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/voxtap/pkg/export"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCallExported is emitted after a call record was delivered.
	EventTypeCallExported = "voxtap.call.exported"
)

// CallExportedEvent is a transport-neutral payload for a delivered call record.
type CallExportedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	Delivery      DeliveryMeta   `json:"delivery"`
	Record        *export.Record `json:"record"`
}

// EventSource identifies the agent and session the call came from.
type EventSource struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id,omitempty"`
}

// DeliveryMeta describes the delivery attempt that produced the event.
type DeliveryMeta struct {
	HTTPStatus int   `json:"http_status"`
	Success    bool  `json:"success"`
	DurationMs int64 `json:"duration_ms"`
}

// NewCallExportedEvent builds a v1 event with a fresh id.
func NewCallExportedEvent(sessionID string, rec *export.Record, delivery DeliveryMeta, emittedAt time.Time) *CallExportedEvent {
	ev := &CallExportedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCallExported,
		EventID:       uuid.NewString(),
		EmittedAt:     emittedAt.UTC(),
		Source:        EventSource{SessionID: sessionID},
		Delivery:      delivery,
		Record:        rec,
	}
	if rec != nil {
		ev.Source.AgentID = rec.AgentID
	}
	return ev
}

// Key returns the partitioning key of the event, the call id.
func (e *CallExportedEvent) Key() string {
	if e.Record != nil && e.Record.CallID != "" {
		return e.Record.CallID
	}
	return e.EventID
}
