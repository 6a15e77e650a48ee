package agentsession

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/voxtap/pkg/turns"
)

// ErrUnknownEventType is returned by Envelope.Decode for an unrecognized type.
var ErrUnknownEventType = errors.New("unknown event type")

// Envelope is the JSON wire form of a session event, used by hosts that
// forward their events over HTTP or a websocket.
//
//	{"type": "conversation_item_added", "role": "user", "text_content": "hello"}
//	{"type": "metrics_collected", "metrics": {"kind": "stt", "audio_duration": 1.2}}
//	{"type": "close", "error": "pipeline crashed"}
type Envelope struct {
	Type        EventKind       `json:"type"`
	Role        string          `json:"role,omitempty"`
	TextContent string          `json:"text_content,omitempty"`
	Metrics     json.RawMessage `json:"metrics,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Decode converts the envelope into an Event. A metrics envelope with an
// unknown kind decodes to MetricsCollected with nil Metrics.
func (e Envelope) Decode() (Event, error) {
	switch e.Type {
	case KindConversationItemAdded:
		if e.Role == "" {
			return nil, errors.New("conversation item is missing role")
		}
		return ConversationItemAdded{Role: e.Role, Text: e.TextContent}, nil

	case KindMetricsCollected:
		m, err := decodeMetrics(e.Metrics)
		if err != nil {
			return nil, err
		}
		return MetricsCollected{Metrics: m}, nil

	case KindDisconnected:
		return Disconnected{Reason: e.Reason}, nil

	case KindClose:
		var err error
		if e.Error != "" {
			err = errors.New(e.Error)
		}
		return Close{Error: err}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
}

func decodeMetrics(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, errors.New("metrics event is missing metrics")
	}

	var head struct {
		Kind turns.MetricKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}

	var target any
	switch head.Kind {
	case turns.KindSTT:
		target = &turns.STTMetrics{}
	case turns.KindLLM:
		target = &turns.LLMMetrics{}
	case turns.KindTTS:
		target = &turns.TTSMetrics{}
	case turns.KindEOU:
		target = &turns.EOUMetrics{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decoding %s metrics: %w", head.Kind, err)
	}
	return target, nil
}

// NewMetricsEnvelope builds the wire form of a metrics payload.
func NewMetricsEnvelope(metric any) (Envelope, error) {
	kind, ok := turns.KindOf(metric)
	if !ok {
		return Envelope{}, fmt.Errorf("unsupported metrics type %T", metric)
	}

	body, err := json.Marshal(metric)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding metrics: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return Envelope{}, fmt.Errorf("encoding metrics: %w", err)
	}
	fields["kind"] = kind

	raw, err := json.Marshal(fields)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding metrics: %w", err)
	}
	return Envelope{Type: KindMetricsCollected, Metrics: raw}, nil
}
