// Package export assembles the analytics record of a finished (or live) voice
// session from the reconciled turns, message logs, usage counters and caller
// metadata.
package export

import (
	"maps"
	"slices"

	"github.com/papercomputeco/voxtap/pkg/turns"
)

const (
	TranscriptTypeAgent = "agent"

	SpeakerCustomer = "customer"
	SpeakerAgent    = "agent"

	// UnknownCustomer is the customer number used when the caller supplied none.
	UnknownCustomer = "unknown"

	MetadataUsage             = "usage"
	MetadataDurationFormatted = "duration_formatted"
	MetadataSessionError      = "session_error"
)

// Status values used for call_ended_reason.
const (
	StatusInProgress   = "in_progress"
	StatusCompleted    = "completed"
	StatusDisconnected = "disconnected"
	StatusCleanup      = "cleanup"
)

// phoneKeys are caller metadata keys that identify the customer. They are only
// surfaced through Record.CustomerNumber, in this order of preference.
var phoneKeys = []string{"phone_number", "customer_number", "phone"}

// Record is the structured analytics record delivered for one call.
type Record struct {
	CallID                string             `json:"call_id"`
	AgentID               string             `json:"agent_id"`
	CustomerNumber        string             `json:"customer_number"`
	CallEndedReason       string             `json:"call_ended_reason"`
	CallStartedAt         string             `json:"call_started_at"`
	CallEndedAt           string             `json:"call_ended_at"`
	TranscriptType        string             `json:"transcript_type"`
	DurationSeconds       int                `json:"duration_seconds"`
	RecordingURL          string             `json:"recording_url"`
	TranscriptJSON        []TranscriptEntry  `json:"transcript_json"`
	TranscriptWithMetrics []turns.TurnRecord `json:"transcript_with_metrics"`
	Metadata              map[string]any     `json:"metadata"`
}

// TranscriptEntry is one line of the simple speaker/text transcript.
type TranscriptEntry struct {
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// Usage is the usage block under metadata.usage.
type Usage struct {
	LLMPromptTokens     int     `json:"llm_prompt_tokens"`
	LLMCompletionTokens int     `json:"llm_completion_tokens"`
	LLMCachedTokens     int     `json:"llm_cached_tokens"`
	TTSCharacters       int     `json:"tts_characters"`
	STTAudioDuration    float64 `json:"stt_audio_duration"`
}

// Clone returns a copy of the record whose slices and top-level metadata map
// can be modified without touching r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.TranscriptJSON = slices.Clone(r.TranscriptJSON)
	c.TranscriptWithMetrics = slices.Clone(r.TranscriptWithMetrics)
	c.Metadata = maps.Clone(r.Metadata)
	return &c
}

// Empty reports whether the record carries no call data at all.
func (r *Record) Empty() bool {
	return r == nil || r.CallID == ""
}
