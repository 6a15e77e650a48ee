package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/papercomputeco/voxtap/pkg/turns"
	"github.com/papercomputeco/voxtap/pkg/usage"
)

// Message is one entry of a session's user or agent message log.
type Message struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Input is everything Assemble needs to build a Record.
type Input struct {
	SessionID string
	AgentID   string
	Status    string
	Error     string

	// Start is the effective call start: the connect time, or the setup
	// time if the agent never joined a room.
	Start time.Time
	End   time.Time

	Metadata map[string]any
	Usage    usage.Summary
	Turns    []turns.TurnRecord

	UserMessages  []Message
	AgentMessages []Message
}

// Assemble builds the export record for one session.
func Assemble(in Input) *Record {
	duration := int(in.End.Sub(in.Start) / time.Second)
	if duration < 0 {
		duration = 0
	}

	rec := &Record{
		CallID:                fmt.Sprintf("%s_%s", in.SessionID, in.End.Format("20060102_150405")),
		AgentID:               in.AgentID,
		CustomerNumber:        CustomerNumber(in.Metadata),
		CallEndedReason:       in.Status,
		CallStartedAt:         FormatTime(in.Start),
		CallEndedAt:           FormatTime(in.End),
		TranscriptType:        TranscriptTypeAgent,
		DurationSeconds:       duration,
		TranscriptJSON:        SimpleTranscript(in.UserMessages, in.AgentMessages),
		TranscriptWithMetrics: in.Turns,
		Metadata:              buildMetadata(in, duration),
	}
	if rec.TranscriptWithMetrics == nil {
		rec.TranscriptWithMetrics = []turns.TurnRecord{}
	}
	return rec
}

// SimpleTranscript merges the user and agent message logs into one list ordered
// by timestamp. Ties keep user messages ahead of agent messages and otherwise
// preserve log order.
func SimpleTranscript(user, agent []Message) []TranscriptEntry {
	out := make([]TranscriptEntry, 0, len(user)+len(agent))
	for _, m := range user {
		out = append(out, TranscriptEntry{Speaker: SpeakerCustomer, Text: m.Text, Timestamp: UnixSeconds(m.Timestamp)})
	}
	for _, m := range agent {
		out = append(out, TranscriptEntry{Speaker: SpeakerAgent, Text: m.Text, Timestamp: UnixSeconds(m.Timestamp)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// CustomerNumber picks the customer identifier out of caller metadata.
func CustomerNumber(metadata map[string]any) string {
	for _, k := range phoneKeys {
		v, ok := metadata[k]
		if !ok || v == nil {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return UnknownCustomer
}

// IsPhoneKey reports whether a metadata key identifies the customer.
func IsPhoneKey(key string) bool {
	for _, k := range phoneKeys {
		if k == key {
			return true
		}
	}
	return false
}

func buildMetadata(in Input, duration int) map[string]any {
	md := make(map[string]any, len(in.Metadata)+3)
	for k, v := range in.Metadata {
		if IsPhoneKey(k) {
			continue
		}
		switch v.(type) {
		case time.Time, *time.Time:
			if ts, ok := NormalizeTimestamp(v); ok {
				v = ts
			}
		}
		md[k] = v
	}

	md[MetadataUsage] = Usage{
		LLMPromptTokens:     in.Usage.LLMPromptTokens,
		LLMCompletionTokens: in.Usage.LLMCompletionTokens,
		LLMCachedTokens:     in.Usage.LLMPromptCachedTokens,
		TTSCharacters:       in.Usage.TTSCharactersCount,
		STTAudioDuration:    in.Usage.STTAudioDuration,
	}
	md[MetadataDurationFormatted] = FormatDuration(duration)

	if in.Error != "" {
		md[MetadataSessionError] = in.Error
	}
	return md
}
