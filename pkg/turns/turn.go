// Package turns reconciles the transcript events and per-stage metrics events of a
// voice-agent session into an ordered sequence of conversational turns.
package turns

import (
	"encoding/json"
	"time"
)

// MetricKind identifies the pipeline stage a metrics payload was produced by.
type MetricKind string

const (
	KindSTT MetricKind = "stt"
	KindLLM MetricKind = "llm"
	KindTTS MetricKind = "tts"
	KindEOU MetricKind = "eou"
)

// Kinds lists every metric kind in a stable order.
var Kinds = []MetricKind{KindSTT, KindLLM, KindTTS, KindEOU}

// STTMetrics are emitted by the speech-to-text stage after a user utterance
// has been recognized.
type STTMetrics struct {
	AudioDuration float64 `json:"audio_duration"`
	Duration      float64 `json:"duration"`
	Timestamp     float64 `json:"timestamp"`
	RequestID     string  `json:"request_id"`
}

// LLMMetrics are emitted by the language-model stage. They may arrive before or
// concurrently with the assistant transcript.
type LLMMetrics struct {
	PromptTokens       int     `json:"prompt_tokens"`
	CompletionTokens   int     `json:"completion_tokens"`
	PromptCachedTokens int     `json:"prompt_cached_tokens,omitempty"`
	TTFT               float64 `json:"ttft"`
	TokensPerSecond    float64 `json:"tokens_per_second"`
	Timestamp          float64 `json:"timestamp"`
	RequestID          string  `json:"request_id"`
}

// TTSMetrics are emitted by the text-to-speech stage after the agent text has
// been synthesized.
type TTSMetrics struct {
	CharactersCount int     `json:"characters_count"`
	AudioDuration   float64 `json:"audio_duration"`
	TTFB            float64 `json:"ttfb"`
	Timestamp       float64 `json:"timestamp"`
	RequestID       string  `json:"request_id"`
}

// EOUMetrics are emitted by end-of-utterance detection for a user turn.
type EOUMetrics struct {
	EndOfUtteranceDelay float64 `json:"end_of_utterance_delay"`
	TranscriptionDelay  float64 `json:"transcription_delay"`
	Timestamp           float64 `json:"timestamp"`
}

// ConversationTurn is one user utterance and the agent response to it, together
// with the metrics of every stage that produced them.
type ConversationTurn struct {
	TurnID         string
	UserTranscript string
	AgentResponse  string

	STTMetrics *STTMetrics
	LLMMetrics *LLMMetrics
	TTSMetrics *TTSMetrics
	EOUMetrics *EOUMetrics

	// CreatedAt is the capture time of the event that opened the turn.
	CreatedAt time.Time

	UserTurnComplete  bool
	AgentTurnComplete bool
}

// TurnRecord is the plain, serializable form of a ConversationTurn.
type TurnRecord struct {
	TurnID            string      `json:"turn_id"`
	UserTranscript    string      `json:"user_transcript"`
	AgentResponse     string      `json:"agent_response"`
	STTMetrics        *STTMetrics `json:"stt_metrics"`
	LLMMetrics        *LLMMetrics `json:"llm_metrics"`
	TTSMetrics        *TTSMetrics `json:"tts_metrics"`
	EOUMetrics        *EOUMetrics `json:"eou_metrics"`
	Timestamp         float64     `json:"timestamp"`
	UserTurnComplete  bool        `json:"user_turn_complete"`
	AgentTurnComplete bool        `json:"agent_turn_complete"`
}

// Record returns a deep copy of the turn as a TurnRecord. Later metric
// attachments to the turn do not affect a record that was already taken.
func (t *ConversationTurn) Record() TurnRecord {
	r := TurnRecord{
		TurnID:            t.TurnID,
		UserTranscript:    t.UserTranscript,
		AgentResponse:     t.AgentResponse,
		Timestamp:         unixSeconds(t.CreatedAt),
		UserTurnComplete:  t.UserTurnComplete,
		AgentTurnComplete: t.AgentTurnComplete,
	}
	if t.STTMetrics != nil {
		m := *t.STTMetrics
		r.STTMetrics = &m
	}
	if t.LLMMetrics != nil {
		m := *t.LLMMetrics
		r.LLMMetrics = &m
	}
	if t.TTSMetrics != nil {
		m := *t.TTSMetrics
		r.TTSMetrics = &m
	}
	if t.EOUMetrics != nil {
		m := *t.EOUMetrics
		r.EOUMetrics = &m
	}
	return r
}

// MarshalJSON encodes the turn in its record form.
func (t ConversationTurn) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Record())
}

// Has reports whether the turn already holds a metric of the given kind.
func (t *ConversationTurn) Has(kind MetricKind) bool {
	switch kind {
	case KindSTT:
		return t.STTMetrics != nil
	case KindLLM:
		return t.LLMMetrics != nil
	case KindTTS:
		return t.TTSMetrics != nil
	case KindEOU:
		return t.EOUMetrics != nil
	}
	return false
}

// accepts reports whether the transcript side a metric kind belongs to has
// already been recorded on the turn. STT and EOU belong to the user side, TTS
// to the agent side. LLM processing precedes the assistant transcript, so any
// turn accepts it.
func (t *ConversationTurn) accepts(kind MetricKind) bool {
	switch kind {
	case KindSTT, KindEOU:
		return t.UserTranscript != ""
	case KindTTS:
		return t.AgentResponse != ""
	case KindLLM:
		return true
	}
	return false
}

// eligible reports whether a metric of the given kind may be attached to t.
func (t *ConversationTurn) eligible(kind MetricKind) bool {
	return t != nil && !t.Has(kind) && t.accepts(kind)
}

// attach stores a normalized payload on the turn. The payload must be one of
// the pointer types returned by normalize.
func (t *ConversationTurn) attach(payload any) {
	switch m := payload.(type) {
	case *STTMetrics:
		t.STTMetrics = m
	case *LLMMetrics:
		t.LLMMetrics = m
	case *TTSMetrics:
		t.TTSMetrics = m
	case *EOUMetrics:
		t.EOUMetrics = m
	}
}

// KindOf returns the metric kind of a payload. Both values and pointers of the
// four payload types are recognized.
func KindOf(metric any) (MetricKind, bool) {
	kind, _, ok := normalize(metric)
	return kind, ok
}

// normalize copies a metrics payload into a freshly allocated pointer so that
// the collector never aliases caller memory.
func normalize(metric any) (MetricKind, any, bool) {
	switch m := metric.(type) {
	case STTMetrics:
		return KindSTT, &m, true
	case *STTMetrics:
		if m == nil {
			return "", nil, false
		}
		c := *m
		return KindSTT, &c, true
	case LLMMetrics:
		return KindLLM, &m, true
	case *LLMMetrics:
		if m == nil {
			return "", nil, false
		}
		c := *m
		return KindLLM, &c, true
	case TTSMetrics:
		return KindTTS, &m, true
	case *TTSMetrics:
		if m == nil {
			return "", nil, false
		}
		c := *m
		return KindTTS, &c, true
	case EOUMetrics:
		return KindEOU, &m, true
	case *EOUMetrics:
		if m == nil {
			return "", nil, false
		}
		c := *m
		return KindEOU, &c, true
	}
	return "", nil, false
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}
