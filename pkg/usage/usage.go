// Package usage accumulates token, character and audio counters across a
// session's stage metrics.
package usage

import (
	"sync"

	"github.com/papercomputeco/voxtap/pkg/turns"
)

// Summary is a snapshot of the counters of one session.
type Summary struct {
	LLMPromptTokens       int     `json:"llm_prompt_tokens"`
	LLMCompletionTokens   int     `json:"llm_completion_tokens"`
	LLMPromptCachedTokens int     `json:"llm_prompt_cached_tokens"`
	TTSCharactersCount    int     `json:"tts_characters_count"`
	STTAudioDuration      float64 `json:"stt_audio_duration"`
}

// Collector is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

// Collect adds the counters of one metrics payload. EOU and unrecognized
// payloads carry no usage and are ignored.
func (c *Collector) Collect(metric any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := metric.(type) {
	case turns.LLMMetrics:
		c.addLLM(&m)
	case *turns.LLMMetrics:
		c.addLLM(m)
	case turns.TTSMetrics:
		c.addTTS(&m)
	case *turns.TTSMetrics:
		c.addTTS(m)
	case turns.STTMetrics:
		c.addSTT(&m)
	case *turns.STTMetrics:
		c.addSTT(m)
	}
}

func (c *Collector) addLLM(m *turns.LLMMetrics) {
	if m == nil {
		return
	}
	c.summary.LLMPromptTokens += m.PromptTokens
	c.summary.LLMCompletionTokens += m.CompletionTokens
	c.summary.LLMPromptCachedTokens += m.PromptCachedTokens
}

func (c *Collector) addTTS(m *turns.TTSMetrics) {
	if m == nil {
		return
	}
	c.summary.TTSCharactersCount += m.CharactersCount
}

func (c *Collector) addSTT(m *turns.STTMetrics) {
	if m == nil {
		return
	}
	c.summary.STTAudioDuration += m.AudioDuration
}

// Summary returns the current counters. Every field is zero when nothing was
// collected.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}
