// Package testutils holds fixtures shared by voxtap package tests.
package testutils

import (
	"sync"
	"time"

	"github.com/papercomputeco/voxtap/pkg/agentsession"
	"github.com/papercomputeco/voxtap/pkg/turns"
)

// Clock is a settable clock for components that take a now func.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock reading t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// EmitTurn plays one complete exchange into em: the user transcript, its stt
// and eou metrics, the llm metrics, the agent reply and its tts metrics.
func EmitTurn(em *agentsession.Emitter, user, agent string) {
	em.Emit(agentsession.ConversationItemAdded{Role: turns.RoleUser, Text: user})
	em.Emit(agentsession.MetricsCollected{Metrics: &turns.STTMetrics{AudioDuration: 1.2, Duration: 0.2}})
	em.Emit(agentsession.MetricsCollected{Metrics: &turns.EOUMetrics{EndOfUtteranceDelay: 0.4, TranscriptionDelay: 0.1}})
	em.Emit(agentsession.MetricsCollected{Metrics: &turns.LLMMetrics{PromptTokens: 24, CompletionTokens: 9, TTFT: 0.35, TokensPerSecond: 40}})
	em.Emit(agentsession.ConversationItemAdded{Role: turns.RoleAssistant, Text: agent})
	em.Emit(agentsession.MetricsCollected{Metrics: &turns.TTSMetrics{CharactersCount: len(agent), AudioDuration: 1.8, TTFB: 0.2}})
}
