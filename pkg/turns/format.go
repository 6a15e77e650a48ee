package turns

import (
	"fmt"
	"strings"
)

const (
	banner    = "================================================================================"
	separator = "----------------------------------------"
	missing   = "MISSING"
)

// FormattedTranscript finalizes the collector and renders the turn sequence as
// plain text. Absent metrics are rendered as MISSING.
func (c *Collector) FormattedTranscript() string {
	return FormatTurns(c.Turns())
}

// FormatTurns renders turns as a human-readable transcript. The output only
// depends on its input.
func FormatTurns(turns []ConversationTurn) string {
	var b strings.Builder

	b.WriteString(banner + "\n")
	b.WriteString("CONVERSATION TRANSCRIPT\n")
	b.WriteString(banner + "\n")

	if len(turns) == 0 {
		b.WriteString("\n(no turns)\n")
		return b.String()
	}

	for i, t := range turns {
		fmt.Fprintf(&b, "\nTURN %d (ID: %s)\n", i+1, t.TurnID)
		b.WriteString(separator + "\n")

		if t.UserTranscript != "" {
			fmt.Fprintf(&b, "USER: %s\n", t.UserTranscript)
		} else {
			b.WriteString("USER: [No user input]\n")
		}

		if t.STTMetrics != nil {
			fmt.Fprintf(&b, "   STT: %.2fs audio\n", t.STTMetrics.AudioDuration)
		} else {
			b.WriteString("   STT: " + missing + "\n")
		}

		if t.EOUMetrics != nil {
			fmt.Fprintf(&b, "   EOU: %.2fs delay\n", t.EOUMetrics.EndOfUtteranceDelay)
		}

		if t.AgentResponse == "" {
			continue
		}

		fmt.Fprintf(&b, "AGENT: %s\n", t.AgentResponse)

		if t.LLMMetrics != nil {
			fmt.Fprintf(&b, "   LLM: %d+%d tokens, TTFT: %.2fs\n",
				t.LLMMetrics.PromptTokens, t.LLMMetrics.CompletionTokens, t.LLMMetrics.TTFT)
		} else {
			b.WriteString("   LLM: " + missing + "\n")
		}

		if t.TTSMetrics != nil {
			fmt.Fprintf(&b, "   TTS: %d chars, %.2fs\n", t.TTSMetrics.CharactersCount, t.TTSMetrics.AudioDuration)
		} else {
			b.WriteString("   TTS: " + missing + "\n")
		}
	}

	return b.String()
}
