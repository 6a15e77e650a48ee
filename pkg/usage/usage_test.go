package usage_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/voxtap/pkg/turns"
	"github.com/papercomputeco/voxtap/pkg/usage"
)

var _ = Describe("Collector", func() {
	It("reports zeros when nothing was collected", func() {
		Expect(usage.NewCollector().Summary()).To(Equal(usage.Summary{}))
	})

	It("accumulates llm, tts and stt counters", func() {
		c := usage.NewCollector()
		c.Collect(turns.LLMMetrics{PromptTokens: 10, CompletionTokens: 5, PromptCachedTokens: 2})
		c.Collect(&turns.LLMMetrics{PromptTokens: 3, CompletionTokens: 1})
		c.Collect(turns.TTSMetrics{CharactersCount: 12})
		c.Collect(&turns.STTMetrics{AudioDuration: 1.5})
		c.Collect(turns.STTMetrics{AudioDuration: 0.5})
		c.Collect(turns.EOUMetrics{EndOfUtteranceDelay: 1})
		c.Collect("noise")
		c.Collect((*turns.TTSMetrics)(nil))

		Expect(c.Summary()).To(Equal(usage.Summary{
			LLMPromptTokens:       13,
			LLMCompletionTokens:   6,
			LLMPromptCachedTokens: 2,
			TTSCharactersCount:    12,
			STTAudioDuration:      2.0,
		}))
	})

	It("is safe for concurrent use", func() {
		c := usage.NewCollector()
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Collect(turns.TTSMetrics{CharactersCount: 1})
			}()
		}
		wg.Wait()
		Expect(c.Summary().TTSCharactersCount).To(Equal(50))
	})
})
