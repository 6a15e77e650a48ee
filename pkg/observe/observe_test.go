package observe_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/voxtap/pkg/agentsession"
	"github.com/papercomputeco/voxtap/pkg/delivery"
	"github.com/papercomputeco/voxtap/pkg/eventstream"
	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/observe"
	"github.com/papercomputeco/voxtap/pkg/registry"
	"github.com/papercomputeco/voxtap/pkg/storage"
	"github.com/papercomputeco/voxtap/pkg/storage/inmemory"
	"github.com/papercomputeco/voxtap/pkg/turns"
	testutils "github.com/papercomputeco/voxtap/pkg/utils/test"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.CallExportedEvent
}

func (p *recordingPublisher) PublishCall(_ context.Context, ev *eventstream.CallExportedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []*eventstream.CallExportedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.CallExportedEvent(nil), p.events...)
}

// endpoint is a fake analytics endpoint that records every posted body.
type endpoint struct {
	mu       sync.Mutex
	status   int
	delay    time.Duration
	received []map[string]any
}

func (e *endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	e.mu.Lock()
	e.received = append(e.received, body)
	status := e.status
	delay := e.delay
	e.mu.Unlock()

	time.Sleep(delay)

	w.WriteHeader(status)
	if status >= 400 {
		_, _ = io.WriteString(w, "upstream unavailable")
		return
	}
	_, _ = io.WriteString(w, `{"stored":true}`)
}

func (e *endpoint) setStatus(status int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
}

func (e *endpoint) setDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
}

func (e *endpoint) Received() []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]map[string]any(nil), e.received...)
}

var _ = Describe("Observer", func() {
	var (
		ep      *endpoint
		srv     *httptest.Server
		archive *inmemory.Driver
		pub     *recordingPublisher
		obs     *observe.Observer
		em      *agentsession.Emitter
	)

	BeforeEach(func() {
		ep = &endpoint{status: http.StatusOK}
		srv = httptest.NewServer(ep)
		archive = inmemory.NewDriver()
		pub = &recordingPublisher{}

		var err error
		obs, err = observe.New(observe.Config{
			AgentID:   "agent-1",
			Client:    &delivery.Client{Endpoint: srv.URL, APIKey: "key"},
			Archive:   archive,
			Publisher: pub,
		})
		Expect(err).NotTo(HaveOccurred())
		em = agentsession.NewEmitter()
	})

	AfterEach(func() {
		Expect(obs.Close()).To(Succeed())
		srv.Close()
	})

	converse := func() {
		em.Emit(agentsession.ConversationItemAdded{Role: turns.RoleUser, Text: "what time is it"})
		em.Emit(agentsession.MetricsCollected{Metrics: &turns.STTMetrics{AudioDuration: 1.5}})
		em.Emit(agentsession.MetricsCollected{Metrics: &turns.LLMMetrics{PromptTokens: 20, CompletionTokens: 8, TTFT: 0.3}})
		em.Emit(agentsession.ConversationItemAdded{Role: turns.RoleAssistant, Text: "it is noon"})
		em.Emit(agentsession.MetricsCollected{Metrics: &turns.TTSMetrics{CharactersCount: 10, AudioDuration: 0.9}})
	}

	It("exports, archives and publishes a finished session", func() {
		id := obs.StartSession(em, observe.WithMetadata(map[string]any{"phone_number": "+15550100", "campaign": "spring"}))
		Expect(obs.MarkConnected(id)).To(BeTrue())
		converse()

		res := obs.Export(context.Background(), id, observe.ExportOptions{RecordingURL: "https://rec/1.wav"})
		Expect(res.Success).To(BeTrue())
		Expect(res.Status).To(Equal(http.StatusOK))

		Expect(ep.Received()).To(HaveLen(1))
		body := ep.Received()[0]
		Expect(body).To(HaveKeyWithValue("agent_id", "agent-1"))
		Expect(body).To(HaveKeyWithValue("customer_number", "+15550100"))
		Expect(body).To(HaveKeyWithValue("call_ended_reason", export.StatusCompleted))
		Expect(body).To(HaveKeyWithValue("recording_url", "https://rec/1.wav"))
		Expect(body["transcript_with_metrics"]).To(HaveLen(1))
		Expect(body["metadata"]).To(HaveKeyWithValue("campaign", "spring"))
		Expect(body["metadata"]).NotTo(HaveKey("phone_number"))

		Expect(obs.Registry().Has(id)).To(BeFalse())

		entries, err := archive.List(context.Background(), storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Status).To(Equal(storage.StatusDelivered))
		Expect(entries[0].SessionID).To(Equal(id))
		Expect(entries[0].Record.RecordingURL).To(Equal("https://rec/1.wav"))

		Expect(pub.Events()).To(HaveLen(1))
		Expect(pub.Events()[0].Key()).To(Equal(entries[0].CallID))
		Expect(pub.Events()[0].Delivery.Success).To(BeTrue())
	})

	It("measures the call from connect to export", func() {
		clock := testutils.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		timed, err := observe.New(observe.Config{
			Registry: registry.New(registry.WithClock(clock.Now)),
			Client:   &delivery.Client{Endpoint: srv.URL},
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(timed.Close)

		id := timed.StartSession(em)
		clock.Advance(5 * time.Second)
		Expect(timed.MarkConnected(id)).To(BeTrue())

		testutils.EmitTurn(em, "book a table", "for how many people")
		clock.Advance(30 * time.Second)
		testutils.EmitTurn(em, "two", "done")
		clock.Advance(30 * time.Second)

		res := timed.Export(context.Background(), id, observe.ExportOptions{})
		Expect(res.Success).To(BeTrue())

		body := ep.Received()[0]
		Expect(body).To(HaveKeyWithValue("duration_seconds", BeNumerically("==", 60)))
		Expect(body).To(HaveKeyWithValue("call_id", id+"_20250601_090105"))

		var rec export.Record
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(raw, &rec)).To(Succeed())
		Expect(rec.TranscriptWithMetrics).To(HaveLen(2))
		for _, turn := range rec.TranscriptWithMetrics {
			Expect(turn.STTMetrics).NotTo(BeNil())
			Expect(turn.TTSMetrics).NotTo(BeNil())
		}
		Expect(rec.TranscriptWithMetrics[1].UserTranscript).To(Equal("two"))
	})

	It("fails for an unknown session", func() {
		res := obs.Export(context.Background(), "missing", observe.ExportOptions{})
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(Equal("session not found"))
		Expect(ep.Received()).To(BeEmpty())
	})

	It("keeps a failed session for retry with the same record", func() {
		ep.setStatus(http.StatusServiceUnavailable)
		id := obs.StartSession(em)
		converse()

		first := obs.Export(context.Background(), id, observe.ExportOptions{})
		Expect(first.Success).To(BeFalse())
		Expect(first.Error).To(Equal("upstream unavailable"))
		Expect(obs.Registry().Has(id)).To(BeTrue())
		Expect(pub.Events()).To(BeEmpty())

		failed, err := archive.List(context.Background(), storage.ListOptions{Status: storage.StatusFailed})
		Expect(err).NotTo(HaveOccurred())
		Expect(failed).To(HaveLen(1))

		ep.setStatus(http.StatusOK)
		second := obs.Export(context.Background(), id, observe.ExportOptions{})
		Expect(second.Success).To(BeTrue())
		Expect(obs.Registry().Has(id)).To(BeFalse())

		received := ep.Received()
		Expect(received).To(HaveLen(2))
		Expect(received[1]["call_id"]).To(Equal(received[0]["call_id"]))

		entry, err := archive.Get(context.Background(), received[0]["call_id"].(string))
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Status).To(Equal(storage.StatusDelivered))
	})

	It("does not modify the cached record when overriding fields", func() {
		ep.setStatus(http.StatusBadGateway)
		id := obs.StartSession(em)
		converse()

		extra := []export.TranscriptEntry{{Speaker: export.SpeakerAgent, Text: "imported", Timestamp: 1}}
		obs.Export(context.Background(), id, observe.ExportOptions{RecordingURL: "https://rec", AdditionalTranscript: extra})

		cached, ok := obs.Registry().Export(id)
		Expect(ok).To(BeTrue())
		Expect(cached.RecordingURL).To(BeEmpty())
		Expect(cached.TranscriptJSON).To(HaveLen(2))

		Expect(ep.Received()[0]["transcript_json"]).To(HaveLen(1))
	})

	It("exports a live snapshot when force end is off", func() {
		id := obs.StartSession(em)
		converse()

		keepOpen := false
		res := obs.Export(context.Background(), id, observe.ExportOptions{ForceEnd: &keepOpen})
		Expect(res.Success).To(BeTrue())
		Expect(ep.Received()[0]).To(HaveKeyWithValue("call_ended_reason", export.StatusInProgress))
	})

	It("uses the end status from the session close event", func() {
		id := obs.StartSession(em)
		converse()
		em.Emit(agentsession.Disconnected{Reason: "participant left"})

		Expect(obs.Export(context.Background(), id, observe.ExportOptions{}).Success).To(BeTrue())
		Expect(ep.Received()[0]).To(HaveKeyWithValue("call_ended_reason", export.StatusDisconnected))
	})

	It("applies per-session agent ids and connection info", func() {
		connected := time.Now().Add(-time.Minute)
		id := obs.StartSession(em,
			observe.WithAgentID("agent-2"),
			observe.WithConnection(agentsession.ConnectionInfo{RoomName: "room-1", ConnectTime: &connected}),
		)

		snap, ok := obs.Registry().Snapshot(id)
		Expect(ok).To(BeTrue())
		Expect(snap.AgentID).To(Equal("agent-2"))
		Expect(snap.RoomName).To(Equal("room-1"))
		Expect(snap.ConnectTime).NotTo(BeNil())
	})

	It("runs shutdown hooks in the background", func() {
		id := obs.StartSession(em)
		converse()

		hook := obs.ShutdownHook(id, observe.ExportOptions{})
		hook()

		Eventually(ep.Received).Should(HaveLen(1))
		Eventually(func() bool { return obs.Registry().Has(id) }).Should(BeFalse())
	})

	It("delivers a session once when exports overlap", func() {
		ep.setDelay(100 * time.Millisecond)
		id := obs.StartSession(em)
		converse()

		results := make([]delivery.Result, 2)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = obs.Export(context.Background(), id, observe.ExportOptions{})
			}()
		}
		wg.Wait()

		Expect(ep.Received()).To(HaveLen(1))

		var delivered, refused int
		for _, res := range results {
			if res.Success {
				delivered++
				continue
			}
			refused++
			Expect(res.Error).To(BeElementOf(observe.ErrExportInProgress, "session not found"))
		}
		Expect(delivered).To(Equal(1))
		Expect(refused).To(Equal(1))
	})

	It("queues one export when the hook fires on disconnect and close", func() {
		ep.setDelay(100 * time.Millisecond)
		id := obs.StartSession(em)

		hook := obs.ShutdownHook(id, observe.ExportOptions{})
		em.On(agentsession.KindDisconnected, func(agentsession.Event) { hook() })
		em.On(agentsession.KindClose, func(agentsession.Event) { hook() })

		em.Emit(agentsession.ConversationItemAdded{Role: turns.RoleUser, Text: "hi"})
		em.Emit(agentsession.Disconnected{})
		em.Emit(agentsession.Close{})

		Eventually(ep.Received).Should(HaveLen(1))
		Eventually(func() bool { return obs.Registry().Has(id) }).Should(BeFalse())
		Consistently(ep.Received, 300*time.Millisecond).Should(HaveLen(1))
		Expect(ep.Received()[0]).To(HaveKeyWithValue("call_ended_reason", export.StatusDisconnected))
	})

	It("resends an archived call", func() {
		ep.setStatus(http.StatusInternalServerError)
		id := obs.StartSession(em)
		converse()
		obs.Export(context.Background(), id, observe.ExportOptions{})

		callID := ep.Received()[0]["call_id"].(string)
		ep.setStatus(http.StatusOK)

		res, err := obs.Resend(context.Background(), callID)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Success).To(BeTrue())

		entry, err := archive.Get(context.Background(), callID)
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Status).To(Equal(storage.StatusDelivered))
		Expect(pub.Events()).To(HaveLen(1))
	})

	It("reports resending an unknown call", func() {
		_, err := obs.Resend(context.Background(), "nope")
		Expect(storage.IsNotFound(err)).To(BeTrue())
	})
})
