// Package storagetest holds the behaviors every storage.Driver must satisfy,
// shared by the driver test suites.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/storage"
)

// NewEntry builds an archive entry for tests.
func NewEntry(callID, agentID, status string, created time.Time) *storage.Entry {
	return &storage.Entry{
		CallID:     callID,
		SessionID:  "sess-" + callID,
		AgentID:    agentID,
		Status:     status,
		HTTPStatus: 200,
		Record: &export.Record{
			CallID:          callID,
			AgentID:         agentID,
			CallEndedReason: export.StatusCompleted,
			TranscriptType:  export.TranscriptTypeAgent,
			DurationSeconds: 42,
			TranscriptJSON: []export.TranscriptEntry{
				{Speaker: export.SpeakerCustomer, Text: "hello", Timestamp: 1},
			},
			Metadata: map[string]any{"plan": "gold"},
		},
		CreatedAt: created,
	}
}

// DriverBehaviors registers the shared driver tests. newDriver is called before
// each test and the driver is closed after it.
func DriverBehaviors(newDriver func() storage.Driver) {
	var (
		d   storage.Driver
		ctx context.Context
		t0  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		d = nil
		d = newDriver()
	})

	AfterEach(func() {
		if d != nil {
			Expect(d.Close()).To(Succeed())
		}
	})

	Describe("Put and Get", func() {
		It("round-trips an entry", func() {
			Expect(d.Put(ctx, NewEntry("call-1", "agent-a", storage.StatusDelivered, t0))).To(Succeed())

			got, err := d.Get(ctx, "call-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CallID).To(Equal("call-1"))
			Expect(got.SessionID).To(Equal("sess-call-1"))
			Expect(got.AgentID).To(Equal("agent-a"))
			Expect(got.Status).To(Equal(storage.StatusDelivered))
			Expect(got.HTTPStatus).To(Equal(200))
			Expect(got.CreatedAt.Equal(t0)).To(BeTrue())
			Expect(got.Record).NotTo(BeNil())
			Expect(got.Record.DurationSeconds).To(Equal(42))
			Expect(got.Record.TranscriptJSON).To(HaveLen(1))
			Expect(got.Record.Metadata).To(HaveKeyWithValue("plan", "gold"))
		})

		It("returns NotFoundError for unknown calls", func() {
			_, err := d.Get(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			Expect(err).To(MatchError(storage.NotFoundError{CallID: "missing"}))
		})

		It("rejects entries without a call id", func() {
			Expect(d.Put(ctx, nil)).To(MatchError(storage.ErrNilEntry))
			Expect(d.Put(ctx, &storage.Entry{})).To(MatchError(storage.ErrNilEntry))
		})

		It("upserts by call id and keeps the creation time", func() {
			Expect(d.Put(ctx, NewEntry("call-1", "agent-a", storage.StatusFailed, t0))).To(Succeed())

			retry := NewEntry("call-1", "agent-a", storage.StatusDelivered, t0.Add(time.Hour))
			retry.HTTPStatus = 201
			Expect(d.Put(ctx, retry)).To(Succeed())

			got, err := d.Get(ctx, "call-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(storage.StatusDelivered))
			Expect(got.HTTPStatus).To(Equal(201))
			Expect(got.CreatedAt.Equal(t0)).To(BeTrue())

			all, err := d.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			Expect(d.Put(ctx, NewEntry("call-1", "agent-a", storage.StatusDelivered, t0))).To(Succeed())
			Expect(d.Put(ctx, NewEntry("call-2", "agent-b", storage.StatusFailed, t0.Add(time.Minute)))).To(Succeed())
			Expect(d.Put(ctx, NewEntry("call-3", "agent-a", storage.StatusFailed, t0.Add(2*time.Minute)))).To(Succeed())
		})

		It("returns everything newest first", func() {
			all, err := d.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(callIDs(all)).To(Equal([]string{"call-3", "call-2", "call-1"}))
		})

		It("filters by agent and status", func() {
			byAgent, err := d.List(ctx, storage.ListOptions{AgentID: "agent-a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(callIDs(byAgent)).To(Equal([]string{"call-3", "call-1"}))

			failedA, err := d.List(ctx, storage.ListOptions{AgentID: "agent-a", Status: storage.StatusFailed})
			Expect(err).NotTo(HaveOccurred())
			Expect(callIDs(failedA)).To(Equal([]string{"call-3"}))
		})

		It("honors the limit", func() {
			some, err := d.List(ctx, storage.ListOptions{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(callIDs(some)).To(Equal([]string{"call-3", "call-2"}))
		})
	})
}

func callIDs(entries []*storage.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.CallID)
	}
	return out
}
