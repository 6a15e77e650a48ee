package callscmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	callscmder "github.com/papercomputeco/voxtap/cmd/voxtap/calls"
	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/storage"
	"github.com/papercomputeco/voxtap/pkg/storage/sqlite"
)

var _ = Describe("NewCallsCmd", func() {
	It("has list, show, and resend subcommands", func() {
		cmds := callscmder.NewCallsCmd().Commands()
		names := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			names = append(names, sub.Name())
		}
		Expect(names).To(ConsistOf("list", "show", "resend"))
	})
})

var _ = Describe("Calls command execution", func() {
	var (
		ctx       context.Context
		configDir string
	)

	run := func(args ...string) (string, error) {
		cmd := callscmder.NewCallsCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.PersistentFlags().Bool("debug", false, "")

		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		err := cmd.Execute()
		return out.String(), err
	}

	seed := func(entries ...*storage.Entry) {
		d, err := sqlite.NewDriver(ctx, filepath.Join(configDir, "voxtap.sqlite"))
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()
		for _, e := range entries {
			Expect(d.Put(ctx, e)).To(Succeed())
		}
	}

	get := func(callID string) *storage.Entry {
		d, err := sqlite.NewDriver(ctx, filepath.Join(configDir, "voxtap.sqlite"))
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()
		e, err := d.Get(ctx, callID)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	record := func(callID string) *export.Record {
		return &export.Record{
			CallID:          callID,
			AgentID:         "agent-1",
			CallEndedReason: export.StatusCompleted,
			TranscriptType:  "livekit",
			Metadata:        map[string]any{"source": "test"},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		configDir = GinkgoT().TempDir()
		GinkgoT().Setenv("VOXTAP_SQLITE", "")
		GinkgoT().Setenv("VOXTAP_STORAGE_POSTGRES_DSN", "")

		base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		seed(
			&storage.Entry{CallID: "call-a", SessionID: "s-a", AgentID: "agent-1", Status: storage.StatusDelivered, HTTPStatus: 200, Record: record("call-a"), CreatedAt: base},
			&storage.Entry{CallID: "call-b", SessionID: "s-b", AgentID: "agent-2", Status: storage.StatusFailed, HTTPStatus: 503, Error: "unavailable", Record: record("call-b"), CreatedAt: base.Add(time.Minute)},
		)
	})

	Describe("list", func() {
		It("lists calls newest first", func() {
			out, err := run("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("call-a"))
			Expect(out).To(ContainSubstring("HTTP 503 unavailable"))
			Expect(bytes.Index([]byte(out), []byte("call-b"))).To(BeNumerically("<", bytes.Index([]byte(out), []byte("call-a"))))
		})

		It("filters by status and prints JSON", func() {
			out, err := run("list", "--status", "failed", "--json")
			Expect(err).NotTo(HaveOccurred())

			var entries []storage.Entry
			Expect(json.Unmarshal([]byte(out), &entries)).To(Succeed())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].CallID).To(Equal("call-b"))
		})

		It("filters by agent", func() {
			out, err := run("list", "--agent-id", "agent-1", "--json")
			Expect(err).NotTo(HaveOccurred())

			var entries []storage.Entry
			Expect(json.Unmarshal([]byte(out), &entries)).To(Succeed())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].CallID).To(Equal("call-a"))
		})

		It("rejects an unknown status", func() {
			_, err := run("list", "--status", "pending")
			Expect(err).To(MatchError(ContainSubstring("invalid --status")))
		})

		It("rejects a negative limit", func() {
			_, err := run("list", "--limit", "-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("show", func() {
		It("prints the call record", func() {
			out, err := run("show", "call-a")
			Expect(err).NotTo(HaveOccurred())

			var rec export.Record
			Expect(json.Unmarshal([]byte(out), &rec)).To(Succeed())
			Expect(rec.CallID).To(Equal("call-a"))
			Expect(rec.Metadata).To(HaveKeyWithValue("source", "test"))
		})

		It("prints the whole entry with --entry", func() {
			out, err := run("show", "call-b", "--entry")
			Expect(err).NotTo(HaveOccurred())

			var e storage.Entry
			Expect(json.Unmarshal([]byte(out), &e)).To(Succeed())
			Expect(e.Status).To(Equal(storage.StatusFailed))
			Expect(e.HTTPStatus).To(Equal(503))
		})

		It("fails for unknown calls", func() {
			_, err := run("show", "nope")
			Expect(err).To(MatchError(ContainSubstring("not archived")))
		})
	})

	Describe("resend", func() {
		var (
			received []export.Record
			status   int
			srv      *httptest.Server
		)

		BeforeEach(func() {
			received = nil
			status = http.StatusOK
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var rec export.Record
				Expect(json.NewDecoder(r.Body).Decode(&rec)).To(Succeed())
				received = append(received, rec)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"ok":true}`))
			}))
			DeferCleanup(srv.Close)
		})

		It("delivers the archived record and marks it delivered", func() {
			out, err := run("resend", "call-b", "--endpoint", srv.URL, "--api-key", "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`"ok": true`))

			Expect(received).To(HaveLen(1))
			Expect(received[0].CallID).To(Equal("call-b"))

			e := get("call-b")
			Expect(e.Status).To(Equal(storage.StatusDelivered))
			Expect(e.HTTPStatus).To(Equal(http.StatusOK))
		})

		It("reports a rejected delivery", func() {
			status = http.StatusUnprocessableEntity

			_, err := run("resend", "call-a", "--endpoint", srv.URL)
			Expect(err).To(MatchError(ContainSubstring("HTTP 422")))
			Expect(get("call-a").Status).To(Equal(storage.StatusFailed))
		})

		It("fails for unknown calls", func() {
			_, err := run("resend", "nope", "--endpoint", srv.URL)
			Expect(err).To(MatchError(ContainSubstring("not archived")))
			Expect(received).To(BeEmpty())
		})
	})
})
