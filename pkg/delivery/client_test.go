package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/voxtap/pkg/delivery"
	"github.com/papercomputeco/voxtap/pkg/export"
)

type captured struct {
	method  string
	headers http.Header
	body    map[string]any
}

var _ = Describe("Client", func() {
	var (
		srv      *httptest.Server
		got      *captured
		status   int
		respBody string
		rec      *export.Record
	)

	BeforeEach(func() {
		got = &captured{}
		status = http.StatusOK
		respBody = `{"ok":true}`
		rec = &export.Record{
			CallID:         "sess_20260101_120000",
			AgentID:        "agent-1",
			CustomerNumber: export.UnknownCustomer,
			Metadata:       map[string]any{"campaign": "spring"},
		}

		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.method = r.Method
			got.headers = r.Header.Clone()
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &got.body)
			w.WriteHeader(status)
			_, _ = io.WriteString(w, respBody)
		}))
	})

	AfterEach(func() {
		srv.Close()
	})

	It("posts the record as JSON with the custom token header", func() {
		c := &delivery.Client{Endpoint: srv.URL, APIKey: "secret"}

		res := c.Send(context.Background(), rec)

		Expect(res.Success).To(BeTrue())
		Expect(res.Status).To(Equal(http.StatusOK))
		Expect(res.Data).To(Equal(map[string]any{"ok": true}))
		Expect(got.method).To(Equal(http.MethodPost))
		Expect(got.headers.Get("Content-Type")).To(Equal("application/json"))
		Expect(got.headers.Get(delivery.DefaultAuthHeader)).To(Equal("secret"))
		Expect(got.headers.Get("Authorization")).To(BeEmpty())
		Expect(got.body).To(HaveKeyWithValue("call_id", "sess_20260101_120000"))
		Expect(got.body).To(HaveKeyWithValue("customer_number", "unknown"))
	})

	It("sends a bearer token when the auth header is Authorization", func() {
		c := &delivery.Client{Endpoint: srv.URL, APIKey: "secret", AuthHeader: "Authorization"}

		Expect(c.Send(context.Background(), rec).Success).To(BeTrue())
		Expect(got.headers.Get("Authorization")).To(Equal("Bearer secret"))
	})

	It("uses a configured custom header", func() {
		c := &delivery.Client{Endpoint: srv.URL, APIKey: "secret", AuthHeader: "X-Api-Key"}

		Expect(c.Send(context.Background(), rec).Success).To(BeTrue())
		Expect(got.headers.Get("X-Api-Key")).To(Equal("secret"))
	})

	It("leaves data nil for an empty or non-JSON body", func() {
		respBody = "accepted"
		c := &delivery.Client{Endpoint: srv.URL}

		res := c.Send(context.Background(), rec)
		Expect(res.Success).To(BeTrue())
		Expect(res.Data).To(BeNil())
	})

	It("decodes success bodies of any size", func() {
		padding := strings.Repeat("x", 100<<10)
		respBody = `{"id":"remote-9","padding":"` + padding + `"}`
		c := &delivery.Client{Endpoint: srv.URL}

		res := c.Send(context.Background(), rec)
		Expect(res.Success).To(BeTrue())
		Expect(res.Data).To(HaveKeyWithValue("id", "remote-9"))
		Expect(res.Data).To(HaveKeyWithValue("padding", padding))
	})

	It("caps the body kept from a rejected request", func() {
		status = http.StatusBadGateway
		respBody = strings.Repeat("e", 100<<10)
		c := &delivery.Client{Endpoint: srv.URL}

		res := c.Send(context.Background(), rec)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(HaveLen(64 << 10))
	})

	It("reports the raw body of a rejected request", func() {
		status = http.StatusUnprocessableEntity
		respBody = "missing agent"
		c := &delivery.Client{Endpoint: srv.URL}

		res := c.Send(context.Background(), rec)
		Expect(res.Success).To(BeFalse())
		Expect(res.Status).To(Equal(http.StatusUnprocessableEntity))
		Expect(res.Error).To(Equal("missing agent"))
	})

	It("fails without an endpoint and sends nothing", func() {
		c := &delivery.Client{}

		res := c.Send(context.Background(), rec)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).NotTo(BeEmpty())
		Expect(got.method).To(BeEmpty())
	})

	It("reports unserializable records without sending", func() {
		rec.Metadata["callback"] = func() {}
		c := &delivery.Client{Endpoint: srv.URL}

		res := c.Send(context.Background(), rec)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(HavePrefix("JSON serialization failed:"))
		Expect(got.method).To(BeEmpty())
	})

	It("reports transport failures", func() {
		url := srv.URL
		srv.Close()
		c := &delivery.Client{Endpoint: url, HTTPClient: delivery.NewHTTPClient(0)}

		res := c.Send(context.Background(), rec)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(HavePrefix("request failed:"))
	})
})
