// Package delivery POSTs export records to the analytics endpoint.
//
// Send never returns an error: every outcome, including a missing endpoint and
// records that cannot be serialized, is reported through Result so callers on
// the observation path cannot fail the host.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/logger"
)

const (
	// DefaultAuthHeader carries the API key when no header is configured.
	DefaultAuthHeader = "x-pype-token"

	// DefaultTimeout bounds a single delivery request.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response body is kept.
	maxErrorBody = 64 << 10
)

// Result is the outcome of one delivery attempt.
type Result struct {
	Success bool   `json:"success"`
	Status  int    `json:"status,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client sends records to a single endpoint.
type Client struct {
	Endpoint string
	APIKey   string

	// AuthHeader names the header carrying APIKey. "Authorization" sends a
	// bearer token, any other header carries the raw key.
	AuthHeader string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewHTTPClient returns an http.Client with explicit dial and idle timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// Send POSTs rec as JSON.
func (c *Client) Send(ctx context.Context, rec *export.Record) Result {
	log := logger.OrNop(c.Logger)

	if c.Endpoint == "" {
		log.Error("delivery endpoint not configured")
		return Result{Error: "delivery endpoint not configured"}
	}

	body, err := json.Marshal(rec)
	if err != nil {
		log.Error("record is not serializable", "error", err)
		return Result{Error: fmt.Sprintf("JSON serialization failed: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("request failed: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	hc := c.HTTPClient
	if hc == nil {
		hc = NewHTTPClient(DefaultTimeout)
	}

	started := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		log.Error("delivery request failed", "endpoint", c.Endpoint, "error", err)
		return Result{Error: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	var respBody io.Reader = resp.Body
	if resp.StatusCode >= http.StatusBadRequest {
		respBody = io.LimitReader(resp.Body, maxErrorBody)
	}
	raw, err := io.ReadAll(respBody)
	if err != nil {
		return Result{Status: resp.StatusCode, Error: fmt.Sprintf("request failed: reading response: %v", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		log.Error("delivery rejected",
			"endpoint", c.Endpoint,
			"status", resp.StatusCode,
			"body", string(raw),
		)
		return Result{Status: resp.StatusCode, Error: string(raw)}
	}

	log.Info("record delivered",
		"call_id", callID(rec),
		"status", resp.StatusCode,
		"took", time.Since(started),
	)
	return Result{Success: true, Status: resp.StatusCode, Data: decodeBody(raw)}
}

func (c *Client) setAuth(req *http.Request) {
	if c.APIKey == "" {
		return
	}
	header := c.AuthHeader
	if header == "" {
		header = DefaultAuthHeader
	}
	if http.CanonicalHeaderKey(header) == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		return
	}
	req.Header.Set(header, c.APIKey)
}

// decodeBody returns the parsed JSON body, or nil when it is empty or not JSON.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func callID(rec *export.Record) string {
	if rec == nil {
		return ""
	}
	return rec.CallID
}
