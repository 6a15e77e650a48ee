// Package storage defines the export archive: a record of every delivery
// attempt, kept for inspection and manual resends.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/voxtap/pkg/export"
)

// Delivery outcomes recorded for an entry.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Entry is one archived export, keyed by its call id.
type Entry struct {
	CallID     string         `json:"call_id"`
	SessionID  string         `json:"session_id"`
	AgentID    string         `json:"agent_id"`
	Status     string         `json:"status"`
	HTTPStatus int            `json:"http_status"`
	Error      string         `json:"error,omitempty"`
	Record     *export.Record `json:"record"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ListOptions filters List. Zero values match everything; a Limit of 0 means
// no limit.
type ListOptions struct {
	AgentID string
	Status  string
	Limit   int
}

// Driver persists archive entries.
type Driver interface {
	// Put inserts the entry or, when its call id is already archived,
	// replaces everything except CreatedAt.
	Put(ctx context.Context, entry *Entry) error

	// Get returns the entry for callID or a NotFoundError.
	Get(ctx context.Context, callID string) (*Entry, error)

	// List returns matching entries, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Entry, error)

	// Close releases the backend.
	Close() error
}

// Matches reports whether e passes the filters of opts.
func (opts ListOptions) Matches(e *Entry) bool {
	if opts.AgentID != "" && e.AgentID != opts.AgentID {
		return false
	}
	if opts.Status != "" && e.Status != opts.Status {
		return false
	}
	return true
}
