// Package nop provides the publisher used when no event stream is configured.
package nop

import (
	"context"

	"github.com/papercomputeco/voxtap/pkg/eventstream"
)

// Publisher validates events and drops them.
type Publisher struct{}

// NewPublisher creates a no-op publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishCall returns ErrNilCallEvent for a nil event and nil otherwise.
func (p *Publisher) PublishCall(_ context.Context, event *eventstream.CallExportedEvent) error {
	if event == nil {
		return eventstream.ErrNilCallEvent
	}
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
