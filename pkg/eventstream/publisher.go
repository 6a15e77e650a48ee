// Package eventstream publishes call export events to downstream consumers.
package eventstream

import "context"

// Publisher publishes call events to an event stream backend.
type Publisher interface {
	PublishCall(ctx context.Context, event *CallExportedEvent) error
	Close() error
}
