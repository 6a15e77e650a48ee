// Package observe is the entry point a host process uses to observe voice
// sessions and ship their analytics records. It ties the session registry to
// delivery, the export archive and the event stream.
package observe

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/voxtap/pkg/agentsession"
	"github.com/papercomputeco/voxtap/pkg/delivery"
	"github.com/papercomputeco/voxtap/pkg/delivery/worker"
	"github.com/papercomputeco/voxtap/pkg/eventstream"
	"github.com/papercomputeco/voxtap/pkg/eventstream/nop"
	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/logger"
	"github.com/papercomputeco/voxtap/pkg/registry"
	"github.com/papercomputeco/voxtap/pkg/storage"
	"github.com/papercomputeco/voxtap/pkg/storage/inmemory"
)

const (
	errSessionNotFound = "session not found"
	errNoData          = "no data available"

	// ErrExportInProgress is the Result.Error of an export refused because
	// another export of the same session is still delivering.
	ErrExportInProgress = "export already in progress"
)

// Config wires an Observer. Every field is optional.
type Config struct {
	// AgentID is used for sessions started without WithAgentID.
	AgentID string

	Registry  *registry.Registry
	Client    *delivery.Client
	Archive   storage.Driver
	Publisher eventstream.Publisher

	// NumWorkers and QueueSize size the shutdown-hook worker pool.
	NumWorkers uint
	QueueSize  uint

	Logger *slog.Logger
}

// Observer is safe for concurrent use.
type Observer struct {
	agentID   string
	registry  *registry.Registry
	client    *delivery.Client
	archive   storage.Driver
	publisher eventstream.Publisher
	pool      *worker.Pool
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Observer and starts its worker pool.
func New(cfg Config) (*Observer, error) {
	log := logger.OrNop(cfg.Logger)

	o := &Observer{
		agentID:   cfg.AgentID,
		registry:  cfg.Registry,
		client:    cfg.Client,
		archive:   cfg.Archive,
		publisher: cfg.Publisher,
		logger:    log,
		now:       time.Now,
	}
	if o.registry == nil {
		o.registry = registry.New(registry.WithLogger(log))
	}
	if o.client == nil {
		o.client = &delivery.Client{Logger: log}
	}
	if o.archive == nil {
		o.archive = inmemory.NewDriver()
	}
	if o.publisher == nil {
		o.publisher = nop.NewPublisher()
	}

	pool, err := worker.NewPool(&worker.Config{
		NumWorkers: cfg.NumWorkers,
		QueueSize:  cfg.QueueSize,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	o.pool = pool
	return o, nil
}

// Registry returns the session registry.
func (o *Observer) Registry() *registry.Registry {
	return o.registry
}

// Archive returns the export archive.
func (o *Observer) Archive() storage.Driver {
	return o.archive
}

// SessionOption configures StartSession.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	agentID  string
	metadata map[string]any
	conn     *agentsession.ConnectionInfo
}

// WithAgentID overrides the configured agent id for one session.
func WithAgentID(id string) SessionOption {
	return func(o *sessionOptions) {
		o.agentID = id
	}
}

// WithMetadata adds caller metadata to the session. Later calls merge over
// earlier ones.
func WithMetadata(md map[string]any) SessionOption {
	return func(o *sessionOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]any, len(md))
		}
		maps.Copy(o.metadata, md)
	}
}

// WithConnection attaches room details. A set ConnectTime marks the session
// connected from the start.
func WithConnection(conn agentsession.ConnectionInfo) SessionOption {
	return func(o *sessionOptions) {
		o.conn = &conn
	}
}

// StartSession begins observing src and returns the session id.
func (o *Observer) StartSession(src agentsession.Source, opts ...SessionOption) string {
	so := sessionOptions{agentID: o.agentID}
	for _, opt := range opts {
		opt(&so)
	}
	return o.registry.Begin(src, so.agentID, so.metadata, so.conn)
}

// MarkConnected records that the agent joined its room.
func (o *Observer) MarkConnected(id string) bool {
	return o.registry.MarkConnected(id)
}

// ExportOptions adjusts a single export.
type ExportOptions struct {
	RecordingURL string

	// AdditionalTranscript replaces transcript_json when non-empty.
	AdditionalTranscript []export.TranscriptEntry

	// ForceEnd ends an active session before exporting. Nil means true.
	ForceEnd *bool
}

func (eo ExportOptions) forceEnd() bool {
	return eo.ForceEnd == nil || *eo.ForceEnd
}

// Export ends the session if needed, sends its record and archives the
// attempt. Only one export of a session runs at a time. On success the
// session is cleaned up and a call event is published; on failure the session
// is kept so the caller can retry with the same cached record.
func (o *Observer) Export(ctx context.Context, id string, opts ExportOptions) delivery.Result {
	log := o.logger.With("session_id", id)

	if !o.registry.ClaimExport(id) {
		if o.registry.Has(id) {
			log.Warn("export already in progress")
			return delivery.Result{Error: ErrExportInProgress}
		}
		log.Error("cannot export unknown session")
		return delivery.Result{Error: errSessionNotFound}
	}
	defer o.registry.ReleaseExport(id)

	if opts.forceEnd() {
		o.registry.End(id, export.StatusCompleted, "")
	}

	cached, ok := o.registry.Export(id)
	if !ok || cached.Empty() {
		log.Error("no export data for session")
		return delivery.Result{Error: errNoData}
	}

	rec := cached.Clone()
	if opts.RecordingURL != "" {
		rec.RecordingURL = opts.RecordingURL
	}
	if len(opts.AdditionalTranscript) > 0 {
		rec.TranscriptJSON = slices.Clone(opts.AdditionalTranscript)
	}

	started := o.now()
	res := o.client.Send(ctx, rec)
	took := o.now().Sub(started)

	o.archiveAttempt(ctx, id, rec, res)

	if !res.Success {
		log.Warn("export failed, session kept for retry", "call_id", rec.CallID, "error", res.Error)
		return res
	}

	o.publish(ctx, id, rec, res, took)
	o.registry.Cleanup(id)
	log.Info("session exported", "call_id", rec.CallID, "status", res.Status)
	return res
}

// Resend delivers an archived record again and updates its archive entry.
func (o *Observer) Resend(ctx context.Context, callID string) (delivery.Result, error) {
	entry, err := o.archive.Get(ctx, callID)
	if err != nil {
		return delivery.Result{}, err
	}
	if entry.Record.Empty() {
		return delivery.Result{Error: errNoData}, nil
	}

	started := o.now()
	res := o.client.Send(ctx, entry.Record)
	took := o.now().Sub(started)

	o.archiveAttempt(ctx, entry.SessionID, entry.Record, res)
	if res.Success {
		o.publish(ctx, entry.SessionID, entry.Record, res, took)
	}
	return res, nil
}

func (o *Observer) archiveAttempt(ctx context.Context, sessionID string, rec *export.Record, res delivery.Result) {
	entry := &storage.Entry{
		CallID:     rec.CallID,
		SessionID:  sessionID,
		AgentID:    rec.AgentID,
		Status:     storage.StatusDelivered,
		HTTPStatus: res.Status,
		Record:     rec,
	}
	if !res.Success {
		entry.Status = storage.StatusFailed
		entry.Error = res.Error
	}
	if err := o.archive.Put(ctx, entry); err != nil {
		o.logger.Warn("could not archive export attempt", "call_id", rec.CallID, "error", err)
	}
}

func (o *Observer) publish(ctx context.Context, sessionID string, rec *export.Record, res delivery.Result, took time.Duration) {
	ev := eventstream.NewCallExportedEvent(sessionID, rec, eventstream.DeliveryMeta{
		HTTPStatus: res.Status,
		Success:    res.Success,
		DurationMs: took.Milliseconds(),
	}, o.now())
	if err := o.publisher.PublishCall(ctx, ev); err != nil {
		o.logger.Warn("could not publish call event", "call_id", rec.CallID, "error", err)
	}
}

// ShutdownHook returns a function for the host's shutdown callbacks. It
// queues the export on the worker pool and returns immediately. The hook can
// be registered on several events: only the first call that gets a job queued
// has an effect.
func (o *Observer) ShutdownHook(id string, opts ExportOptions) func() {
	var queued atomic.Bool
	return func() {
		if !queued.CompareAndSwap(false, true) {
			return
		}
		if !o.ExportAsync(id, opts) {
			queued.Store(false)
		}
	}
}

// ExportAsync queues an export. It reports false when the job was dropped.
func (o *Observer) ExportAsync(id string, opts ExportOptions) bool {
	return o.pool.Enqueue(worker.Job{
		SessionID: id,
		Run: func(ctx context.Context) error {
			res := o.Export(ctx, id, opts)
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	})
}

// Close waits for queued exports, then closes the publisher and archive.
func (o *Observer) Close() error {
	o.pool.Close()
	return errors.Join(o.publisher.Close(), o.archive.Close())
}
