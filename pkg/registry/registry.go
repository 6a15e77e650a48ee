// Package registry keeps the state of every observed voice session, keyed by
// session id, from the moment observation begins until the session is cleaned
// up after delivery.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/voxtap/pkg/agentsession"
	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/logger"
	"github.com/papercomputeco/voxtap/pkg/turns"
	"github.com/papercomputeco/voxtap/pkg/usage"
)

// Registry is safe for concurrent use by multiple sessions. Records are only
// removed by Cleanup and CleanupAll.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session

	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	hookMu    sync.RWMutex
	onCleanup []func(id string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger. Each session logs through a child
// logger carrying its session_id.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.OrNop(l)
	}
}

// WithClock overrides the clock used for setup, connect and end times.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides session id allocation.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*session),
		logger:   logger.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin starts observing src and returns the new session id. It never blocks
// on the host and never fails: if subscribing to src fails the error is
// logged, the record stays in the registry and the id is still returned.
func (r *Registry) Begin(src agentsession.Source, agentID string, metadata map[string]any, conn *agentsession.ConnectionInfo) string {
	id := r.newID()
	log := r.logger.With("session_id", id)

	s := &session{
		id:        id,
		agentID:   agentID,
		setupTime: r.now(),
		metadata:  maps.Clone(metadata),
		usage:     usage.NewCollector(),
		turns:     turns.NewCollector(turns.WithLogger(log), turns.WithClock(r.now)),
		lifecycle: LifecycleActive,
	}
	if s.metadata == nil {
		s.metadata = map[string]any{}
	}
	if conn != nil {
		c := *conn
		s.connection = &c
		if conn.ConnectTime != nil {
			t := *conn.ConnectTime
			s.connectTime = &t
			c.ConnectTime = &t
		}
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	if err := r.subscribe(src, s, log); err != nil {
		log.Error("observation disabled, could not subscribe to session events", "error", err)
		return id
	}

	log.Info("observing session", "agent_id", agentID)
	return id
}

func (r *Registry) subscribe(src agentsession.Source, s *session, log *slog.Logger) (err error) {
	if src == nil {
		return errors.New("nil event source")
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("subscribing: %v", p)
		}
	}()

	src.On(agentsession.KindConversationItemAdded, guard(log, agentsession.KindConversationItemAdded, func(ev agentsession.Event) {
		item, ok := ev.(agentsession.ConversationItemAdded)
		if !ok {
			log.Debug("dropping malformed conversation item", "type", fmt.Sprintf("%T", ev))
			return
		}
		r.onConversationItem(s, item, log)
	}))

	src.On(agentsession.KindMetricsCollected, guard(log, agentsession.KindMetricsCollected, func(ev agentsession.Event) {
		m, ok := ev.(agentsession.MetricsCollected)
		if !ok {
			log.Debug("dropping malformed metrics event", "type", fmt.Sprintf("%T", ev))
			return
		}
		r.onMetrics(s, m, log)
	}))

	src.On(agentsession.KindDisconnected, guard(log, agentsession.KindDisconnected, func(ev agentsession.Event) {
		d, _ := ev.(agentsession.Disconnected)
		log.Info("session disconnected", "reason", d.Reason)
		r.End(s.id, export.StatusDisconnected, "")
	}))

	src.On(agentsession.KindClose, guard(log, agentsession.KindClose, func(ev agentsession.Event) {
		var errMsg string
		if c, ok := ev.(agentsession.Close); ok && c.Error != nil {
			errMsg = c.Error.Error()
		}
		r.End(s.id, export.StatusCompleted, errMsg)
	}))

	return nil
}

// guard keeps a failing handler from reaching the host's event loop.
func guard(log *slog.Logger, kind agentsession.EventKind, fn agentsession.Handler) agentsession.Handler {
	return func(ev agentsession.Event) {
		defer func() {
			if p := recover(); p != nil {
				log.Error("session event handler failed", "event", string(kind), "panic", p)
			}
		}()
		fn(ev)
	}
}

func (r *Registry) onConversationItem(s *session, item agentsession.ConversationItemAdded, log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle != LifecycleActive {
		log.Debug("ignoring conversation item after session end", "role", item.Role)
		return
	}

	s.turns.OnConversationItem(item.Role, item.Text)

	msg := export.Message{Text: item.Text, Timestamp: r.now()}
	switch item.Role {
	case turns.RoleUser:
		s.userMessages = append(s.userMessages, msg)
	case turns.RoleAssistant:
		s.agentMessages = append(s.agentMessages, msg)
	}
}

func (r *Registry) onMetrics(s *session, ev agentsession.MetricsCollected, log *slog.Logger) {
	if ev.Metrics == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle != LifecycleActive {
		log.Debug("ignoring metrics after session end")
		return
	}

	s.usage.Collect(ev.Metrics)
	s.turns.OnMetrics(ev.Metrics)
}

func (r *Registry) lookup(id string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Has reports whether id is in the registry.
func (r *Registry) Has(id string) bool {
	_, ok := r.lookup(id)
	return ok
}

// MarkConnected records the time the agent joined its room. Only the first
// call has an effect. It returns false for an unknown session.
func (r *Registry) MarkConnected(id string) bool {
	s, ok := r.lookup(id)
	if !ok {
		r.logger.Error("cannot mark unknown session connected", "session_id", id)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connectTime != nil {
		r.logger.Debug("session already connected", "session_id", id)
		return true
	}

	t := r.now()
	s.connectTime = &t
	r.logger.Info("session connected", "session_id", id)
	return true
}

// End ends the session and caches its export record. Calls after the first
// return the cached record unchanged.
func (r *Registry) End(id, status, errMsg string) (*export.Record, bool) {
	s, ok := r.lookup(id)
	if !ok {
		r.logger.Warn("cannot end unknown session", "session_id", id)
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle == LifecycleEnded {
		r.logger.Debug("session already ended", "session_id", id, "status", s.endStatus)
		return s.cached, true
	}

	s.lifecycle = LifecycleEnded
	s.endStatus = status
	s.endError = errMsg
	s.cached = r.assemble(s, status, errMsg, false)

	r.logger.Info("session ended",
		"session_id", id,
		"status", status,
		"turns", len(s.cached.TranscriptWithMetrics),
		"duration", s.cached.Metadata[export.MetadataDurationFormatted],
	)
	return s.cached, true
}

// Export returns the cached record of an ended session, or a live snapshot of
// an active one with call_ended_reason "in_progress".
func (r *Registry) Export(id string) (*export.Record, bool) {
	s, ok := r.lookup(id)
	if !ok {
		r.logger.Warn("cannot export unknown session", "session_id", id)
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, true
	}
	return r.assemble(s, export.StatusInProgress, "", true), true
}

// assemble must be called with s.mu held. A live assembly works on a clone of
// the turn collector so the session keeps reconciling afterwards.
func (r *Registry) assemble(s *session, status, errMsg string, live bool) *export.Record {
	start := s.setupTime
	if s.connectTime != nil {
		start = *s.connectTime
	} else {
		r.logger.Warn("session never connected, using setup time as call start", "session_id", s.id)
	}

	tc := s.turns
	if live {
		tc = tc.Clone()
	}

	return export.Assemble(export.Input{
		SessionID:     s.id,
		AgentID:       s.agentID,
		Status:        status,
		Error:         errMsg,
		Start:         start,
		End:           r.now(),
		Metadata:      s.metadata,
		Usage:         s.usage.Summary(),
		Turns:         tc.TurnRecords(),
		UserMessages:  slices.Clone(s.userMessages),
		AgentMessages: slices.Clone(s.agentMessages),
	})
}

// Transcript renders the session's turns as text. Active sessions are
// rendered from a snapshot.
func (r *Registry) Transcript(id string) (string, bool) {
	s, ok := r.lookup(id)
	if !ok {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle == LifecycleActive {
		return s.turns.Clone().FormattedTranscript(), true
	}
	return s.turns.FormattedTranscript(), true
}

// Snapshot returns a debug view of the session.
func (r *Registry) Snapshot(id string) (Snapshot, bool) {
	s, ok := r.lookup(id)
	if !ok {
		return Snapshot{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), true
}

// ClaimExport reserves the session for one export. It returns false for an
// unknown session and while another export of it is in flight.
func (r *Registry) ClaimExport(id string) bool {
	s, ok := r.lookup(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exporting {
		return false
	}
	s.exporting = true
	return true
}

// ReleaseExport drops the claim taken by ClaimExport so a failed export can
// be retried.
func (r *Registry) ReleaseExport(id string) {
	s, ok := r.lookup(id)
	if !ok {
		return
	}

	s.mu.Lock()
	s.exporting = false
	s.mu.Unlock()
}

// OnCleanup registers fn to run after a session record is removed.
func (r *Registry) OnCleanup(fn func(id string)) {
	if fn == nil {
		return
	}
	r.hookMu.Lock()
	r.onCleanup = append(r.onCleanup, fn)
	r.hookMu.Unlock()
}

// Cleanup removes the session record. It reports whether the session existed.
func (r *Registry) Cleanup(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.logger.Debug("session cleaned up", "session_id", id)

	r.hookMu.RLock()
	hooks := slices.Clone(r.onCleanup)
	r.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}
	return true
}

// CleanupAll ends every session with status "cleanup", removes it and
// returns how many were removed.
func (r *Registry) CleanupAll() int {
	r.mu.RLock()
	ids := slices.Collect(maps.Keys(r.sessions))
	r.mu.RUnlock()

	n := 0
	for _, id := range ids {
		r.End(id, export.StatusCleanup, "")
		if r.Cleanup(id) {
			n++
		}
	}
	return n
}

// Active returns the ids of sessions that have not ended, sorted.
func (r *Registry) Active() []string {
	r.mu.RLock()
	all := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	var ids []string
	for _, s := range all {
		s.mu.Lock()
		if s.lifecycle == LifecycleActive {
			ids = append(ids, s.id)
		}
		s.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of records, ended ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
