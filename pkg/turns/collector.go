package turns

import (
	"fmt"
	"log/slog"
	"maps"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// State is the reconciliation state of a Collector.
type State int

const (
	// StateNoOpenTurn means no turn is open and none has been completed yet.
	StateNoOpenTurn State = iota

	// StateUserPending means a turn was opened by a user transcript and is
	// waiting for the assistant transcript.
	StateUserPending

	// StateTurnComplete means the last transcript event closed a turn. It
	// transitions exactly like StateNoOpenTurn.
	StateTurnComplete
)

func (s State) String() string {
	switch s {
	case StateNoOpenTurn:
		return "no_open_turn"
	case StateUserPending:
		return "user_pending"
	case StateTurnComplete:
		return "turn_complete"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Collector merges two weakly ordered event streams of one session, transcript
// items and per-stage metrics, into an ordered sequence of turns.
//
// A Collector is not safe for concurrent use. The host delivers the events of a
// session sequentially; callers that read from other goroutines must serialize
// access themselves.
type Collector struct {
	logger *slog.Logger
	now    func() time.Time

	state   State
	open    *ConversationTurn
	turns   []*ConversationTurn
	counter int

	// pending holds at most one unattached payload per kind, last write wins.
	pending map[MetricKind]any
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger used for reconciliation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used to stamp turn creation times.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector creates an empty Collector in StateNoOpenTurn.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		state:   StateNoOpenTurn,
		pending: make(map[MetricKind]any, len(Kinds)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current reconciliation state.
func (c *Collector) State() State {
	return c.state
}

// Pending reports whether a metric of the given kind is waiting for a turn.
func (c *Collector) Pending(kind MetricKind) bool {
	_, ok := c.pending[kind]
	return ok
}

// TurnCount returns the number of finalized turns, not counting an open turn.
func (c *Collector) TurnCount() int {
	return len(c.turns)
}

// OnConversationItem records a transcript item. Roles other than user and
// assistant are ignored.
func (c *Collector) OnConversationItem(role, text string) {
	switch role {
	case RoleUser:
		c.onUser(text)
	case RoleAssistant:
		c.onAssistant(text)
	default:
		c.logger.Debug("ignoring conversation item", "role", role)
	}
}

// onUser handles a user transcript: no_open_turn|turn_complete -> user_pending,
// user_pending -> user_pending.
func (c *Collector) onUser(text string) {
	turn := c.openTurn()
	turn.UserTranscript = text
	turn.UserTurnComplete = true
	c.state = StateUserPending

	c.drain(turn, KindSTT)
	c.drain(turn, KindEOU)

	c.logger.Debug("user transcript recorded", "turn_id", turn.TurnID)
}

// onAssistant handles an assistant transcript. Any state -> turn_complete; the
// turn is appended to the finalized sequence.
func (c *Collector) onAssistant(text string) {
	turn := c.openTurn()
	turn.AgentResponse = text
	turn.AgentTurnComplete = true

	c.drain(turn, KindLLM)
	c.drain(turn, KindTTS)

	c.complete()
	c.logger.Debug("turn completed", "turn_id", turn.TurnID)
}

// openTurn returns the open turn, creating one if the collector is not in
// StateUserPending.
func (c *Collector) openTurn() *ConversationTurn {
	if c.state == StateUserPending && c.open != nil {
		return c.open
	}

	c.counter++
	c.open = &ConversationTurn{
		TurnID:    fmt.Sprintf("turn_%d", c.counter),
		CreatedAt: c.now(),
	}
	return c.open
}

// complete appends the open turn to the finalized sequence and closes it.
func (c *Collector) complete() {
	if c.open == nil {
		return
	}
	c.turns = append(c.turns, c.open)
	c.open = nil
	c.state = StateTurnComplete
}

// drain moves the pending payload of kind onto turn unless the turn already
// holds one. An undrained payload stays pending.
func (c *Collector) drain(turn *ConversationTurn, kind MetricKind) {
	payload, ok := c.pending[kind]
	if !ok || turn.Has(kind) {
		return
	}
	turn.attach(payload)
	delete(c.pending, kind)
	c.logger.Debug("applied pending metrics", "kind", string(kind), "turn_id", turn.TurnID)
}

// OnMetrics attaches a metrics payload to the first eligible turn: the open
// turn, then the most recently finalized turn. Otherwise the payload replaces
// any pending payload of the same kind. Unrecognized payloads are ignored.
func (c *Collector) OnMetrics(metric any) {
	kind, payload, ok := normalize(metric)
	if !ok {
		c.logger.Debug("ignoring unrecognized metrics", "type", fmt.Sprintf("%T", metric))
		return
	}

	if c.state == StateUserPending && c.open.eligible(kind) {
		c.open.attach(payload)
		c.logger.Debug("applied metrics to open turn", "kind", string(kind), "turn_id", c.open.TurnID)
		return
	}

	if last := c.lastFinalized(); last.eligible(kind) {
		last.attach(payload)
		c.logger.Debug("applied metrics to last turn", "kind", string(kind), "turn_id", last.TurnID)
		return
	}

	if _, stale := c.pending[kind]; stale {
		c.logger.Debug("dropping stale pending metrics", "kind", string(kind))
	}
	c.pending[kind] = payload
}

func (c *Collector) lastFinalized() *ConversationTurn {
	if len(c.turns) == 0 {
		return nil
	}
	return c.turns[len(c.turns)-1]
}

// Finalize closes the session: an open turn is appended as a partial turn and
// every pending payload is attached to the newest eligible finalized turn or
// discarded. Finalize is idempotent.
func (c *Collector) Finalize() {
	if c.state == StateUserPending {
		c.logger.Debug("finalizing partial turn", "turn_id", c.open.TurnID)
		c.complete()
	}

	for _, kind := range Kinds {
		payload, ok := c.pending[kind]
		if !ok {
			continue
		}
		delete(c.pending, kind)

		attached := false
		for i := len(c.turns) - 1; i >= 0; i-- {
			if c.turns[i].eligible(kind) {
				c.turns[i].attach(payload)
				attached = true
				c.logger.Debug("applied final metrics", "kind", string(kind), "turn_id", c.turns[i].TurnID)
				break
			}
		}
		if !attached {
			c.logger.Debug("discarding unattached metrics", "kind", string(kind))
		}
	}
}

// Turns finalizes the collector and returns a copy of the turn sequence.
func (c *Collector) Turns() []ConversationTurn {
	c.Finalize()

	out := make([]ConversationTurn, 0, len(c.turns))
	for _, t := range c.turns {
		out = append(out, *t)
	}
	return out
}

// TurnRecords finalizes the collector and returns the turn sequence as plain
// records.
func (c *Collector) TurnRecords() []TurnRecord {
	c.Finalize()

	out := make([]TurnRecord, 0, len(c.turns))
	for _, t := range c.turns {
		out = append(out, t.Record())
	}
	return out
}

// Clone returns an independent copy of the collector. Finalizing the copy
// leaves c untouched, which is how live snapshots of an active session are
// taken.
func (c *Collector) Clone() *Collector {
	cp := &Collector{
		logger:  c.logger,
		now:     c.now,
		state:   c.state,
		counter: c.counter,
		pending: maps.Clone(c.pending),
		turns:   make([]*ConversationTurn, 0, len(c.turns)),
	}
	for _, t := range c.turns {
		tc := *t
		cp.turns = append(cp.turns, &tc)
	}
	if c.open != nil {
		o := *c.open
		cp.open = &o
	}
	return cp
}
