package registry

import (
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/voxtap/pkg/agentsession"
	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/turns"
	"github.com/papercomputeco/voxtap/pkg/usage"
)

// Lifecycle is the lifecycle flag of a session record.
type Lifecycle string

const (
	LifecycleActive Lifecycle = "active"
	LifecycleEnded  Lifecycle = "ended"
)

// session is the per-session aggregate. mu serializes host event callbacks
// with reads coming from API handlers and shutdown hooks.
type session struct {
	mu sync.Mutex

	id          string
	agentID     string
	setupTime   time.Time
	connectTime *time.Time
	connection  *agentsession.ConnectionInfo
	metadata    map[string]any

	usage *usage.Collector
	turns *turns.Collector

	userMessages  []export.Message
	agentMessages []export.Message

	lifecycle Lifecycle
	endStatus string
	endError  string

	// cached is set once when the session ends and never modified after.
	cached *export.Record

	// exporting is held by the one export currently delivering the session.
	exporting bool
}

// Snapshot is a debug view of one session.
type Snapshot struct {
	SessionID     string     `json:"session_id"`
	AgentID       string     `json:"agent_id"`
	Lifecycle     Lifecycle  `json:"lifecycle"`
	SetupTime     time.Time  `json:"setup_time"`
	ConnectTime   *time.Time `json:"connect_time"`
	RoomName      string     `json:"room_name,omitempty"`
	TurnCount     int        `json:"turn_count"`
	UserMessages  int        `json:"user_messages"`
	AgentMessages int        `json:"agent_messages"`
	MetadataKeys  []string   `json:"metadata_keys"`
	HasExport     bool       `json:"has_export"`
	EndStatus     string     `json:"end_status,omitempty"`
	EndError      string     `json:"end_error,omitempty"`
}

// snapshot must be called with s.mu held.
func (s *session) snapshot() Snapshot {
	keys := slices.Collect(maps.Keys(s.metadata))
	sort.Strings(keys)

	snap := Snapshot{
		SessionID:     s.id,
		AgentID:       s.agentID,
		Lifecycle:     s.lifecycle,
		SetupTime:     s.setupTime,
		TurnCount:     s.turns.TurnCount(),
		UserMessages:  len(s.userMessages),
		AgentMessages: len(s.agentMessages),
		MetadataKeys:  keys,
		HasExport:     s.cached != nil,
		EndStatus:     s.endStatus,
		EndError:      s.endError,
	}
	if s.connectTime != nil {
		t := *s.connectTime
		snap.ConnectTime = &t
	}
	if s.connection != nil {
		snap.RoomName = s.connection.RoomName
	}
	return snap
}
