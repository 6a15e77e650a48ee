package api

import (
	"expvar"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

const (
	statSessionsStarted  = "sessions_started"
	statEventsIngested   = "events_ingested"
	statExportsDelivered = "exports_delivered"
	statExportsFailed    = "exports_failed"
)

// stats are per-server counters served in expvar format. The map is not
// published globally so several servers can coexist in one process.
type stats struct {
	vars *expvar.Map
}

func newStats() *stats {
	m := new(expvar.Map).Init()
	for _, k := range []string{statSessionsStarted, statEventsIngested, statExportsDelivered, statExportsFailed} {
		m.Add(k, 0)
	}
	return &stats{vars: m}
}

func (st *stats) add(key string, delta int64) {
	st.vars.Add(key, delta)
}

func (s *Server) handleDebugVars() fiber.Handler {
	return adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(s.stats.vars.String()))
	})
}
