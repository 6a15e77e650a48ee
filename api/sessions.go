package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/voxtap/pkg/agentsession"
	"github.com/papercomputeco/voxtap/pkg/export"
	"github.com/papercomputeco/voxtap/pkg/observe"
)

// CreateSessionRequest starts observing a session.
type CreateSessionRequest struct {
	AgentID    string                       `json:"agent_id"`
	Metadata   map[string]any               `json:"metadata"`
	Connection *agentsession.ConnectionInfo `json:"connection"`

	// AutoExport queues the export as soon as a close or disconnected event
	// arrives, the way a host shutdown hook would.
	AutoExport   bool   `json:"auto_export"`
	RecordingURL string `json:"recording_url"`
}

// CreateSessionResponse carries the id to use for all later calls.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// EndSessionRequest ends a session explicitly.
type EndSessionRequest struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// SendRequest exports a session to the analytics endpoint.
type SendRequest struct {
	RecordingURL   string                   `json:"recording_url"`
	TranscriptJSON []export.TranscriptEntry `json:"transcript_json"`
	ForceEnd       *bool                    `json:"force_end"`

	// Async queues the export on the worker pool and answers 202.
	Async bool `json:"async"`
}

// SessionList is the response of GET /v1/sessions.
type SessionList struct {
	Active []string `json:"active"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	id := s.startSession(req)
	s.stats.add(statSessionsStarted, 1)
	return c.Status(fiber.StatusCreated).JSON(CreateSessionResponse{SessionID: id})
}

// startSession observes a new session fed through this server.
func (s *Server) startSession(req CreateSessionRequest) string {
	opts := []observe.SessionOption{observe.WithMetadata(req.Metadata)}
	if req.AgentID != "" {
		opts = append(opts, observe.WithAgentID(req.AgentID))
	}
	if req.Connection != nil {
		opts = append(opts, observe.WithConnection(*req.Connection))
	}

	em := agentsession.NewEmitter()
	id := s.observer.StartSession(em, opts...)

	// Registered after StartSession so the registry has ended the session by
	// the time the export runs. The hook queues at most one export even though
	// a session usually emits both events.
	if req.AutoExport {
		hook := s.observer.ShutdownHook(id, observe.ExportOptions{RecordingURL: req.RecordingURL})
		em.On(agentsession.KindClose, func(agentsession.Event) { hook() })
		em.On(agentsession.KindDisconnected, func(agentsession.Event) { hook() })
	}

	s.mu.Lock()
	s.emitters[id] = em
	s.mu.Unlock()
	return id
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	active := s.observer.Registry().Active()
	if active == nil {
		active = []string{}
	}
	return c.JSON(SessionList{Active: active})
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	snap, ok := s.observer.Registry().Snapshot(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}
	return c.JSON(snap)
}

func (s *Server) handleIngestEvent(c *fiber.Ctx) error {
	em, ok := s.emitter(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}

	var env agentsession.Envelope
	if err := json.Unmarshal(c.Body(), &env); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid event body")
	}

	ev, err := env.Decode()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	em.Emit(ev)
	s.stats.add(statEventsIngested, 1)
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	if !s.observer.MarkConnected(c.Params("id")) {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleEndSession(c *fiber.Ctx) error {
	var req EndSessionRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	if req.Status == "" {
		req.Status = export.StatusCompleted
	}

	rec, ok := s.observer.Registry().End(c.Params("id"), req.Status, req.Error)
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}
	return c.JSON(rec)
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	rec, ok := s.observer.Registry().Export(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}
	return c.JSON(rec)
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	text, ok := s.observer.Registry().Transcript(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text)
}

func (s *Server) handleSend(c *fiber.Ctx) error {
	id := c.Params("id")

	var req SendRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	if !s.observer.Registry().Has(id) {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}

	opts := observe.ExportOptions{
		RecordingURL:         req.RecordingURL,
		AdditionalTranscript: req.TranscriptJSON,
		ForceEnd:             req.ForceEnd,
	}

	if req.Async {
		if !s.observer.ExportAsync(id, opts) {
			return errorJSON(c, fiber.StatusServiceUnavailable, "export queue full")
		}
		return c.SendStatus(fiber.StatusAccepted)
	}

	res := s.observer.Export(c.UserContext(), id, opts)
	if res.Success {
		s.stats.add(statExportsDelivered, 1)
		return c.JSON(res)
	}
	if res.Error == observe.ErrExportInProgress {
		return c.Status(fiber.StatusConflict).JSON(res)
	}

	s.stats.add(statExportsFailed, 1)
	return c.Status(fiber.StatusBadGateway).JSON(res)
}
