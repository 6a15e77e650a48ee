package api

import (
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/papercomputeco/voxtap/pkg/agentsession"
	"github.com/papercomputeco/voxtap/pkg/logger"
	"github.com/papercomputeco/voxtap/pkg/observe"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the API server for ingesting and inspecting voice sessions.
type Server struct {
	config   Config
	observer *observe.Observer
	logger   *slog.Logger
	app      *fiber.App
	stats    *stats

	mu       sync.Mutex
	emitters map[string]*agentsession.Emitter
}

// NewServer creates a new API server. The observer is injected so the host
// process owns its lifecycle.
func NewServer(config Config, observer *observe.Observer, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		observer: observer,
		logger:   logger.OrNop(log),
		app:      app,
		stats:    newStats(),
		emitters: make(map[string]*agentsession.Emitter),
	}
	observer.Registry().OnCleanup(s.dropEmitter)

	app.Get("/ping", s.handlePing)
	app.Get("/debug/vars", s.handleDebugVars())

	v1 := app.Group("/v1")

	v1.Post("/sessions", s.handleCreateSession)
	v1.Get("/sessions", s.handleListSessions)
	v1.Get("/sessions/:id", s.handleGetSession)
	v1.Post("/sessions/:id/events", s.handleIngestEvent)
	v1.Post("/sessions/:id/connect", s.handleConnect)
	v1.Post("/sessions/:id/end", s.handleEndSession)
	v1.Get("/sessions/:id/export", s.handleExport)
	v1.Get("/sessions/:id/transcript", s.handleTranscript)
	v1.Post("/sessions/:id/send", s.handleSend)

	v1.Get("/sessions/:id/stream", s.requireStreamUpgrade, websocket.New(s.handleStream))

	v1.Get("/calls", s.handleListCalls)
	v1.Get("/calls/:call_id", s.handleGetCall)
	v1.Post("/calls/:call_id/resend", s.handleResendCall)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// emitter returns the event emitter of a live session.
func (s *Server) emitter(id string) (*agentsession.Emitter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	em, ok := s.emitters[id]
	return em, ok
}

// dropEmitter runs when the registry removes a session.
func (s *Server) dropEmitter(id string) {
	s.mu.Lock()
	delete(s.emitters, id)
	s.mu.Unlock()
}

func (s *Server) emitterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.emitters)
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}
