package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/papercomputeco/voxtap/pkg/agentsession"
)

const emitterLocal = "emitter"

// requireStreamUpgrade only lets websocket upgrades for live sessions through.
func (s *Server) requireStreamUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	em, ok := s.emitter(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "session not found")
	}
	c.Locals(emitterLocal, em)
	return c.Next()
}

// handleStream reads one event envelope per text frame until the client
// closes the connection. Malformed frames are answered with an error frame
// and otherwise ignored.
func (s *Server) handleStream(conn *websocket.Conn) {
	id := conn.Params("id")
	em, ok := conn.Locals(emitterLocal).(*agentsession.Emitter)
	if !ok {
		return
	}

	log := s.logger.With("session_id", id)
	log.Debug("event stream opened")
	defer log.Debug("event stream closed")

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("event stream read failed", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var env agentsession.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			_ = conn.WriteJSON(ErrorResponse{Error: "invalid event body"})
			continue
		}

		ev, err := env.Decode()
		if err != nil {
			_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
			continue
		}

		em.Emit(ev)
		s.stats.add(statEventsIngested, 1)
	}
}
