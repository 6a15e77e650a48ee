package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/voxtap/pkg/storage"
)

// CallList is the response of GET /v1/calls.
type CallList struct {
	Calls []*storage.Entry `json:"calls"`
}

func (s *Server) handleListCalls(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 0 {
		return errorJSON(c, fiber.StatusBadRequest, "limit must not be negative")
	}

	entries, err := s.observer.Archive().List(c.UserContext(), storage.ListOptions{
		AgentID: c.Query("agent_id"),
		Status:  c.Query("status"),
		Limit:   limit,
	})
	if err != nil {
		s.logger.Error("listing calls failed", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to list calls")
	}
	if entries == nil {
		entries = []*storage.Entry{}
	}
	return c.JSON(CallList{Calls: entries})
}

func (s *Server) handleGetCall(c *fiber.Ctx) error {
	entry, err := s.observer.Archive().Get(c.UserContext(), c.Params("call_id"))
	if err != nil {
		if storage.IsNotFound(err) {
			return errorJSON(c, fiber.StatusNotFound, "call not found")
		}
		s.logger.Error("reading call failed", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to read call")
	}
	return c.JSON(entry)
}

func (s *Server) handleResendCall(c *fiber.Ctx) error {
	res, err := s.observer.Resend(c.UserContext(), c.Params("call_id"))
	if err != nil {
		if storage.IsNotFound(err) {
			return errorJSON(c, fiber.StatusNotFound, "call not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "failed to read call")
	}
	if !res.Success {
		return c.Status(fiber.StatusBadGateway).JSON(res)
	}
	return c.JSON(res)
}
