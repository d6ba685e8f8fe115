package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-rescue/pkg/hub"
)

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"cycle":  s.State().Cycle,
	})
}

// handleStatus returns the rover's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.State())
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

// handleLastSurvey returns the most recent survey report
func (s *Server) handleLastSurvey(c *fiber.Ctx) error {
	s.surveyMu.RLock()
	report := s.lastSurvey
	s.surveyMu.RUnlock()

	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no survey yet"})
	}
	return c.JSON(report)
}

// handleCommand posts a single-key command to the control loop
func (s *Server) handleCommand(c *fiber.Ctx) error {
	key := c.Params("key")
	if len(key) != 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "command must be a single key"})
	}
	if s.mailbox == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "commands not accepted"})
	}
	if err := s.mailbox.Post(key[0]); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}

	s.addLog("command", key)
	return c.JSON(fiber.Map{"status": "queued", "key": key})
}

// handleLogsWS streams log entries, starting with the retained backlog
func (s *Server) handleLogsWS(c *websocket.Conn) {
	for _, entry := range s.Logs() {
		if err := c.WriteJSON(entry); err != nil {
			return
		}
	}
	if sub := hub.Subscribe(s.logHub, c); sub != nil {
		sub.Serve()
	}
}

// handleStatusWS streams state updates. The status feed replays the latest
// state to each new subscriber.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if sub := hub.Subscribe(s.statusHub, c); sub != nil {
		sub.Serve()
	}
}
