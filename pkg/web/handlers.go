package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-trashcam/pkg/capture"
	"github.com/teslashibe/go-trashcam/pkg/hub"
	"github.com/teslashibe/go-trashcam/pkg/pipeline"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	pipeline.Stats
	ResultClients int `json:"result_clients"`
	CameraClients int `json:"camera_clients"`
}

// handleStatus returns pipeline counters and client counts.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	statsFn := s.stats
	s.mu.RUnlock()

	var stats pipeline.Stats
	if statsFn != nil {
		stats = statsFn()
	} else {
		stats.State = pipeline.StateIdle.String()
	}

	return c.JSON(StatusResponse{
		Stats:         stats,
		ResultClients: s.resultsHub.ClientCount(),
		CameraClients: s.cameraHub.ClientCount(),
	})
}

// handleResult returns the most recent classification.
func (s *Server) handleResult(c *fiber.Ctx) error {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no result yet",
		})
	}
	return c.JSON(latest)
}

// handleConfig returns the effective application configuration.
func (s *Server) handleConfig(c *fiber.Ctx) error {
	s.mu.RLock()
	view := s.configView
	s.mu.RUnlock()

	if view == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(view)
}

// handleGetCamera returns the camera configuration.
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	s.mu.RLock()
	m := s.camera
	s.mu.RUnlock()

	if m == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "camera not configured",
		})
	}
	return c.JSON(m.GetConfig())
}

// handleUpdateCamera applies a partial camera update such as
// {"preset": "720p"} or {"width": 640, "height": 480}.
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	s.mu.RLock()
	m := s.camera
	s.mu.RUnlock()

	if m == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "camera not configured",
		})
	}

	var u capture.Update
	if err := c.BodyParser(&u); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body: " + err.Error(),
		})
	}

	cfg, err := m.Update(u)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, capture.ErrInvalidConfig) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.logger.Info("camera config updated", "width", cfg.Width, "height", cfg.Height, "fps", cfg.FPS, "quality", cfg.Quality)
	return c.JSON(cfg)
}

// handleResultsWS streams results as JSON text messages.
func (s *Server) handleResultsWS(c *websocket.Conn) {
	serve(s.resultsHub, c)
}

// handleCameraWS streams annotated frames as binary JPEG messages.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	serve(s.cameraHub, c)
}

func serve(h *hub.Hub, c *websocket.Conn) {
	client := hub.NewClient(h, c)
	if client == nil {
		c.Close()
		return
	}
	client.Run()
}
