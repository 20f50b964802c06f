// Package web serves the live classification dashboard: JSON status
// endpoints plus websocket feeds of results and annotated camera frames.
package web

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-trashcam/pkg/capture"
	"github.com/teslashibe/go-trashcam/pkg/hub"
	"github.com/teslashibe/go-trashcam/pkg/pipeline"
)

// Config holds dashboard settings.
type Config struct {
	Addr string // Listen address, e.g. ":8090"

	// FrameInterval streams every Nth frame to camera clients.
	FrameInterval int

	// JPEGQuality is used when the camera manager is not set.
	JPEGQuality int

	Logger *slog.Logger
}

// DefaultConfig listens on :8090 and streams every third frame.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8090",
		FrameInterval: 3,
		JPEGQuality:   80,
		Logger:        slog.Default(),
	}
}

// Server is the web dashboard. It implements pipeline.Observer.
type Server struct {
	app    *fiber.App
	config Config
	logger *slog.Logger

	resultsHub *hub.Hub
	cameraHub  *hub.Hub

	mu         sync.RWMutex
	latest     *pipeline.Result
	stats      func() pipeline.Stats
	configView any
	camera     *capture.Manager

	frames atomic.Uint64
	cancel context.CancelFunc
}

// NewServer creates the dashboard and registers its routes.
func NewServer(cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	logger := cfg.Logger.With("component", "web")

	s := &Server{
		config:     cfg,
		logger:     logger,
		resultsHub: hub.New("results", cfg.Logger),
		cameraHub:  hub.New("camera", cfg.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "trashcam",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/result", s.handleResult)
	api.Get("/config", s.handleConfig)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/results", websocket.New(s.handleResultsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetStats sets the function backing /api/status.
func (s *Server) SetStats(fn func() pipeline.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = fn
}

// SetConfigView sets the value served by /api/config.
func (s *Server) SetConfigView(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configView = v
}

// SetCameraManager enables the /api/camera endpoints.
func (s *Server) SetCameraManager(m *capture.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = m
}

// Start runs the hubs and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.resultsHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	s.logger.Info("web dashboard listening", "addr", s.config.Addr)
	return s.app.Listen(s.config.Addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Shutdown stops the hubs and the HTTP server.
func (s *Server) Shutdown() error {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	return s.app.Shutdown()
}

// OnResult stores the latest result and pushes it to result clients.
func (s *Server) OnResult(res pipeline.Result) {
	s.mu.Lock()
	s.latest = &res
	s.mu.Unlock()

	if err := s.resultsHub.BroadcastJSON(res, true); err != nil {
		s.logger.Warn("failed to encode result", "error", err)
	}
}

// OnFrame streams every FrameInterval-th frame as JPEG to camera clients.
func (s *Server) OnFrame(frame gocv.Mat) {
	n := s.frames.Add(1)
	if (n-1)%uint64(s.config.FrameInterval) != 0 || s.cameraHub.ClientCount() == 0 {
		return
	}
	if frame.Empty() {
		return
	}

	data, err := encodeJPEG(frame, s.jpegQuality())
	if err != nil {
		s.logger.Warn("failed to encode frame", "error", err)
		return
	}
	s.cameraHub.BroadcastFrame(data)
}

func (s *Server) jpegQuality() int {
	s.mu.RLock()
	m := s.camera
	s.mu.RUnlock()
	if m != nil {
		if q := m.GetConfig().Quality; q > 0 {
			return q
		}
	}
	return s.config.JPEGQuality
}

// encodeJPEG returns a Go-owned copy of the JPEG encoding of frame.
func encodeJPEG(frame gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
