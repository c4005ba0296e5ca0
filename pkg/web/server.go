// Package web provides the operator API: REST control endpoints and
// websocket streams for status, camera frames and joystick input.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-gimbal/internal/log"
	"github.com/teslashibe/go-gimbal/pkg/camera"
	"github.com/teslashibe/go-gimbal/pkg/gimbal"
	"github.com/teslashibe/go-gimbal/pkg/hub"
	"github.com/teslashibe/go-gimbal/pkg/tracking"
)

// Gimbal is the controller surface the API drives
type Gimbal interface {
	Status() gimbal.Status
	SetTracking(enabled bool)
	SetJoystick(j gimbal.Joystick)
	Fire() error
	Recenter() error
}

// Tracker is the tracking surface the API reads and tunes
type Tracker interface {
	Status() tracking.Status
	Config() tracking.Config
	GetTuningParams() tracking.TuningParams
	SetTuningParams(p tracking.TuningParams)
}

// Status is the combined snapshot served on /api/status and /ws/status
type Status struct {
	Gimbal   gimbal.Status    `json:"gimbal"`
	Tracking *tracking.Status `json:"tracking,omitempty"`
	Camera   *camera.Config   `json:"camera,omitempty"`
	Time     time.Time        `json:"time"`
}

// Server is the operator API server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	gimbal  Gimbal
	tracker Tracker         // nil without a camera
	cameras *camera.Manager // nil without a camera

	// Hubs for websocket fan-out
	statusHub   *hub.Hub
	cameraHub   *hub.Hub
	joystickHub *hub.Hub

	// StatusInterval is the status broadcast period
	StatusInterval time.Duration
}

// NewServer creates the API server. tracker and cameras may be nil.
func NewServer(addr string, g Gimbal, tracker Tracker, cameras *camera.Manager) *Server {
	s := &Server{
		addr:           addr,
		logger:         log.Component("web"),
		gimbal:         g,
		tracker:        tracker,
		cameras:        cameras,
		statusHub:      hub.New("status"),
		cameraHub:      hub.New("camera"),
		joystickHub:    hub.New("joystick"),
		StatusInterval: 100 * time.Millisecond,
	}
	s.joystickHub.OnMessage(s.handleJoystickMessage)
	s.joystickHub.OnLeave(s.handleJoystickLeave)

	app := fiber.New(fiber.Config{
		AppName:               "go-gimbal",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// CORS for browser clients on other origins
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/tracking", s.handleTracking)
	api.Post("/fire", s.handleFire)
	api.Post("/recenter", s.handleRecenter)
	api.Post("/joystick", s.handleJoystick)
	api.Get("/tuning", s.handleGetTuning)
	api.Post("/tuning", s.handleSetTuning)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)
	api.Get("/ports", s.handlePorts)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/joystick", websocket.New(s.handleJoystickWS))

	s.app = app
	return s
}

// App returns the fiber app (for tests)
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on the configured address and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. Hubs and the status broadcast
// loop live for the same duration.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.joystickHub.Run(ctx)
	go s.statusLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()

	fmt.Printf("🌐 Operator API: http://%s\n", ln.Addr())

	select {
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("shutdown", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Status builds the combined status snapshot
func (s *Server) Status() Status {
	st := Status{
		Gimbal: s.gimbal.Status(),
		Time:   time.Now(),
	}
	if s.tracker != nil {
		ts := s.tracker.Status()
		st.Tracking = &ts
	}
	if s.cameras != nil {
		cfg := s.cameras.GetConfig()
		st.Camera = &cfg
	}
	return st
}

// statusLoop broadcasts the status while anyone is listening
func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.broadcastStatus(); err != nil {
				s.logger.Warn("status broadcast failed", "err", err)
			}
		}
	}
}

// GetStatusHub returns the status hub for external use
func (s *Server) GetStatusHub() *hub.Hub {
	return s.statusHub
}

// GetCameraHub returns the camera hub for external use
func (s *Server) GetCameraHub() *hub.Hub {
	return s.cameraHub
}
