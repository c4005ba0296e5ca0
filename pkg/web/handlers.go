package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-gimbal/pkg/camera"
	"github.com/teslashibe/go-gimbal/pkg/gimbal"
	"github.com/teslashibe/go-gimbal/pkg/tracking"
)

// errorHandler renders every error as {"error": "..."}
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, gimbal.ErrLaserBusy), errors.Is(err, gimbal.ErrTrackingActive):
		code = fiber.StatusConflict
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// handleStatus returns the combined status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// TrackingRequest is the request body for switching modes
type TrackingRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleTracking switches between tracking and manual mode
func (s *Server) handleTracking(c *fiber.Ctx) error {
	var req TrackingRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return fiber.NewError(fiber.StatusBadRequest, `expected {"enabled": true|false}`)
	}

	s.gimbal.SetTracking(*req.Enabled)
	return c.JSON(s.gimbal.Status())
}

// handleFire requests a manual laser shot
func (s *Server) handleFire(c *fiber.Ctx) error {
	if err := s.gimbal.Fire(); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"fired": true})
}

// handleRecenter moves the gimbal to center
func (s *Server) handleRecenter(c *fiber.Ctx) error {
	if err := s.gimbal.Recenter(); err != nil {
		return err
	}
	return c.JSON(s.gimbal.Status())
}

// handleJoystick stores one joystick sample
func (s *Server) handleJoystick(c *fiber.Ctx) error {
	var j gimbal.Joystick
	if err := c.BodyParser(&j); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	s.gimbal.SetJoystick(j)
	return c.JSON(j.Normalize())
}

// handleGetTuning returns the tracking tuning parameters
func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	if s.tracker == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "tracking not available")
	}
	return c.JSON(s.tracker.GetTuningParams())
}

// handleSetTuning applies non-zero tuning parameters
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	if s.tracker == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "tracking not available")
	}

	var params tracking.TuningParams
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	s.tracker.SetTuningParams(params)
	return c.JSON(s.tracker.GetTuningParams())
}

// handleGetCamera returns the camera config and capabilities
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "camera not available")
	}
	return c.JSON(fiber.Map{
		"config":       s.cameras.GetConfigJSON(),
		"capabilities": camera.Capabilities(),
	})
}

// handleSetCamera applies a partial camera config or a preset
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "camera not available")
	}

	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.cameras.UpdateConfig(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.cameras.GetConfigJSON())
}

// handlePorts lists serial devices for choosing the gimbal port
func (s *Server) handlePorts(c *fiber.Ctx) error {
	ports, err := gimbal.ListPorts()
	if err != nil {
		return err
	}
	if ports == nil {
		ports = []string{}
	}
	return c.JSON(fiber.Map{"ports": ports})
}
