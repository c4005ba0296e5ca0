package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrNotOpen is returned when reading from a closed capture.
	ErrNotOpen = errors.New("camera: not open")

	// ErrReadFailed is returned when the driver delivers no frame.
	ErrReadFailed = errors.New("camera: read failed")

	// ErrEmptyFrame is returned when the driver delivers an empty frame.
	ErrEmptyFrame = errors.New("camera: empty frame")
)

// Capture reads BGR frames from a V4L2/UVC camera through OpenCV.
type Capture struct {
	mu  sync.Mutex
	vc  *gocv.VideoCapture
	cfg Config
}

// Open opens the camera and applies cfg.
func Open(cfg Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device not available", cfg.Device)
	}

	c := &Capture{vc: vc}
	c.apply(cfg)
	return c, nil
}

// Read fills dst with the next frame.
func (c *Capture) Read(dst *gocv.Mat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return ErrNotOpen
	}
	if ok := c.vc.Read(dst); !ok {
		return ErrReadFailed
	}
	if dst.Empty() {
		return ErrEmptyFrame
	}
	return nil
}

// Apply changes capture properties at runtime. A device change reopens the
// camera. Suitable as a Manager.OnConfigChange callback.
func (c *Capture) Apply(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid camera config: %v", errs)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return ErrNotOpen
	}

	if cfg.Device != c.cfg.Device {
		vc, err := gocv.OpenVideoCapture(cfg.Device)
		if err != nil {
			return fmt.Errorf("open camera %d: %w", cfg.Device, err)
		}
		c.vc.Close()
		c.vc = vc
	}

	c.apply(cfg)
	return nil
}

// apply writes the capture properties. Caller holds mu or owns c.
func (c *Capture) apply(cfg Config) {
	c.vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	c.vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	c.vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	if cfg.Brightness != 0 {
		c.vc.Set(gocv.VideoCaptureBrightness, cfg.Brightness)
	}
	if cfg.Exposure > 0 {
		c.vc.Set(gocv.VideoCaptureExposure, cfg.Exposure)
	}
	c.cfg = cfg
}

// Config returns the configuration last applied.
func (c *Capture) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Close releases the device. Further reads return ErrNotOpen.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	return err
}
