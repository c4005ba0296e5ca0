// Package remote is a Go client for the gimbal operator API.
// It has no OpenCV dependency, so command-line tools stay pure Go.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-gimbal/internal/httpc"
	"github.com/teslashibe/go-gimbal/pkg/gimbal"
)

// TrackingStatus mirrors the daemon's tracking status
type TrackingStatus struct {
	Detected       bool     `json:"detected"`
	TargetDistance *float64 `json:"target_distance,omitempty"`
	Locked         bool     `json:"locked"`
	FPS            float64  `json:"fps"`
	StableFrames   int      `json:"stable_frames"`
	TriggerCounter int      `json:"trigger_counter"`
}

// CameraStatus mirrors the daemon's camera config
type CameraStatus struct {
	Device    int `json:"device"`
	Width     int `json:"width"`
	Height    int `json:"height"`
	Framerate int `json:"framerate"`
	Quality   int `json:"quality"`
}

// Status is the combined daemon status
type Status struct {
	Gimbal   gimbal.Status   `json:"gimbal"`
	Tracking *TrackingStatus `json:"tracking,omitempty"`
	Camera   *CameraStatus   `json:"camera,omitempty"`
	Time     time.Time       `json:"time"`
}

// Client talks to one gimbal daemon
type Client struct {
	BaseURL string // e.g. http://gimbal.local:8080
	HTTP    *http.Client
}

// New creates a client for the daemon at baseURL
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpc.NewClient(5 * time.Second),
	}
}

// Status fetches the combined status
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// SetTracking switches between tracking and manual mode
func (c *Client) SetTracking(ctx context.Context, enabled bool) (gimbal.Status, error) {
	var st gimbal.Status
	err := c.do(ctx, http.MethodPost, "/api/tracking", map[string]bool{"enabled": enabled}, &st)
	return st, err
}

// Fire requests a laser shot. Returns gimbal.ErrLaserBusy inside the busy
// window.
func (c *Client) Fire(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/fire", nil, nil)
}

// Recenter moves the gimbal to center. Returns gimbal.ErrTrackingActive in
// tracking mode.
func (c *Client) Recenter(ctx context.Context) (gimbal.Status, error) {
	var st gimbal.Status
	err := c.do(ctx, http.MethodPost, "/api/recenter", nil, &st)
	return st, err
}

// SetJoystick posts a single joystick sample. Use OpenJoystick for
// continuous control.
func (c *Client) SetJoystick(ctx context.Context, j gimbal.Joystick) error {
	return c.do(ctx, http.MethodPost, "/api/joystick", j, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	err := httpc.DoJSON(ctx, c.HTTP, method, c.BaseURL+path, body, out)
	return mapError(err)
}

// Known daemon errors are restored so callers can use errors.Is
var knownErrors = []error{
	gimbal.ErrLaserBusy,
	gimbal.ErrTrackingActive,
}

func mapError(err error) error {
	var se *httpc.StatusError
	if !errors.As(err, &se) {
		return err
	}
	for _, known := range knownErrors {
		if se.Message == known.Error() {
			return known
		}
	}
	return err
}

// wsURL converts the base URL into a websocket URL for path
func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}
