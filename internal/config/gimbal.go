// Package config provides configuration helpers for go-gimbal commands.
package config

import (
	"os"
	"strconv"
)

// Defaults used when neither a flag nor an environment variable is set.
const (
	DefaultSerialPort   = "/dev/ttyACM0"
	DefaultBaudRate     = 115200
	DefaultCameraDevice = 0
	DefaultHTTPPort     = "8080"
)

// SerialPort returns the gimbal serial device from GIMBAL_SERIAL.
// Falls back to the provided default if not set.
func SerialPort(defaultPort string) string {
	if p := os.Getenv("GIMBAL_SERIAL"); p != "" {
		return p
	}
	return defaultPort
}

// BaudRate returns the serial baud rate from GIMBAL_BAUD.
// Invalid or non-positive values fall back to the default.
func BaudRate(defaultBaud int) int {
	return envInt("GIMBAL_BAUD", defaultBaud)
}

// CameraDevice returns the capture device index from GIMBAL_CAMERA.
func CameraDevice(defaultDevice int) int {
	if v := os.Getenv("GIMBAL_CAMERA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return defaultDevice
}

// HTTPPort returns the operator API port from GIMBAL_HTTP_PORT.
func HTTPPort(defaultPort string) string {
	if p := os.Getenv("GIMBAL_HTTP_PORT"); p != "" {
		return p
	}
	return defaultPort
}

// LogLevel returns the log level from LOG_LEVEL, defaulting to info.
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
