// Package capture provides the camera frame source, the display window and
// the label overlay used by the classification loop.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrOpenCamera is returned when the capture device cannot be opened.
	ErrOpenCamera = errors.New("capture: cannot open camera")

	// ErrInvalidConfig is returned for settings outside the supported ranges.
	ErrInvalidConfig = errors.New("capture: invalid config")
)

// Config holds camera configuration parameters.
// Zero Width, Height or FPS leaves the device default in place.
type Config struct {
	// Device is a camera index such as "0", or a video file or stream URL.
	Device string `json:"device" yaml:"device"`

	Width  int     `json:"width" yaml:"width"`   // Requested frame width in pixels
	Height int     `json:"height" yaml:"height"` // Requested frame height in pixels
	FPS    float64 `json:"fps" yaml:"fps"`       // Requested frame rate

	Quality int `json:"quality" yaml:"quality"` // JPEG quality 1-100 for streamed frames
}

// Capture limits
const (
	MaxWidth  = 4096
	MaxHeight = 2160
	MaxFPS    = 120
)

// DefaultConfig opens the first camera at its native resolution.
func DefaultConfig() Config {
	return Config{
		Device:  "0",
		Quality: 80,
	}
}

// Index returns the device as a camera index, if it is one.
func (c Config) Index() (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(c.Device))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if strings.TrimSpace(c.Device) == "" {
		errs = append(errs, "device must not be empty")
	}
	if c.Width != 0 && (c.Width < 160 || c.Width > MaxWidth) {
		errs = append(errs, fmt.Sprintf("width must be 0 (device default) or between 160 and %d", MaxWidth))
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > MaxHeight) {
		errs = append(errs, fmt.Sprintf("height must be 0 (device default) or between 120 and %d", MaxHeight))
	}
	if c.FPS < 0 || c.FPS > MaxFPS {
		errs = append(errs, fmt.Sprintf("fps must be 0 (device default) or between 1 and %d", MaxFPS))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, "quality must be between 1 and 100")
	}

	return errs
}
