// Package features computes the per-frame visual features used for trash
// classification: mean HSV color, polygon vertex count of the largest outline,
// and mean absolute Laplacian texture.
package features

import (
	"errors"
	"fmt"
)

// ErrEmptyFrame is returned when an extractor is handed an empty Mat.
var ErrEmptyFrame = errors.New("features: empty frame")

// Set is the feature record handed to a classifier.
// The JSON layout is the contract with external classifier processes.
type Set struct {
	Color   [3]float64 `json:"color"`   // Mean H, S, V
	Shape   int        `json:"shape"`   // Vertex count of the largest contour, 0 if none
	Texture float64    `json:"texture"` // Mean |Laplacian|
}

// Vector flattens the set into [h, s, v, shape, texture].
func (s Set) Vector() []float32 {
	return []float32{
		float32(s.Color[0]),
		float32(s.Color[1]),
		float32(s.Color[2]),
		float32(s.Shape),
		float32(s.Texture),
	}
}

// String implements fmt.Stringer.
func (s Set) String() string {
	return fmt.Sprintf("color=(%.1f,%.1f,%.1f) shape=%d texture=%.2f",
		s.Color[0], s.Color[1], s.Color[2], s.Shape, s.Texture)
}

// Config holds extractor parameters.
type Config struct {
	Width          int     // Downsample width in pixels
	Height         int     // Downsample height in pixels
	Threshold      float64 // Binary threshold for shape detection (0-255)
	ToleranceRatio float64 // Polygon simplification epsilon as a fraction of the perimeter
}

// DefaultConfig returns the parameters the classifier models were built against.
func DefaultConfig() Config {
	return Config{
		Width:          320,
		Height:         240,
		Threshold:      127,
		ToleranceRatio: 0.02,
	}
}

// Validate checks that the config values are usable.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("features: downsample size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Threshold < 0 || c.Threshold > 255 {
		return fmt.Errorf("features: threshold must be between 0 and 255, got %v", c.Threshold)
	}
	if c.ToleranceRatio <= 0 || c.ToleranceRatio >= 1 {
		return fmt.Errorf("features: tolerance ratio must be in (0, 1), got %v", c.ToleranceRatio)
	}
	return nil
}
