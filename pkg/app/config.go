// Package app wires the trashcam components together and owns their lifecycle.
package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-trashcam/internal/config"
	"github.com/teslashibe/go-trashcam/pkg/capture"
	"github.com/teslashibe/go-trashcam/pkg/classifier"
	"github.com/teslashibe/go-trashcam/pkg/features"
)

// ErrInvalidConfig is matched by every configuration validation error.
var ErrInvalidConfig = errors.New("app: invalid configuration")

// Size is a frame size in pixels.
type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Config holds all configuration for the trashcam application.
// Flag parsing is done in cmd/trashcam; this struct is data only.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Camera
	DevicePath   string  `yaml:"device" json:"device"`
	CameraPreset string  `yaml:"camera_preset" json:"camera_preset,omitempty"`
	CameraWidth  int     `yaml:"camera_width" json:"camera_width,omitempty"`
	CameraHeight int     `yaml:"camera_height" json:"camera_height,omitempty"`
	CameraFPS    float64 `yaml:"camera_fps" json:"camera_fps,omitempty"`

	// Feature extraction
	DownsampleSize               Size    `yaml:"downsample_size" json:"downsample_size"`
	Threshold                    float64 `yaml:"threshold" json:"threshold"`
	SimplificationToleranceRatio float64 `yaml:"simplification_tolerance_ratio" json:"simplification_tolerance_ratio"`

	// Classification
	FeatureFilePath   string        `yaml:"feature_file" json:"feature_file"`
	ClassifierCommand []string      `yaml:"classifier_command" json:"classifier_command"`
	ClassifierDir     string        `yaml:"classifier_dir" json:"classifier_dir,omitempty"`
	ClassifierURL     string        `yaml:"classifier_url" json:"classifier_url,omitempty"`
	ClassifierTimeout time.Duration `yaml:"classifier_timeout" json:"classifier_timeout"`
	Async             bool          `yaml:"async" json:"async"`

	// Presentation
	Headless    bool   `yaml:"headless" json:"headless"`
	WindowTitle string `yaml:"window_title" json:"window_title"`
	QuitKey     string `yaml:"quit_key" json:"quit_key"`

	// Dashboard
	WebAddr       string `yaml:"web_addr" json:"web_addr,omitempty"`
	FrameInterval int    `yaml:"frame_interval" json:"frame_interval"`
	JPEGQuality   int    `yaml:"jpeg_quality" json:"jpeg_quality"`

	// Journal
	JournalPath string `yaml:"journal" json:"journal,omitempty"`
	DatabaseURL string `yaml:"database_url" json:"database_url,omitempty"`
}

// DefaultConfig returns the configuration of the classic demo: camera 0,
// features.json in the working directory and the Julia classifier.
func DefaultConfig() Config {
	fc := features.DefaultConfig()
	return Config{
		LogLevel:                     "info",
		DevicePath:                   "0",
		DownsampleSize:               Size{Width: fc.Width, Height: fc.Height},
		Threshold:                    fc.Threshold,
		SimplificationToleranceRatio: fc.ToleranceRatio,
		FeatureFilePath:              features.DefaultFile,
		ClassifierCommand:            append([]string(nil), classifier.DefaultCommand...),
		WindowTitle:                  capture.DefaultWindowTitle,
		QuitKey:                      "q",
		FrameInterval:                3,
		JPEGQuality:                  80,
	}
}

// LoadFile reads a YAML config file on top of DefaultConfig.
// Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("app: read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("app: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvConfig applies TRASHCAM_* environment overrides.
// Call this after loading the file and before applying flags.
func (c *Config) LoadEnvConfig() {
	c.LogLevel = config.String("LOG_LEVEL", c.LogLevel)

	c.DevicePath = config.String("DEVICE", c.DevicePath)
	c.CameraPreset = config.String("CAMERA_PRESET", c.CameraPreset)
	c.CameraWidth = config.Int("CAMERA_WIDTH", c.CameraWidth)
	c.CameraHeight = config.Int("CAMERA_HEIGHT", c.CameraHeight)
	c.CameraFPS = config.Float("CAMERA_FPS", c.CameraFPS)

	c.DownsampleSize.Width = config.Int("DOWNSAMPLE_WIDTH", c.DownsampleSize.Width)
	c.DownsampleSize.Height = config.Int("DOWNSAMPLE_HEIGHT", c.DownsampleSize.Height)
	c.Threshold = config.Float("THRESHOLD", c.Threshold)
	c.SimplificationToleranceRatio = config.Float("TOLERANCE_RATIO", c.SimplificationToleranceRatio)

	c.FeatureFilePath = config.String("FEATURE_FILE", c.FeatureFilePath)
	c.ClassifierCommand = config.Fields("CLASSIFIER_COMMAND", c.ClassifierCommand)
	c.ClassifierDir = config.String("CLASSIFIER_DIR", c.ClassifierDir)
	c.ClassifierURL = config.String("CLASSIFIER_URL", c.ClassifierURL)
	c.ClassifierTimeout = config.Duration("CLASSIFIER_TIMEOUT", c.ClassifierTimeout)
	c.Async = config.Bool("ASYNC", c.Async)

	c.Headless = config.Bool("HEADLESS", c.Headless)
	c.WebAddr = config.String("WEB_ADDR", c.WebAddr)
	c.JournalPath = config.String("JOURNAL", c.JournalPath)
	c.DatabaseURL = config.String("DATABASE_URL", c.DatabaseURL)
}

// Validate checks the configuration. Errors match ErrInvalidConfig.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DevicePath) == "" {
		return &ConfigError{Field: "DevicePath", Message: "camera device is required"}
	}
	if c.CameraPreset != "" && capture.GetPreset(c.CameraPreset) == nil {
		return &ConfigError{Field: "CameraPreset", Message: fmt.Sprintf("unknown camera preset %q (want one of %s)",
			c.CameraPreset, strings.Join(capture.PresetNames(), ", "))}
	}
	cc := c.CaptureConfig()
	if errs := cc.Validate(); len(errs) > 0 {
		return &ConfigError{Field: "Camera", Message: strings.Join(errs, "; ")}
	}
	if err := c.FeaturesConfig().Validate(); err != nil {
		return &ConfigError{Field: "Features", Message: err.Error()}
	}
	if c.FeatureFilePath == "" {
		return &ConfigError{Field: "FeatureFilePath", Message: "feature file path is required"}
	}
	if len(c.ClassifierCommand) == 0 && c.ClassifierURL == "" {
		return &ConfigError{Field: "ClassifierCommand", Message: "a classifier command or URL is required"}
	}
	if c.ClassifierURL != "" {
		u, err := url.Parse(c.ClassifierURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigError{Field: "ClassifierURL", Message: fmt.Sprintf("classifier URL %q must be an http(s) URL", c.ClassifierURL)}
		}
	}
	if c.ClassifierTimeout < 0 {
		return &ConfigError{Field: "ClassifierTimeout", Message: "classifier timeout must not be negative"}
	}
	if utf8.RuneCountInString(c.QuitKey) != 1 {
		return &ConfigError{Field: "QuitKey", Message: fmt.Sprintf("quit key must be a single character, got %q", c.QuitKey)}
	}
	// HighGUI reports keys as a single byte.
	if r := c.QuitRune(); r > 0xFF {
		return &ConfigError{Field: "QuitKey", Message: fmt.Sprintf("quit key %q is outside the 8-bit key range", c.QuitKey)}
	}
	if c.FrameInterval < 1 {
		return &ConfigError{Field: "FrameInterval", Message: "frame interval must be at least 1"}
	}
	return nil
}

// CaptureConfig derives the camera configuration, applying the preset first.
func (c Config) CaptureConfig() capture.Config {
	cc := capture.DefaultConfig()
	if p := capture.GetPreset(c.CameraPreset); p != nil {
		cc = *p
	}
	cc.Device = c.DevicePath
	if c.CameraWidth > 0 {
		cc.Width = c.CameraWidth
	}
	if c.CameraHeight > 0 {
		cc.Height = c.CameraHeight
	}
	if c.CameraFPS > 0 {
		cc.FPS = c.CameraFPS
	}
	if c.JPEGQuality > 0 {
		cc.Quality = c.JPEGQuality
	}
	return cc
}

// FeaturesConfig derives the extractor configuration.
func (c Config) FeaturesConfig() features.Config {
	return features.Config{
		Width:          c.DownsampleSize.Width,
		Height:         c.DownsampleSize.Height,
		Threshold:      c.Threshold,
		ToleranceRatio: c.SimplificationToleranceRatio,
	}
}

// QuitRune returns the quit key as a rune.
func (c Config) QuitRune() rune {
	r, _ := utf8.DecodeRuneInString(c.QuitKey)
	return r
}

// Redacted returns a copy safe to expose, with credentials masked in the
// database DSN, the camera device and the classifier URL.
func (c Config) Redacted() Config {
	c.DatabaseURL = redactSecret(c.DatabaseURL)
	c.DevicePath = redactSecret(c.DevicePath)
	c.ClassifierURL = redactSecret(c.ClassifierURL)
	c.ClassifierCommand = append([]string(nil), c.ClassifierCommand...)
	return c
}

// passwordPair matches password=... in key=value connection strings, quoted
// or bare.
var passwordPair = regexp.MustCompile(`(?i)(password\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// redactSecret masks the password of a URL or key=value connection string.
func redactSecret(s string) string {
	if s == "" {
		return s
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "<redacted>"
		}
		return u.Redacted()
	}
	return passwordPair.ReplaceAllString(s, "${1}xxxxx")
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "app: " + e.Message
}

// Is reports ConfigError as ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}
