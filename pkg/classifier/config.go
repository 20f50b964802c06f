package classifier

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-trashcam/pkg/features"
)

// DefaultCommand runs the Julia classification script in the working directory.
var DefaultCommand = []string{"julia", "classify_trash.jl"}

// Config holds classifier configuration.
type Config struct {
	// Process classifier
	Command     []string // Program and arguments
	FeatureFile string   // Path the features are written to before each run
	Dir         string   // Working directory for the process; empty inherits ours

	// HTTP classifier
	URL string

	// Timeout bounds one classification. Zero waits indefinitely.
	Timeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring classifiers.
type Option func(*Config)

// WithCommand sets the classifier program and its arguments.
func WithCommand(cmd ...string) Option {
	return func(c *Config) { c.Command = cmd }
}

// WithFeatureFile sets the feature file path.
func WithFeatureFile(path string) Option {
	return func(c *Config) { c.FeatureFile = path }
}

// WithDir sets the working directory of the classifier process.
func WithDir(dir string) Option {
	return func(c *Config) { c.Dir = dir }
}

// WithURL sets the classifier service endpoint.
func WithURL(url string) Option {
	return func(c *Config) { c.URL = url }
}

// WithTimeout bounds each classification.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig runs the Julia script with no timeout, matching a blocking
// per-frame classification.
func DefaultConfig() *Config {
	return &Config{
		Command:     append([]string(nil), DefaultCommand...),
		FeatureFile: features.DefaultFile,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the process settings are usable.
func (c *Config) Validate() error {
	if len(c.Command) == 0 || c.Command[0] == "" {
		return fmt.Errorf("classifier: command required")
	}
	if c.FeatureFile == "" {
		return fmt.Errorf("classifier: feature file required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("classifier: timeout must not be negative")
	}
	return nil
}
