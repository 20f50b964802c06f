package capture

import (
	"fmt"
	"strings"
	"sync"
)

// Update is a partial camera change. Nil fields keep their current value;
// Preset is applied before the explicit fields.
type Update struct {
	Preset  *string  `json:"preset,omitempty"`
	Width   *int     `json:"width,omitempty"`
	Height  *int     `json:"height,omitempty"`
	FPS     *float64 `json:"fps,omitempty"`
	Quality *int     `json:"quality,omitempty"`
}

// Apply returns cfg with u applied. The device is never changed.
func (u Update) Apply(cfg Config) (Config, error) {
	if u.Preset != nil {
		p, ok := presets[*u.Preset]
		if !ok {
			return cfg, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, *u.Preset)
		}
		cfg.Width, cfg.Height, cfg.FPS = p.width, p.height, p.fps
	}
	if u.Width != nil {
		cfg.Width = *u.Width
	}
	if u.Height != nil {
		cfg.Height = *u.Height
	}
	if u.FPS != nil {
		cfg.FPS = *u.FPS
	}
	if u.Quality != nil {
		cfg.Quality = *u.Quality
	}
	return cfg, nil
}

// Manager holds the live camera configuration for the dashboard.
type Manager struct {
	mu     sync.Mutex
	config Config

	// OnConfigChange applies a new configuration to the open camera. When it
	// fails the previous configuration is kept.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// SetConfig validates cfg, applies it through OnConfigChange and stores it.
// Validation errors match ErrInvalidConfig.
func (m *Manager) SetConfig(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(cfg)
}

// Update applies u on top of the current configuration. The read, the
// change callback and the store happen under one lock, so concurrent
// updates never overwrite each other.
func (m *Manager) Update(u Update) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := u.Apply(m.config)
	if err != nil {
		return m.config, err
	}
	if err := m.setLocked(cfg); err != nil {
		return m.config, err
	}
	return cfg, nil
}

func (m *Manager) setLocked(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	if m.OnConfigChange != nil {
		if err := m.OnConfigChange(cfg); err != nil {
			return fmt.Errorf("capture: apply config: %w", err)
		}
	}
	m.config = cfg
	return nil
}
