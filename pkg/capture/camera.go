package capture

import (
	"fmt"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Source yields frames. Read reports false once no further frame is available.
type Source interface {
	Read(frame *gocv.Mat) bool
	Close() error
}

// Camera is a Source backed by an OpenCV video capture device.
// Read and Apply may be called from different goroutines.
type Camera struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	config Config
	closed bool
}

// OpenCamera opens the configured device and applies the requested
// resolution and frame rate.
func OpenCamera(cfg Config) (*Camera, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, ok := cfg.Index(); ok {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrOpenCamera, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w %q", ErrOpenCamera, cfg.Device)
	}

	c := &Camera{vc: vc, config: cfg}
	c.applyLocked(cfg)
	return c, nil
}

// Read grabs the next frame into frame.
func (c *Camera) Read(frame *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return c.vc.Read(frame)
}

// Apply sets resolution and frame rate on the open device.
// It is suitable as a Manager.OnConfigChange callback.
func (c *Camera) Apply(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("capture: camera closed")
	}
	c.applyLocked(cfg)
	return nil
}

func (c *Camera) applyLocked(cfg Config) {
	if cfg.Width > 0 {
		c.vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		c.vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		c.vc.Set(gocv.VideoCaptureFPS, cfg.FPS)
	}
	c.config = cfg
}

// Size returns the frame size reported by the device.
func (c *Camera) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, 0
	}
	return int(c.vc.Get(gocv.VideoCaptureFrameWidth)), int(c.vc.Get(gocv.VideoCaptureFrameHeight))
}

// Config returns the last applied configuration.
func (c *Camera) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Close releases the device. It is safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.vc.Close()
}
