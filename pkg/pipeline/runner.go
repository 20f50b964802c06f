// Package pipeline runs the capture, feature extraction, classification and
// display loop.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-trashcam/pkg/capture"
	"github.com/teslashibe/go-trashcam/pkg/classifier"
	"github.com/teslashibe/go-trashcam/pkg/features"
)

// ErrAlreadyRun is returned when Run is called on a runner that has started before.
var ErrAlreadyRun = errors.New("pipeline: runner already started")

// State is the lifecycle state of a Runner.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Extractor computes the feature set of a frame.
type Extractor interface {
	Extract(frame gocv.Mat) (features.Set, error)
}

// Background is a classifier that labels frames off the loop, such as
// classifier.Async. Its Classify returns a label computed for an earlier
// frame, so the runner publishes results from its outcomes instead.
type Background interface {
	classifier.Classifier
	SetOnOutcome(fn func(classifier.Outcome))
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Source     capture.Source
	Display    capture.Display
	Extractor  Extractor
	Classifier classifier.Classifier
	Observers  []Observer
}

// Options tune the loop.
type Options struct {
	QuitKey  rune
	KeyDelay time.Duration
	Overlay  capture.OverlayStyle
	Logger   *slog.Logger
}

// DefaultOptions quits on 'q' and polls the keyboard for 1ms per frame.
func DefaultOptions() Options {
	return Options{
		QuitKey:  'q',
		KeyDelay: time.Millisecond,
		Overlay:  capture.DefaultOverlayStyle(),
		Logger:   slog.Default(),
	}
}

// Runner drives one capture session from running to stopped. It cannot be
// restarted.
type Runner struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	state      atomic.Int32
	closeOnce  sync.Once
	background bool

	mu    sync.RWMutex
	stats Stats
	label string
	seq   uint64
}

// New creates a runner. Zero-valued options take their defaults.
func New(deps Deps, opts Options) (*Runner, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: source required")
	case deps.Display == nil:
		return nil, errors.New("pipeline: display required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor required")
	case deps.Classifier == nil:
		return nil, classifier.ErrNoClassifier
	}

	def := DefaultOptions()
	if opts.QuitKey == 0 {
		opts.QuitKey = def.QuitKey
	}
	if opts.KeyDelay <= 0 {
		opts.KeyDelay = def.KeyDelay
	}
	if opts.Overlay == (capture.OverlayStyle{}) {
		opts.Overlay = def.Overlay
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}

	r := &Runner{
		deps:   deps,
		opts:   opts,
		logger: opts.Logger.With("component", "pipeline"),
	}
	if bg, ok := deps.Classifier.(Background); ok {
		r.background = true
		bg.SetOnOutcome(r.onOutcome)
	}
	return r, nil
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Stats returns a snapshot of the counters.
func (r *Runner) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.stats
	s.State = r.State().String()
	return s
}

// Label returns the label currently drawn on the frames.
func (r *Runner) Label() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.label
}

// Run loops until the source runs dry, the quit key is pressed or ctx is
// cancelled. Classifier and extraction failures are logged and never end the
// loop. The source and display are closed before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyRun
	}
	defer r.stop()

	r.mu.Lock()
	r.stats.StartedAt = time.Now()
	r.mu.Unlock()

	r.logger.Info("pipeline running", "quit_key", string(r.opts.QuitKey))

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info("pipeline cancelled")
			return nil
		}

		if !r.deps.Source.Read(&frame) {
			r.logger.Info("frame source exhausted")
			return nil
		}
		r.mu.Lock()
		r.stats.Frames++
		r.mu.Unlock()

		if !r.process(ctx, frame) {
			r.logger.Info("pipeline cancelled during classification")
			return nil
		}

		capture.Overlay(&frame, r.Label(), r.opts.Overlay)
		r.deps.Display.Show(frame)
		for _, o := range r.deps.Observers {
			o.OnFrame(frame)
		}

		if key := r.deps.Display.Key(r.opts.KeyDelay); key >= 0 && rune(key&0xFF) == r.opts.QuitKey {
			r.logger.Info("quit key pressed")
			return nil
		}
	}
}

// process extracts and classifies one frame. It returns false when ctx was
// cancelled while classifying.
func (r *Runner) process(ctx context.Context, frame gocv.Mat) bool {
	set, err := r.deps.Extractor.Extract(frame)
	if err != nil {
		r.logger.Warn("feature extraction failed", "error", err)
		r.mu.Lock()
		r.stats.ExtractErrors++
		r.mu.Unlock()
		return true
	}

	if r.background {
		// The label shown is refreshed by onOutcome.
		if _, err := r.deps.Classifier.Classify(ctx, set); err != nil && !errors.Is(err, classifier.ErrClosed) {
			r.logger.Debug("background classification error", "error", err)
		}
		return true
	}

	start := time.Now()
	label, err := r.deps.Classifier.Classify(ctx, set)
	latency := time.Since(start)
	if err != nil && ctx.Err() != nil {
		return false
	}
	r.publish(start, set, label, err, latency)
	return true
}

// onOutcome publishes a background classification with the features that
// produced its label.
func (r *Runner) onOutcome(out classifier.Outcome) {
	r.publish(out.Start, out.Features, out.Label, out.Err, out.Latency)
}

// publish records one classification and notifies observers.
func (r *Runner) publish(start time.Time, set features.Set, label string, err error, latency time.Duration) {
	r.mu.Lock()
	r.seq++
	res := Result{
		ID:       uuid.New(),
		Seq:      r.seq,
		Time:     start,
		Features: set,
		Label:    label,
		Latency:  latency,
	}
	r.label = label
	r.stats.Classified++
	r.stats.LastLabel = label
	if err != nil {
		res.Error = err.Error()
		r.stats.Failures++
		r.stats.LastError = res.Error
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("classification failed", "error", err, "features", set.String())
	} else {
		r.logger.Debug("classified", "label", label, "latency", latency, "features", set.String())
	}

	for _, o := range r.deps.Observers {
		o.OnResult(res)
	}
}

func (r *Runner) stop() {
	r.closeOnce.Do(func() {
		if err := r.deps.Source.Close(); err != nil {
			r.logger.Warn("closing source", "error", err)
		}
		if err := r.deps.Display.Close(); err != nil {
			r.logger.Warn("closing display", "error", err)
		}
	})
	r.state.Store(int32(StateStopped))

	s := r.Stats()
	r.logger.Info("pipeline stopped",
		"frames", s.Frames,
		"classified", s.Classified,
		"failures", s.Failures,
	)
}
