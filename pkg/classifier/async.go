package classifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-trashcam/pkg/features"
)

// Outcome is the result of one background classification.
type Outcome struct {
	Seq      uint64
	Start    time.Time
	Features features.Set
	Label    string
	Err      error
	Latency  time.Duration
}

// Async runs a classifier in a background goroutine so the caller never
// blocks on it.
//
// Pending work is a mailbox of one: submitting newer features replaces older
// ones that the worker has not picked up yet.
type Async struct {
	inner   Classifier
	mailbox chan features.Set
	logger  *slog.Logger

	mu       sync.Mutex
	latest   Outcome
	reported uint64
	dropped  uint64
	closed   bool

	onOutcome func(Outcome)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAsync starts a background worker around inner.
func NewAsync(inner Classifier, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Async{
		inner:   inner,
		mailbox: make(chan features.Set, 1),
		logger:  logger.With("component", "classifier.async"),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go a.run(ctx)
	return a
}

// Submit queues set for classification, replacing any unprocessed set.
func (a *Async) Submit(set features.Set) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.mailbox <- set:
		return nil
	default:
	}

	// Mailbox full: drop the stale set.
	select {
	case <-a.mailbox:
		a.dropped++
	default:
	}
	select {
	case a.mailbox <- set:
	default:
	}
	return nil
}

// SetOnOutcome registers fn to be called from the worker after every
// completed classification, with the features that were actually classified.
func (a *Async) SetOnOutcome(fn func(Outcome)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onOutcome = fn
}

// Latest returns the most recent completed classification.
func (a *Async) Latest() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Dropped returns how many submitted sets were replaced before classification.
func (a *Async) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Classify submits set and immediately returns the latest available label.
// An error from a background classification is returned once, on the first
// call after it completed.
func (a *Async) Classify(ctx context.Context, set features.Set) (string, error) {
	if err := a.Submit(set); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.latest
	if out.Err != nil && out.Seq > a.reported {
		a.reported = out.Seq
		return out.Label, out.Err
	}
	return out.Label, nil
}

// Close stops the worker and waits for an in-flight classification to end.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	<-a.done
	return nil
}

func (a *Async) run(ctx context.Context) {
	defer close(a.done)

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case set := <-a.mailbox:
			start := time.Now()
			label, err := a.inner.Classify(ctx, set)
			if ctx.Err() != nil {
				return
			}
			seq++
			out := Outcome{
				Seq:      seq,
				Start:    start,
				Features: set,
				Label:    label,
				Err:      err,
				Latency:  time.Since(start),
			}
			if err != nil {
				a.logger.Warn("background classification failed", "error", err)
			}

			a.mu.Lock()
			a.latest = out
			hook := a.onOutcome
			a.mu.Unlock()

			if hook != nil {
				hook(out)
			}
		}
	}
}
