package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-trashcam/pkg/pipeline"
)

// DefaultQueueSize is the number of entries a Sink buffers.
const DefaultQueueSize = 64

// writeTimeout bounds a single Record call made by a Sink.
const writeTimeout = 5 * time.Second

// Sink is a pipeline.Observer that journals results from a background
// goroutine, so slow storage never stalls the capture loop.
// Entries are dropped when the queue is full.
type Sink struct {
	rec    Recorder
	source string
	queue  chan Entry
	logger *slog.Logger

	dropped atomic.Uint64
	wg      sync.WaitGroup

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewSink starts a sink that writes to rec.
func NewSink(rec Recorder, source string, size int, logger *slog.Logger) *Sink {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		rec:    rec,
		source: source,
		queue:  make(chan Entry, size),
		logger: logger.With("component", "journal"),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// OnResult queues the result for recording.
func (s *Sink) OnResult(res pipeline.Result) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- FromResult(s.source, res):
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warn("journal queue full, dropping entries", "dropped", n)
		}
	}
}

// OnFrame does nothing.
func (s *Sink) OnFrame(gocv.Mat) {}

// Dropped returns the number of entries lost to a full queue.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close drains the queue and closes the recorder.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()

		s.wg.Wait()
		err = s.rec.Close()
	})
	return err
}

func (s *Sink) run() {
	defer s.wg.Done()
	for e := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.rec.Record(ctx, e); err != nil {
			s.logger.Warn("failed to record result", "id", e.ID, "error", err)
		}
		cancel()
	}
}
