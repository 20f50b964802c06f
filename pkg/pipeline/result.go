package pipeline

import (
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-trashcam/pkg/features"
)

// Result is one classified frame.
type Result struct {
	ID       uuid.UUID     `json:"id"`
	Seq      uint64        `json:"seq"`
	Time     time.Time     `json:"time"`
	Features features.Set  `json:"features"`
	Label    string        `json:"label"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency_ns"`
}

// Observer receives pipeline events. Methods are called on the capture
// goroutine and must return quickly.
type Observer interface {
	OnResult(res Result)

	// OnFrame receives the annotated frame. The Mat is reused after the call
	// returns; observers that keep it must Clone it.
	OnFrame(frame gocv.Mat)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Result func(Result)
	Frame  func(gocv.Mat)
}

// OnResult calls f.Result.
func (f ObserverFuncs) OnResult(res Result) {
	if f.Result != nil {
		f.Result(res)
	}
}

// OnFrame calls f.Frame.
func (f ObserverFuncs) OnFrame(frame gocv.Mat) {
	if f.Frame != nil {
		f.Frame(frame)
	}
}

// Stats are running counters of a pipeline.
type Stats struct {
	State         string    `json:"state"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	Frames        uint64    `json:"frames"`
	Classified    uint64    `json:"classified"`
	Failures      uint64    `json:"failures"`
	ExtractErrors uint64    `json:"extract_errors"`
	LastLabel     string    `json:"last_label"`
	LastError     string    `json:"last_error,omitempty"`
}
