// Package journal records classification results to durable storage:
// JSON lines files, CSV and Postgres with pgvector.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-trashcam/pkg/features"
	"github.com/teslashibe/go-trashcam/pkg/pipeline"
)

// Entry is one journaled classification.
type Entry struct {
	ID        uuid.UUID `json:"id" csv:"id"`
	Time      time.Time `json:"time" csv:"time"`
	Source    string    `json:"source,omitempty" csv:"source"`
	Hue       float64   `json:"hue" csv:"hue"`
	Sat       float64   `json:"saturation" csv:"saturation"`
	Val       float64   `json:"value" csv:"value"`
	Shape     int       `json:"shape" csv:"shape"`
	Texture   float64   `json:"texture" csv:"texture"`
	Label     string    `json:"label" csv:"label"`
	Error     string    `json:"error,omitempty" csv:"error"`
	LatencyMS float64   `json:"latency_ms" csv:"latency_ms"`
}

// NewEntry builds an entry for a feature set that was not classified,
// e.g. from offline extraction.
func NewEntry(source string, set features.Set) Entry {
	e := Entry{
		ID:     uuid.New(),
		Time:   time.Now().UTC(),
		Source: source,
	}
	e.SetFeatures(set)
	return e
}

// FromResult converts a pipeline result.
func FromResult(source string, res pipeline.Result) Entry {
	e := Entry{
		ID:        res.ID,
		Time:      res.Time.UTC(),
		Source:    source,
		Label:     res.Label,
		Error:     res.Error,
		LatencyMS: float64(res.Latency) / float64(time.Millisecond),
	}
	e.SetFeatures(res.Features)
	return e
}

// SetFeatures copies set into the flat feature columns.
func (e *Entry) SetFeatures(set features.Set) {
	e.Hue, e.Sat, e.Val = set.Color[0], set.Color[1], set.Color[2]
	e.Shape = set.Shape
	e.Texture = set.Texture
}

// Features returns the feature set stored in e.
func (e Entry) Features() features.Set {
	return features.Set{
		Color:   [3]float64{e.Hue, e.Sat, e.Val},
		Shape:   e.Shape,
		Texture: e.Texture,
	}
}

// Recorder persists entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Multi fans entries out to several recorders.
type Multi []Recorder

// Record writes e to every recorder and joins their errors.
func (m Multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every recorder and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
