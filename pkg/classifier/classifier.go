// Package classifier turns feature sets into trash labels.
//
// The default implementation runs an external program that reads the
// feature file and prints a label on stdout. HTTP, fallback chains and a
// non-blocking async wrapper are built on the same interface.
package classifier

import (
	"context"

	"github.com/teslashibe/go-trashcam/pkg/features"
)

// Classifier labels a feature set. The label may be empty.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, set features.Set) (string, error)
}

// Func adapts an ordinary function to the Classifier interface.
type Func func(ctx context.Context, set features.Set) (string, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, set features.Set) (string, error) {
	return f(ctx, set)
}

// Static returns a classifier that always answers label.
func Static(label string) Classifier {
	return Func(func(context.Context, features.Set) (string, error) {
		return label, nil
	})
}
