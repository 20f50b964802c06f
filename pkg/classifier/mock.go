package classifier

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-trashcam/pkg/features"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, set features.Set) (string, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Classify invocation.
type MockCall struct {
	Features features.Set
	Time     time.Time
}

// NewMock creates a mock that always answers label.
func NewMock(label string) *Mock {
	return &Mock{
		ClassifyFunc: func(context.Context, features.Set) (string, error) {
			return label, nil
		},
	}
}

// WithError creates a mock that returns label together with err.
func WithError(label string, err error) *Mock {
	return &Mock{
		ClassifyFunc: func(context.Context, features.Set) (string, error) {
			return label, err
		},
	}
}

// Classify calls ClassifyFunc and records the call.
func (m *Mock) Classify(ctx context.Context, set features.Set) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Features: set, Time: time.Now()})
	fn := m.ClassifyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, set)
	}
	return "", ErrNoClassifier
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Classify calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
