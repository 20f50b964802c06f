package capture

import (
	"time"

	"gocv.io/x/gocv"
)

// DefaultWindowTitle is the title of the live classification window.
const DefaultWindowTitle = "Real-time Trash Classification"

// Display shows frames and polls the keyboard.
type Display interface {
	Show(frame gocv.Mat)
	// Key waits up to delay for a key press and returns its code, or -1.
	Key(delay time.Duration) int
	Close() error
}

// Window is a Display backed by a HighGUI window.
// HighGUI calls must stay on the goroutine that created the window.
type Window struct {
	w *gocv.Window
}

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultWindowTitle
	}
	return &Window{w: gocv.NewWindow(title)}
}

// Show renders frame in the window.
func (w *Window) Show(frame gocv.Mat) {
	w.w.IMShow(frame)
}

// Key polls for a key press. Delays below one millisecond are rounded up,
// since a zero delay blocks HighGUI until a key arrives.
func (w *Window) Key(delay time.Duration) int {
	ms := int(delay / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return w.w.WaitKey(ms)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.w.Close()
}

// NullDisplay discards frames and never reports a key press.
// It is used when running headless.
type NullDisplay struct{}

// Show does nothing.
func (NullDisplay) Show(gocv.Mat) {}

// Key sleeps for delay and returns -1.
func (NullDisplay) Key(delay time.Duration) int {
	if delay > 0 {
		time.Sleep(delay)
	}
	return -1
}

// Close does nothing.
func (NullDisplay) Close() error { return nil }
