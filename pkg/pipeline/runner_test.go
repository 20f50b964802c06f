package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-trashcam/pkg/classifier"
	"github.com/teslashibe/go-trashcam/pkg/features"
)

// fakeSource yields n frames holding a white rectangle, then fails.
type fakeSource struct {
	mu     sync.Mutex
	n      int
	reads  int
	closed int
}

func (s *fakeSource) Read(frame *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.reads > s.n {
		return false
	}
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()
	gocv.Rectangle(&img, image.Rect(160, 120, 480, 360), color.RGBA{255, 255, 255, 0}, -1)
	img.CopyTo(frame)
	return true
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// fakeDisplay records shown frames and replays scripted key presses.
type fakeDisplay struct {
	mu     sync.Mutex
	keys   []int
	shown  int
	closed int
}

func (d *fakeDisplay) Show(frame gocv.Mat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown++
}

func (d *fakeDisplay) Key(time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.keys) == 0 {
		return -1
	}
	k := d.keys[0]
	d.keys = d.keys[1:]
	return k
}

func (d *fakeDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

type recorder struct {
	mu      sync.Mutex
	results []Result
	frames  int
}

func (r *recorder) OnResult(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) OnFrame(gocv.Mat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
}

func newExtractor(t *testing.T) *features.Extractor {
	t.Helper()
	e, err := features.NewExtractor(features.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRun_TwoFramesThenEndOfStream(t *testing.T) {
	src := &fakeSource{n: 2}
	disp := &fakeDisplay{}
	mock := classifier.NewMock("plastic")
	rec := &recorder{}

	r, err := New(Deps{
		Source:     src,
		Display:    disp,
		Extractor:  newExtractor(t),
		Classifier: mock,
		Observers:  []Observer{rec},
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if got := mock.CallCount(); got != 2 {
		t.Errorf("classifier called %d times, want 2", got)
	}
	if src.closed != 1 || disp.closed != 1 {
		t.Errorf("closed source %d, display %d times; want 1, 1", src.closed, disp.closed)
	}
	if disp.shown != 2 {
		t.Errorf("shown %d frames, want 2", disp.shown)
	}
	if r.State() != StateStopped {
		t.Errorf("state = %v, want stopped", r.State())
	}

	stats := r.Stats()
	if stats.Frames != 2 || stats.Classified != 2 || stats.Failures != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastLabel != "plastic" || r.Label() != "plastic" {
		t.Errorf("label = %q, want plastic", r.Label())
	}

	if len(rec.results) != 2 || rec.frames != 2 {
		t.Fatalf("observer saw %d results, %d frames; want 2, 2", len(rec.results), rec.frames)
	}
	if rec.results[0].Features.Shape != 4 {
		t.Errorf("shape = %d, want 4", rec.results[0].Features.Shape)
	}
	if rec.results[0].ID == rec.results[1].ID {
		t.Error("results share an ID")
	}
	if rec.results[1].Seq != 2 {
		t.Errorf("seq = %d, want 2", rec.results[1].Seq)
	}
}

func TestRun_ClassifierFailureShowsEmptyLabel(t *testing.T) {
	src := &fakeSource{n: 3}
	disp := &fakeDisplay{}
	failing := classifier.WithError("", &classifier.ProcessError{Command: []string{"julia"}, ExitCode: 1})
	rec := &recorder{}

	r, _ := New(Deps{
		Source:     src,
		Display:    disp,
		Extractor:  newExtractor(t),
		Classifier: failing,
		Observers:  []Observer{rec},
	}, Options{})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if r.Label() != "" {
		t.Errorf("displayed label = %q, want empty", r.Label())
	}
	stats := r.Stats()
	if stats.Failures != 3 || stats.Frames != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastError == "" {
		t.Error("LastError not recorded")
	}
	if disp.shown != 3 {
		t.Errorf("shown %d frames, want 3", disp.shown)
	}
	for _, res := range rec.results {
		if res.Label != "" || res.Error == "" {
			t.Errorf("unexpected result: %+v", res)
		}
	}
}

func TestRun_QuitKey(t *testing.T) {
	src := &fakeSource{n: 100}
	disp := &fakeDisplay{keys: []int{-1, 'x', 'q'}}
	mock := classifier.NewMock("glass")

	r, _ := New(Deps{Source: src, Display: disp, Extractor: newExtractor(t), Classifier: mock}, Options{})
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if mock.CallCount() != 3 {
		t.Errorf("classifier called %d times, want 3", mock.CallCount())
	}
	if src.closed != 1 || disp.closed != 1 {
		t.Errorf("closed source %d, display %d times; want 1, 1", src.closed, disp.closed)
	}
}

func TestRun_QuitKeyWithModifierBits(t *testing.T) {
	src := &fakeSource{n: 100}
	disp := &fakeDisplay{keys: []int{0x100000 | 'q'}}
	mock := classifier.NewMock("glass")

	r, _ := New(Deps{Source: src, Display: disp, Extractor: newExtractor(t), Classifier: mock}, Options{})
	r.Run(context.Background())

	if mock.CallCount() != 1 {
		t.Errorf("classifier called %d times, want 1", mock.CallCount())
	}
}

func TestRun_CustomQuitKey(t *testing.T) {
	src := &fakeSource{n: 100}
	disp := &fakeDisplay{keys: []int{'q', 27}}
	mock := classifier.NewMock("glass")

	r, _ := New(Deps{Source: src, Display: disp, Extractor: newExtractor(t), Classifier: mock}, Options{QuitKey: 27})
	r.Run(context.Background())

	if mock.CallCount() != 2 {
		t.Errorf("classifier called %d times, want 2", mock.CallCount())
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{n: 1000}
	disp := &fakeDisplay{}

	mock := classifier.NewMock("metal")
	mock.ClassifyFunc = func(context.Context, features.Set) (string, error) {
		cancel()
		return "metal", nil
	}

	r, _ := New(Deps{Source: src, Display: disp, Extractor: newExtractor(t), Classifier: mock}, Options{})
	if err := r.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if mock.CallCount() != 1 {
		t.Errorf("classifier called %d times, want 1", mock.CallCount())
	}
	if src.closed != 1 || disp.closed != 1 {
		t.Errorf("resources not released: source %d, display %d", src.closed, disp.closed)
	}
}

func TestRun_CancelDuringClassification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{n: 1000}
	disp := &fakeDisplay{}

	blocking := &classifier.Mock{ClassifyFunc: func(ctx context.Context, _ features.Set) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}}

	r, _ := New(Deps{Source: src, Display: disp, Extractor: newExtractor(t), Classifier: blocking}, Options{})
	if err := r.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if s := r.Stats(); s.Failures != 0 {
		t.Errorf("cancellation counted as failure: %+v", s)
	}
	if disp.shown != 0 {
		t.Errorf("shown %d frames, want 0", disp.shown)
	}
}

type failingExtractor struct{}

func (failingExtractor) Extract(gocv.Mat) (features.Set, error) {
	return features.Set{}, features.ErrEmptyFrame
}

func TestRun_ExtractionErrorKeepsLoopAlive(t *testing.T) {
	src := &fakeSource{n: 2}
	disp := &fakeDisplay{}
	mock := classifier.NewMock("paper")

	r, _ := New(Deps{Source: src, Display: disp, Extractor: failingExtractor{}, Classifier: mock}, Options{})
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if mock.CallCount() != 0 {
		t.Errorf("classifier called %d times, want 0", mock.CallCount())
	}
	if s := r.Stats(); s.ExtractErrors != 2 {
		t.Errorf("ExtractErrors = %d, want 2", s.ExtractErrors)
	}
	if disp.shown != 2 {
		t.Errorf("shown %d frames, want 2", disp.shown)
	}
}

func TestRun_Once(t *testing.T) {
	r, _ := New(Deps{
		Source:     &fakeSource{},
		Display:    &fakeDisplay{},
		Extractor:  newExtractor(t),
		Classifier: classifier.NewMock(""),
	}, Options{})

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second Run = %v, want ErrAlreadyRun", err)
	}
}

func TestNew_MissingDeps(t *testing.T) {
	full := Deps{
		Source:     &fakeSource{},
		Display:    &fakeDisplay{},
		Extractor:  failingExtractor{},
		Classifier: classifier.NewMock(""),
	}

	tests := []struct {
		name string
		mod  func(*Deps)
	}{
		{"source", func(d *Deps) { d.Source = nil }},
		{"display", func(d *Deps) { d.Display = nil }},
		{"extractor", func(d *Deps) { d.Extractor = nil }},
		{"classifier", func(d *Deps) { d.Classifier = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := full
			tc.mod(&d)
			if _, err := New(d, Options{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateIdle: "idle", StateRunning: "running", StateStopped: "stopped", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("State(%d) = %q, want %q", s, s.String(), want)
		}
	}
}

// staleClassifier answers every call with a label from an earlier frame and
// publishes the real outcomes through its hook.
type staleClassifier struct {
	mu    sync.Mutex
	calls int
	hook  func(classifier.Outcome)
}

func (s *staleClassifier) Classify(context.Context, features.Set) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "stale", nil
}

func (s *staleClassifier) SetOnOutcome(fn func(classifier.Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

func TestRun_BackgroundClassifierPublishesOutcomes(t *testing.T) {
	bg := &staleClassifier{}
	rec := &recorder{}

	r, err := New(Deps{
		Source:     &fakeSource{n: 3},
		Display:    &fakeDisplay{},
		Extractor:  newExtractor(t),
		Classifier: bg,
		Observers:  []Observer{rec},
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if bg.hook == nil {
		t.Fatal("runner did not register an outcome hook")
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if bg.calls != 3 {
		t.Errorf("classifier called %d times, want 3", bg.calls)
	}
	if len(rec.results) != 0 {
		t.Fatalf("loop published %d results from stale labels, want 0", len(rec.results))
	}
	if s := r.Stats(); s.Classified != 0 || r.Label() != "" {
		t.Errorf("stats = %+v, label %q; want nothing classified yet", s, r.Label())
	}

	set := features.Set{Color: [3]float64{12, 34, 56}, Shape: 4, Texture: 7.5}
	start := time.Now().Add(-40 * time.Millisecond)
	bg.hook(classifier.Outcome{Seq: 1, Start: start, Features: set, Label: "glass", Latency: 40 * time.Millisecond})
	bg.hook(classifier.Outcome{Seq: 2, Features: set, Err: errors.New("exit status 1")})

	if len(rec.results) != 2 {
		t.Fatalf("published %d results, want 2", len(rec.results))
	}
	got := rec.results[0]
	if got.Features != set || got.Label != "glass" || got.Latency != 40*time.Millisecond || !got.Time.Equal(start) {
		t.Errorf("result = %+v, want the outcome's features, label and latency", got)
	}
	if rec.results[1].Error == "" {
		t.Error("failed outcome should carry its error")
	}

	s := r.Stats()
	if s.Classified != 2 || s.Failures != 1 {
		t.Errorf("stats = %+v, want 2 classified, 1 failure", s)
	}
	if r.Label() != "" {
		t.Errorf("label = %q, want the failed outcome's empty label", r.Label())
	}
}
