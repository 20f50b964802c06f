package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-trashcam/pkg/capture"
	"github.com/teslashibe/go-trashcam/pkg/classifier"
	"github.com/teslashibe/go-trashcam/pkg/features"
	"github.com/teslashibe/go-trashcam/pkg/journal"
	"github.com/teslashibe/go-trashcam/pkg/pipeline"
	"github.com/teslashibe/go-trashcam/pkg/web"
)

// Option overrides a component normally built from Config.
type Option func(*App)

// WithSource uses src instead of opening the configured camera.
func WithSource(src capture.Source) Option {
	return func(a *App) { a.source = src }
}

// WithDisplay uses d instead of a window or the headless display.
func WithDisplay(d capture.Display) Option {
	return func(a *App) { a.display = d }
}

// WithClassifier uses c instead of the configured process or HTTP classifier.
func WithClassifier(c classifier.Classifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithObserver adds an observer of pipeline results and frames.
func WithObserver(o pipeline.Observer) Option {
	return func(a *App) { a.observers = append(a.observers, o) }
}

// App is the trashcam application.
type App struct {
	config Config
	logger *slog.Logger

	// Capture
	source  capture.Source
	camera  *capture.Camera
	display capture.Display

	// Classification
	extractor  *features.Extractor
	classifier classifier.Classifier
	async      *classifier.Async

	// Outputs
	sink      *journal.Sink
	postgres  *journal.Postgres
	webServer *web.Server
	observers []pipeline.Observer

	runner *pipeline.Runner
}

// New creates an application. The configuration must already carry file,
// environment and flag overrides.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "app")
	return a, nil
}

// Config returns the configuration the app was created with.
func (a *App) Config() Config {
	return a.config
}

// Init builds every component. Failing to open the camera is fatal and
// matches capture.ErrOpenCamera; on error all opened components are released.
func (a *App) Init(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.Shutdown()
		}
	}()

	if err := a.initCapture(); err != nil {
		return err
	}

	a.extractor, err = features.NewExtractor(a.config.FeaturesConfig())
	if err != nil {
		return fmt.Errorf("feature extractor: %w", err)
	}

	if err := a.initClassifier(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	if err := a.initJournal(ctx); err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	if a.config.WebAddr != "" {
		a.initWeb()
	}

	observers := append([]pipeline.Observer(nil), a.observers...)
	if a.sink != nil {
		observers = append(observers, a.sink)
	}
	if a.webServer != nil {
		observers = append(observers, a.webServer)
	}

	opts := pipeline.DefaultOptions()
	opts.QuitKey = a.config.QuitRune()
	opts.Logger = a.logger

	a.runner, err = pipeline.New(pipeline.Deps{
		Source:     a.source,
		Display:    a.display,
		Extractor:  a.extractor,
		Classifier: a.classifier,
		Observers:  observers,
	}, opts)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if a.webServer != nil {
		a.webServer.SetStats(a.runner.Stats)
	}
	return nil
}

func (a *App) initCapture() error {
	if a.source == nil {
		cam, err := capture.OpenCamera(a.config.CaptureConfig())
		if err != nil {
			return err
		}
		a.camera = cam
		a.source = cam
		w, h := cam.Size()
		a.logger.Info("camera opened", "device", a.config.DevicePath, "width", w, "height", h)
	}

	if a.display == nil {
		if a.config.Headless {
			a.display = capture.NullDisplay{}
		} else {
			a.display = capture.NewWindow(a.config.WindowTitle)
		}
	}
	return nil
}

func (a *App) initClassifier() error {
	if a.classifier == nil {
		opts := []classifier.Option{
			classifier.WithFeatureFile(a.config.FeatureFilePath),
			classifier.WithDir(a.config.ClassifierDir),
			classifier.WithTimeout(a.config.ClassifierTimeout),
			classifier.WithLogger(a.logger),
		}

		var chain []classifier.Classifier
		if a.config.ClassifierURL != "" {
			h, err := classifier.NewHTTP(append(opts, classifier.WithURL(a.config.ClassifierURL))...)
			if err != nil {
				return err
			}
			chain = append(chain, h)
		}
		if len(a.config.ClassifierCommand) > 0 {
			p, err := classifier.NewProcess(append(opts, classifier.WithCommand(a.config.ClassifierCommand...))...)
			if err != nil {
				return err
			}
			chain = append(chain, p)
		}

		if len(chain) == 1 {
			a.classifier = chain[0]
		} else {
			c, err := classifier.NewChainWithLogger(a.logger, chain...)
			if err != nil {
				return err
			}
			a.classifier = c
		}
	}

	if a.config.Async {
		a.async = classifier.NewAsync(a.classifier, a.logger)
		a.classifier = a.async
	}
	return nil
}

func (a *App) initJournal(ctx context.Context) error {
	var recs journal.Multi

	if a.config.JournalPath != "" {
		f, err := journal.OpenFile(a.config.JournalPath)
		if err != nil {
			return err
		}
		recs = append(recs, f)
		a.logger.Info("journal file", "path", f.Path())
	}

	if a.config.DatabaseURL != "" {
		pg, err := journal.NewPostgres(ctx, a.config.DatabaseURL)
		if err != nil {
			recs.Close()
			return err
		}
		if err := pg.InitSchema(ctx); err != nil {
			pg.Close()
			recs.Close()
			return err
		}
		a.postgres = pg
		recs = append(recs, pg)
		a.logger.Info("journal database connected")
	}

	if len(recs) == 0 {
		return nil
	}

	var rec journal.Recorder = recs
	if len(recs) == 1 {
		rec = recs[0]
	}
	a.sink = journal.NewSink(rec, "camera:"+a.config.DevicePath, journal.DefaultQueueSize, a.logger)
	return nil
}

func (a *App) initWeb() {
	a.webServer = web.NewServer(web.Config{
		Addr:          a.config.WebAddr,
		FrameInterval: a.config.FrameInterval,
		JPEGQuality:   a.config.JPEGQuality,
		Logger:        a.logger,
	})
	a.webServer.SetConfigView(a.config.Redacted())

	if a.camera != nil {
		mgr := capture.NewManager(a.camera.Config())
		mgr.OnConfigChange = a.camera.Apply
		a.webServer.SetCameraManager(mgr)
	}
}

// Postgres returns the database journal, or nil when none is configured.
func (a *App) Postgres() *journal.Postgres {
	return a.postgres
}

// Stats returns the pipeline counters.
func (a *App) Stats() pipeline.Stats {
	if a.runner == nil {
		return pipeline.Stats{State: pipeline.StateIdle.String()}
	}
	return a.runner.Stats()
}

// Run starts the dashboard and blocks in the capture loop until the source
// ends, the quit key is pressed or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.runner == nil {
		return errors.New("app: Run called before Init")
	}

	if a.webServer != nil {
		a.webServer.StartAsync()
		a.logger.Info("dashboard listening", "addr", a.config.WebAddr)
	}

	start := time.Now()
	err := a.runner.Run(ctx)

	s := a.runner.Stats()
	a.logger.Info("session finished",
		"duration", time.Since(start).Round(time.Millisecond),
		"frames", s.Frames,
		"last_label", s.LastLabel,
	)
	return err
}

// Shutdown releases all components. It is safe to call more than once and
// after a failed Init.
func (a *App) Shutdown() {
	// The runner closes the source and display once it has started.
	if a.runner == nil || a.runner.State() == pipeline.StateIdle {
		if a.source != nil {
			if err := a.source.Close(); err != nil {
				a.logger.Warn("closing source", "error", err)
			}
		}
		if a.display != nil {
			if err := a.display.Close(); err != nil {
				a.logger.Warn("closing display", "error", err)
			}
		}
		a.source, a.display = nil, nil
	}

	if a.async != nil {
		a.async.Close()
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("closing journal", "error", err)
		}
	}
	if a.webServer != nil {
		if err := a.webServer.Shutdown(); err != nil {
			a.logger.Warn("stopping dashboard", "error", err)
		}
	}
}
