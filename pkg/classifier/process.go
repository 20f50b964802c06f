package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/teslashibe/go-trashcam/pkg/features"
)

// waitDelay bounds how long Wait lingers on inherited pipes after the
// process is killed.
const waitDelay = time.Second

// Process classifies by writing the feature file and running an external
// program that prints the label on stdout.
//
// The feature file is shared state: Classify serializes runs so the program
// always reads the features it was started for.
type Process struct {
	command     []string
	featureFile string
	dir         string
	timeout     time.Duration
	logger      *slog.Logger

	sem chan struct{}
}

// NewProcess creates a process classifier.
func NewProcess(opts ...Option) (*Process, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Process{
		command:     append([]string(nil), cfg.Command...),
		featureFile: cfg.FeatureFile,
		dir:         cfg.Dir,
		timeout:     cfg.Timeout,
		logger:      logger.With("component", "classifier.process"),
		sem:         make(chan struct{}, 1),
	}, nil
}

// Command returns the program and arguments that are run.
func (p *Process) Command() []string {
	return append([]string(nil), p.command...)
}

// FeatureFile returns the path the features are written to.
func (p *Process) FeatureFile() string {
	return p.featureFile
}

// Classify writes set to the feature file, runs the program and returns its
// stdout with surrounding whitespace removed.
//
// When the program cannot be started or exits non-zero, the captured stdout
// is still returned together with a *ProcessError.
func (p *Process) Classify(ctx context.Context, set features.Set) (string, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if err := features.WriteFile(p.featureFile, set); err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassifierFailed, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	cmd.Dir = p.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	label := strings.TrimSpace(stdout.String())

	if err != nil {
		perr := &ProcessError{
			Command:  p.Command(),
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			perr.Err = ctxErr
		}
		p.logger.Debug("classifier process failed",
			"exit_code", perr.ExitCode,
			"latency", time.Since(start),
			"error", err,
		)
		return label, perr
	}

	p.logger.Debug("classified",
		"label", label,
		"latency", time.Since(start),
	)
	return label, nil
}
