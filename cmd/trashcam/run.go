package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teslashibe/go-trashcam/internal/log"
	"github.com/teslashibe/go-trashcam/pkg/app"
	"github.com/teslashibe/go-trashcam/pkg/capture"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify webcam frames in real time",
	Args:  cobra.NoArgs,
	RunE:  runClassification,
}

// addRunFlags registers the run flags on fs. The root command shares them.
func addRunFlags(f *pflag.FlagSet) {
	f.StringP("device", "d", "", "Camera index, device path or video file (default 0)")
	f.String("preset", "", "Camera preset: default, vga, 720p, 1080p")
	f.String("feature-file", "", "Feature file handed to the classifier (default features.json)")
	f.StringSlice("classifier", nil, "Classifier command and arguments (default julia,classify_trash.jl)")
	f.String("classifier-url", "", "HTTP classifier endpoint, tried before the command")
	f.Duration("timeout", 0, "Per-frame classifier timeout (0 waits forever)")
	f.Bool("async", false, "Classify in the background and show the latest label")
	f.Bool("headless", false, "Run without a preview window")
	f.String("web", "", "Dashboard listen address, e.g. :8090")
	f.String("journal", "", "Append results to this JSONL file")
	f.String("database-url", "", "Record results in Postgres (pgvector)")
}

// applyRunFlags overrides cfg with the flags set on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *app.Config) {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}

	str("device", &cfg.DevicePath)
	str("preset", &cfg.CameraPreset)
	str("feature-file", &cfg.FeatureFilePath)
	str("classifier-url", &cfg.ClassifierURL)
	str("web", &cfg.WebAddr)
	str("journal", &cfg.JournalPath)
	str("database-url", &cfg.DatabaseURL)
	boolean("async", &cfg.Async)
	boolean("headless", &cfg.Headless)

	if f.Changed("classifier") {
		cfg.ClassifierCommand, _ = f.GetStringSlice("classifier")
	}
	if f.Changed("timeout") {
		cfg.ClassifierTimeout, _ = f.GetDuration("timeout")
	}
}

func runClassification(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg)

	a, err := app.New(cfg, app.WithLogger(log.L()))
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		if errors.Is(err, capture.ErrOpenCamera) {
			return fmt.Errorf("could not open webcam: %w", err)
		}
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer a.Shutdown()

	return a.Run(ctx)
}
