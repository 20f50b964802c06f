package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-trashcam/internal/log"
	"github.com/teslashibe/go-trashcam/pkg/app"
	"github.com/teslashibe/go-trashcam/pkg/classifier"
	"github.com/teslashibe/go-trashcam/pkg/features"
	"github.com/teslashibe/go-trashcam/pkg/journal"
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>...",
	Short: "Extract features from still images",
	Long: `Computes the color, shape and texture features of each image and prints
one JSON entry per line, or writes a CSV file suitable for training a classifier.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("csv", "", "Write entries to this CSV file instead of stdout")
	extractCmd.Flags().Bool("classify", false, "Also run the configured classifier on each image")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.Component("extract")

	ex, err := features.NewExtractor(cfg.FeaturesConfig())
	if err != nil {
		return err
	}

	var clf classifier.Classifier
	if doClassify, _ := cmd.Flags().GetBool("classify"); doClassify {
		if clf, err = newProcessClassifier(cfg); err != nil {
			return err
		}
	}

	var out journal.Recorder
	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		out = journal.NewCSVWriter(f)
	} else {
		out = jsonLines{enc: json.NewEncoder(cmd.OutOrStdout())}
	}

	sets, err := extractTo(cmd.Context(), out, ex, clf, args, logger)
	if err != nil {
		return err
	}

	sum := features.Summarize(sets)
	logger.Info("extracted features",
		"images", len(args),
		"ok", sum.Count,
		"hue_mean", sum.Hue.Mean,
		"shape_mean", sum.Shape.Mean,
		"texture_mean", sum.Texture.Mean,
	)
	if sum.Count == 0 {
		return fmt.Errorf("no readable images")
	}
	return nil
}

// extractTo records one entry per readable image and closes out, also when
// recording fails.
func extractTo(ctx context.Context, out journal.Recorder, ex *features.Extractor, clf classifier.Classifier, paths []string, logger *slog.Logger) (sets []features.Set, err error) {
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, path := range paths {
		img := gocv.IMRead(path, gocv.IMReadColor)
		set, xerr := ex.Extract(img)
		img.Close()
		if xerr != nil {
			logger.Warn("skipping image", "path", path, "error", xerr)
			continue
		}
		sets = append(sets, set)

		e := journal.NewEntry(path, set)
		if clf != nil {
			label, cerr := clf.Classify(ctx, set)
			e.Label = label
			if cerr != nil {
				e.Error = cerr.Error()
			}
		}
		if err := out.Record(ctx, e); err != nil {
			return sets, fmt.Errorf("record %s: %w", path, err)
		}
	}
	return sets, nil
}

func newProcessClassifier(cfg app.Config) (*classifier.Process, error) {
	return classifier.NewProcess(
		classifier.WithCommand(cfg.ClassifierCommand...),
		classifier.WithFeatureFile(cfg.FeatureFilePath),
		classifier.WithDir(cfg.ClassifierDir),
		classifier.WithTimeout(cfg.ClassifierTimeout),
		classifier.WithLogger(log.L()),
	)
}

// jsonLines records entries as JSON, one per line.
type jsonLines struct {
	enc *json.Encoder
}

func (j jsonLines) Record(_ context.Context, e journal.Entry) error {
	return j.enc.Encode(e)
}

func (j jsonLines) Close() error { return nil }
