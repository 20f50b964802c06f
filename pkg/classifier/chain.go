package classifier

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-trashcam/pkg/features"
)

// Chain tries multiple classifiers in order until one succeeds.
type Chain struct {
	classifiers []Classifier
	logger      *slog.Logger
}

// NewChain creates a classifier chain.
// At least one classifier is required.
func NewChain(classifiers ...Classifier) (*Chain, error) {
	if len(classifiers) == 0 {
		return nil, ErrNoClassifier
	}
	return &Chain{
		classifiers: classifiers,
		logger:      slog.Default().With("component", "classifier.chain"),
	}, nil
}

// NewChainWithLogger creates a classifier chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, classifiers ...Classifier) (*Chain, error) {
	chain, err := NewChain(classifiers...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "classifier.chain")
	return chain, nil
}

// Classify tries each classifier until one succeeds.
func (c *Chain) Classify(ctx context.Context, set features.Set) (string, error) {
	var errs []error

	for i, cl := range c.classifiers {
		label, err := cl.Classify(ctx, set)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback classifier succeeded", "classifier_index", i)
			}
			return label, nil
		}

		errs = append(errs, err)
		c.logger.Warn("classifier failed, trying next",
			"classifier_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", &ChainError{Errors: errs}
}
