package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/teslashibe/go-trashcam/internal/httpc"
	"github.com/teslashibe/go-trashcam/pkg/features"
)

// maxResponseBytes caps how much of a classifier response is read.
const maxResponseBytes = 64 << 10

// HTTP classifies by POSTing the feature set as JSON to a service.
// The service answers either {"label": "..."} or a plain text label.
type HTTP struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// labelResponse is the JSON response body of a classifier service.
type labelResponse struct {
	Label string `json:"label"`
}

// NewHTTP creates an HTTP classifier for cfg.URL.
func NewHTTP(opts ...Option) (*HTTP, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.URL == "" {
		return nil, fmt.Errorf("classifier: URL required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTP{
		url:    cfg.URL,
		http:   httpc.NewClient(cfg.Timeout),
		logger: logger.With("component", "classifier.http"),
	}, nil
}

// Classify posts set and returns the trimmed label.
func (h *HTTP) Classify(ctx context.Context, set features.Set) (string, error) {
	body, err := features.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassifierFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassifierFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := h.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassifierFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrClassifierFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	label, err := parseLabel(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassifierFailed, err)
	}
	h.logger.Debug("classified", "label", label)
	return label, nil
}

func parseLabel(contentType string, data []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" {
		var r labelResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		return strings.TrimSpace(r.Label), nil
	}
	return strings.TrimSpace(string(data)), nil
}
