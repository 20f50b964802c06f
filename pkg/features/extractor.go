package features

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// maxValue is the foreground value written by the binary threshold.
const maxValue = 255

// Extractor computes feature sets from BGR frames.
// It holds no per-frame state and is safe for concurrent use.
type Extractor struct {
	config Config
	size   image.Point
}

// NewExtractor creates an extractor after validating cfg.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		config: cfg,
		size:   image.Pt(cfg.Width, cfg.Height),
	}, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.config
}

// Extract downsamples the frame once and computes all three features.
func (e *Extractor) Extract(frame gocv.Mat) (Set, error) {
	small, err := e.Downsample(frame)
	if err != nil {
		return Set{}, err
	}
	defer small.Close()

	var set Set
	if set.Color, err = colorOf(small); err != nil {
		return Set{}, err
	}
	if set.Shape, err = e.shapeOf(small); err != nil {
		return Set{}, err
	}
	if set.Texture, err = textureOf(small); err != nil {
		return Set{}, err
	}
	return set, nil
}

// Color returns the mean of each HSV channel of the downsampled frame.
// H is in [0, 180], S and V in [0, 255].
func (e *Extractor) Color(frame gocv.Mat) ([3]float64, error) {
	small, err := e.Downsample(frame)
	if err != nil {
		return [3]float64{}, err
	}
	defer small.Close()
	return colorOf(small)
}

// Shape returns the vertex count of the simplified polygon around the largest
// external contour of the thresholded frame, or 0 when there is none.
func (e *Extractor) Shape(frame gocv.Mat) (int, error) {
	small, err := e.Downsample(frame)
	if err != nil {
		return 0, err
	}
	defer small.Close()
	return e.shapeOf(small)
}

// Texture returns the mean absolute Laplacian of the grayscale frame.
func (e *Extractor) Texture(frame gocv.Mat) (float64, error) {
	small, err := e.Downsample(frame)
	if err != nil {
		return 0, err
	}
	defer small.Close()
	return textureOf(small)
}

// Downsample resizes the frame to the configured size as a 3-channel BGR Mat.
// The caller owns the returned Mat.
func (e *Extractor) Downsample(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	bgr, err := toBGR(frame)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer bgr.Close()

	dst := gocv.NewMat()
	if err := gocv.Resize(bgr, &dst, e.size, 0, 0, gocv.InterpolationLinear); err != nil {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("features: resize: %w", err)
	}
	return dst, nil
}

// toBGR returns a 3-channel copy of frame.
func toBGR(frame gocv.Mat) (gocv.Mat, error) {
	dst := gocv.NewMat()
	var err error
	switch frame.Channels() {
	case 3:
		frame.CopyTo(&dst)
	case 1:
		err = gocv.CvtColor(frame, &dst, gocv.ColorGrayToBGR)
	case 4:
		err = gocv.CvtColor(frame, &dst, gocv.ColorBGRAToBGR)
	default:
		err = fmt.Errorf("unsupported channel count %d", frame.Channels())
	}
	if err != nil {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("features: convert to BGR: %w", err)
	}
	return dst, nil
}

func colorOf(bgr gocv.Mat) ([3]float64, error) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV); err != nil {
		return [3]float64{}, fmt.Errorf("features: convert to HSV: %w", err)
	}

	mean := hsv.Mean()
	return [3]float64{mean.Val1, mean.Val2, mean.Val3}, nil
}

func grayOf(bgr gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	if err := gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray); err != nil {
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("features: convert to gray: %w", err)
	}
	return gray, nil
}

func (e *Extractor) shapeOf(bgr gocv.Mat) (int, error) {
	gray, err := grayOf(bgr)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, float32(e.config.Threshold), maxValue, gocv.ThresholdBinary)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	// Strict comparison keeps the first contour in detection order on ties.
	best, bestArea := -1, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return 0, nil
	}

	largest := contours.At(best)
	epsilon := e.config.ToleranceRatio * gocv.ArcLength(largest, true)
	approx := gocv.ApproxPolyDP(largest, epsilon, true)
	defer approx.Close()

	return approx.Size(), nil
}

func textureOf(bgr gocv.Mat) (float64, error) {
	gray, err := grayOf(bgr)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	n := lap.Total()
	if n == 0 {
		return 0, nil
	}
	// L1 norm is the sum of absolute values.
	return gocv.Norm(lap, gocv.NormL1) / float64(n), nil
}
