package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// OverlayStyle controls how the classification label is drawn.
type OverlayStyle struct {
	Prefix    string
	Origin    image.Point // Bottom-left corner of the text
	Font      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
}

// DefaultOverlayStyle draws green "Classification: <label>" text near the top-left corner.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		Prefix:    "Classification: ",
		Origin:    image.Pt(10, 30),
		Font:      gocv.FontHersheySimplex,
		Scale:     1,
		Color:     color.RGBA{0, 255, 0, 0},
		Thickness: 2,
	}
}

// Text returns the string drawn for label.
func (s OverlayStyle) Text(label string) string {
	return s.Prefix + label
}

// Overlay draws the label onto frame in place.
func Overlay(frame *gocv.Mat, label string, style OverlayStyle) {
	if frame.Empty() {
		return
	}
	gocv.PutText(frame, style.Text(label), style.Origin, style.Font, style.Scale, style.Color, style.Thickness)
}
