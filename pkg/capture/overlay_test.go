package capture

import (
	"image"
	"image/color"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestDefaultOverlayStyle(t *testing.T) {
	s := DefaultOverlayStyle()
	if s.Origin != image.Pt(10, 30) {
		t.Errorf("Origin = %v, want (10,30)", s.Origin)
	}
	if s.Color != (color.RGBA{0, 255, 0, 0}) {
		t.Errorf("Color = %v, want green", s.Color)
	}
	if s.Font != gocv.FontHersheySimplex || s.Scale != 1 || s.Thickness != 2 {
		t.Errorf("unexpected font settings: %+v", s)
	}
	if got := s.Text("plastic"); got != "Classification: plastic" {
		t.Errorf("Text = %q", got)
	}
	if got := s.Text(""); got != "Classification: " {
		t.Errorf("Text(empty) = %q", got)
	}
}

func TestOverlay_DrawsGreenTextNearOrigin(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	Overlay(&frame, "", DefaultOverlayStyle())

	green, other, below := 0, 0, 0
	for y := 0; y < frame.Rows(); y++ {
		for x := 0; x < frame.Cols(); x++ {
			px := frame.GetVecbAt(y, x)
			b, g, r := px[0], px[1], px[2]
			if b == 0 && g == 0 && r == 0 {
				continue
			}
			if b != 0 || r != 0 {
				other++
			}
			if g == 255 {
				green++
			}
			if y > 60 {
				below++
			}
		}
	}

	if green == 0 {
		t.Error("expected green text pixels")
	}
	if other != 0 {
		t.Errorf("found %d pixels with blue or red components", other)
	}
	if below != 0 {
		t.Errorf("found %d drawn pixels far below the text origin", below)
	}
}

func TestOverlay_EmptyFrame(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()
	Overlay(&frame, "glass", DefaultOverlayStyle())
	if !frame.Empty() {
		t.Error("empty frame should stay empty")
	}
}

func TestNullDisplay(t *testing.T) {
	var d Display = NullDisplay{}

	frame := gocv.NewMat()
	defer frame.Close()
	d.Show(frame)

	start := time.Now()
	if k := d.Key(5 * time.Millisecond); k != -1 {
		t.Errorf("Key = %d, want -1", k)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("Key returned before the delay elapsed")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
