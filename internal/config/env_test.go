package config

import (
	"reflect"
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("TRASHCAM_DEVICE", "/dev/video2")
	if got := String("DEVICE", "0"); got != "/dev/video2" {
		t.Errorf("String = %q, want /dev/video2", got)
	}
	if got := String("UNSET_VALUE", "0"); got != "0" {
		t.Errorf("String fallback = %q, want 0", got)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("TRASHCAM_WIDTH", "640")
	t.Setenv("TRASHCAM_BAD", "abc")

	if got := Int("WIDTH", 320); got != 640 {
		t.Errorf("Int = %d, want 640", got)
	}
	if got := Int("BAD", 320); got != 320 {
		t.Errorf("Int with invalid value = %d, want fallback 320", got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("TRASHCAM_RATIO", "0.05")
	if got := Float("RATIO", 0.02); got != 0.05 {
		t.Errorf("Float = %v, want 0.05", got)
	}
	if got := Float("MISSING", 0.02); got != 0.02 {
		t.Errorf("Float fallback = %v, want 0.02", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("TRASHCAM_HEADLESS", "true")
	if !Bool("HEADLESS", false) {
		t.Error("Bool should be true")
	}
	t.Setenv("TRASHCAM_HEADLESS", "nope")
	if Bool("HEADLESS", false) {
		t.Error("Bool with invalid value should fall back to false")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("TRASHCAM_TIMEOUT", "1500ms")
	if got := Duration("TIMEOUT", 0); got != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got)
	}
}

func TestFields(t *testing.T) {
	def := []string{"julia", "classify_trash.jl"}
	if got := Fields("CLASSIFIER", def); !reflect.DeepEqual(got, def) {
		t.Errorf("Fields fallback = %v, want %v", got, def)
	}

	t.Setenv("TRASHCAM_CLASSIFIER", "  ./classify   --model=knn ")
	want := []string{"./classify", "--model=knn"}
	if got := Fields("CLASSIFIER", def); !reflect.DeepEqual(got, want) {
		t.Errorf("Fields = %v, want %v", got, want)
	}
}
