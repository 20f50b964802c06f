package features

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadFile_ExactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	sets := []Set{
		{},
		{Color: [3]float64{0.1, 1.0 / 3.0, 2.0 / 7.0}, Shape: 4, Texture: 12.345678901234567},
		{Color: [3]float64{179.99999999999997, 255, 1e-300}, Shape: 17, Texture: math.SmallestNonzeroFloat64},
		{Color: [3]float64{97.41234, 63.5, 128.25}, Shape: 0, Texture: 0.000123},
	}

	for _, want := range sets {
		if err := WriteFile(path, want); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if got != want {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	if err := WriteFile(path, Set{Shape: 12, Texture: 99.5, Color: [3]float64{1, 2, 3}}); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, Set{Shape: 3}); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != (Set{Shape: 3}) {
		t.Errorf("ReadFile = %+v, want only the latest set", got)
	}
}

func TestMarshal_FieldNames(t *testing.T) {
	data, err := Marshal(Set{Color: [3]float64{1, 2, 3}, Shape: 4, Texture: 5.5})
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"color", "shape", "texture"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if len(raw) != 3 {
		t.Errorf("got %d keys, want 3: %s", len(raw), data)
	}
	if string(raw["color"]) != "[1,2,3]" {
		t.Errorf("color = %s, want [1,2,3]", raw["color"])
	}
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(bad); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestSet_Vector(t *testing.T) {
	v := Set{Color: [3]float64{10, 20, 30}, Shape: 4, Texture: 2.5}.Vector()
	want := []float32{10, 20, 30, 4, 2.5}
	if len(v) != len(want) {
		t.Fatalf("len = %d, want %d", len(v), len(want))
	}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("v[%d] = %v, want %v", i, v[i], want[i])
		}
	}
}
