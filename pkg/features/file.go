package features

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultFile is the feature file external classifiers read from.
const DefaultFile = "features.json"

// Marshal encodes the set in the classifier file format.
func Marshal(s Set) ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal decodes a set from the classifier file format.
func Unmarshal(data []byte) (Set, error) {
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return Set{}, fmt.Errorf("features: decode: %w", err)
	}
	return s, nil
}

// WriteFile overwrites path with the JSON encoding of s.
// Float values are written in their shortest exact form, so ReadFile
// reproduces them bit for bit.
func WriteFile(path string, s Set) error {
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("features: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("features: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads a set previously written by WriteFile.
func ReadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("features: read %s: %w", path, err)
	}
	return Unmarshal(data)
}
