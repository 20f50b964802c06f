// Package config provides environment variable helpers for trashcam commands.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Prefix is prepended to every variable name looked up by this package.
const Prefix = "TRASHCAM_"

// String returns the value of TRASHCAM_<name>.
// Falls back to def if unset or empty.
func String(name, def string) string {
	if v := os.Getenv(Prefix + name); v != "" {
		return v
	}
	return def
}

// Int returns TRASHCAM_<name> parsed as an int, or def if unset or invalid.
func Int(name string, def int) int {
	v := os.Getenv(Prefix + name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Float returns TRASHCAM_<name> parsed as a float64, or def if unset or invalid.
func Float(name string, def float64) float64 {
	v := os.Getenv(Prefix + name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// Bool returns TRASHCAM_<name> parsed as a bool, or def if unset or invalid.
func Bool(name string, def bool) bool {
	v := os.Getenv(Prefix + name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Duration returns TRASHCAM_<name> parsed with time.ParseDuration, or def.
func Duration(name string, def time.Duration) time.Duration {
	v := os.Getenv(Prefix + name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}

// Fields returns TRASHCAM_<name> split on whitespace, or def if unset.
// Used for command lines such as "julia classify_trash.jl".
func Fields(name string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(Prefix + name))
	if v == "" {
		return def
	}
	return strings.Fields(v)
}
