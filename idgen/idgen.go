// Package idgen provides pluggable ID generation for tvremote.
//
// Background tasks and control requests carry time-sortable identifiers so
// that logs and task listings order naturally.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID
// (e.g. "task_", "req_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator producing prefix-1, prefix-2, ... Used in
// tests where stable IDs make assertions readable.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// Default is the UUID v7 generator.
var Default Generator = UUIDv7()

// Task generates background task identifiers.
var Task Generator = Prefixed("task_", UUIDv7())

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string, optionally carrying a "<kind>_" prefix,
// and returns it unchanged or an error.
func Parse(s string) (string, error) {
	raw := s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		raw = s[i+1:]
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	return s, nil
}
