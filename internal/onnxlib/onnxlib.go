// Package onnxlib unpacks the ONNX Runtime shared library that release
// builds embed with the embed_onnx tag, so the rating model runs without a
// system install.
package onnxlib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotEmbedded is returned by Extract in builds without the library.
var ErrNotEmbedded = errors.New("no embedded ONNX Runtime library for this platform")

const tempPattern = "tagcluster-onnxrt-*"

// Embedded reports whether this build carries the runtime library.
func Embedded() bool {
	return len(libraryData) > 0
}

// Extract writes the embedded library to a fresh temporary directory and
// returns the library path. Release it with Remove.
func Extract() (string, error) {
	if !Embedded() {
		return "", ErrNotEmbedded
	}

	dir, err := os.MkdirTemp("", tempPattern)
	if err != nil {
		return "", fmt.Errorf("cannot create temp dir: %w", err)
	}

	libPath := filepath.Join(dir, libraryName)
	if err := os.WriteFile(libPath, libraryData, 0755); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("cannot write library: %w", err)
	}
	return libPath, nil
}

// Remove deletes a library written by Extract. Other paths are left alone.
func Remove(libPath string) error {
	dir := filepath.Dir(libPath)
	prefix := strings.TrimSuffix(tempPattern, "*")
	if libPath == "" || !strings.HasPrefix(filepath.Base(dir), prefix) {
		return nil
	}
	return os.RemoveAll(dir)
}
