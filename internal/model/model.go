// Package model downloads the content rating model and runs it with ONNX
// Runtime.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const hfBaseURL = "https://huggingface.co/deepghs/anime_dbrating/resolve/main"

// ModelFile describes a file to download.
type ModelFile struct {
	Name   string
	URL    string
	SHA256 string // expected hash (empty = skip verification)
}

// RequiredFiles defines all files needed for rating inference.
var RequiredFiles = []ModelFile{
	{
		Name: "dbrating.onnx",
		URL:  hfBaseURL + "/mobilenetv3_large_100_dist/model.onnx",
	},
}

// ModelsDir returns the model storage directory. An explicit dir wins over
// ~/.tagcluster/models/.
func ModelsDir(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".tagcluster", "models"), nil
}

// EnsureModels checks that all required files exist in dir, downloading any
// that are missing.
func EnsureModels(dir string, progressFn func(filename string, downloaded, total int64)) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create models directory: %w", err)
	}

	for _, m := range RequiredFiles {
		path := filepath.Join(dir, m.Name)
		if _, err := os.Stat(path); err == nil {
			continue
		}

		if err := downloadFile(path, m.URL, m.SHA256, func(downloaded, total int64) {
			if progressFn != nil {
				progressFn(m.Name, downloaded, total)
			}
		}); err != nil {
			os.Remove(path)
			return fmt.Errorf("failed to download %s: %w", m.Name, err)
		}
	}
	return nil
}

// FilePath returns the full path to a named file in dir.
func FilePath(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file not found: %s (run with model naming to download)", path)
	}
	return path, nil
}

func downloadFile(destPath, url, expectedHash string, progressFn func(downloaded, total int64)) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("cannot create file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	hasher := sha256.New()
	pw := &progressWriter{w: io.MultiWriter(f, hasher), total: resp.ContentLength, fn: progressFn}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		return fmt.Errorf("download interrupted: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cannot write file: %w", err)
	}

	if expectedHash != "" {
		actualHash := hex.EncodeToString(hasher.Sum(nil))
		if actualHash != expectedHash {
			return fmt.Errorf("SHA256 mismatch: expected %s, got %s", expectedHash, actualHash)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("cannot finalize download: %w", err)
	}
	return nil
}

type progressWriter struct {
	w     io.Writer
	n     int64
	total int64
	fn    func(downloaded, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.n += int64(n)
	if p.fn != nil {
		p.fn(p.n, p.total)
	}
	return n, err
}
