// Package scanner provides directory scanning, image file filtering, and
// discovery of "<repeats>_<name>" dataset subfolders.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SupportedExtensions contains the set of image file extensions we process.
var SupportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// ErrNoImages is returned by Scan when a directory holds no image files.
var ErrNoImages = errors.New("no image files found")

// Result holds the output of scanning a directory.
type Result struct {
	ImagePaths   []string
	SkippedCount int
}

// Scan walks the given directory (non-recursive) and returns image file paths
// and a count of skipped non-image files. Paths are ordered by file name.
func Scan(dir string) (*Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory: %w", err)
	}

	result := &Result{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if SupportedExtensions[ext] {
			result.ImagePaths = append(result.ImagePaths, filepath.Join(dir, entry.Name()))
		} else {
			result.SkippedCount++
		}
	}

	if len(result.ImagePaths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	return result, nil
}

// extraMarker appears in the names of folders produced by a previous run.
const extraMarker = " extra "

// Subfolder is a dataset folder named "<repeats>_<name>".
type Subfolder struct {
	Path    string
	Base    string
	Repeats int
	Name    string
}

// ParseSubfolderName splits a folder name like "5_alice" into its repeat
// weight and display name. Underscores in the name become spaces. Names
// without a numeric prefix, or marked as earlier extra output, are rejected.
func ParseSubfolderName(base string) (repeats int, name string, ok bool) {
	if strings.Contains(base, extraMarker) {
		return 0, "", false
	}
	prefix, rest, found := strings.Cut(base, "_")
	if !found || prefix == "" {
		return 0, "", false
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n < 0 || strings.ContainsAny(prefix, "+-") {
		return 0, "", false
	}
	return n, strings.TrimSpace(strings.ReplaceAll(rest, "_", " ")), true
}

// Subfolders lists the qualifying child folders of parent, ordered by name,
// and the names of the child folders that were skipped.
func Subfolders(parent string) ([]Subfolder, []string, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read directory: %w", err)
	}

	var folders []Subfolder
	var skipped []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		repeats, name, ok := ParseSubfolderName(entry.Name())
		if !ok {
			skipped = append(skipped, entry.Name())
			continue
		}
		folders = append(folders, Subfolder{
			Path:    filepath.Join(parent, entry.Name()),
			Base:    entry.Name(),
			Repeats: repeats,
			Name:    name,
		})
	}
	return folders, skipped, nil
}
