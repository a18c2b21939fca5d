package tags

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bagtoad/tagcluster/internal/scanner"
	"github.com/bagtoad/tagcluster/internal/vocab"
)

// AnnotationExt is the extension of per-image tag files.
const AnnotationExt = ".txt"

// AnnotationPath returns the annotation file that belongs to an image.
func AnnotationPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + AnnotationExt
}

// Load builds one record per image in dir that has a readable annotation.
// Images without an annotation, or whose first line has no tags, are skipped.
// Records come back ordered by image file name.
func Load(dir string, v *vocab.Vocabulary, logger *slog.Logger) ([]*Record, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scan, err := scanner.Scan(dir)
	if errors.Is(err, scanner.ErrNoImages) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var records []*Record
	for _, imgPath := range scan.ImagePaths {
		annPath := AnnotationPath(imgPath)
		if seen[annPath] {
			logger.Debug("duplicate image base name", "path", imgPath)
			continue
		}
		seen[annPath] = true

		rec, err := loadRecord(imgPath, annPath, v)
		if err != nil {
			logger.Debug("skipping image", "path", imgPath, "error", err)
			continue
		}
		if booru, err := ReadBooruTag(imgPath); err != nil {
			logger.Debug("cannot read boorutag sidecar", "path", imgPath, "error", err)
		} else if booru != nil {
			rec.Characters = booru.Characters
		}
		records = append(records, rec)
	}
	return records, nil
}

func loadRecord(imgPath, annPath string, v *vocab.Vocabulary) (*Record, error) {
	line, err := firstLine(annPath)
	if err != nil {
		return nil, err
	}
	text, list, err := ParseTagLine(line)
	if err != nil {
		return nil, err
	}
	return NewRecord(imgPath, text, list, v), nil
}

// NewRecord builds a record from already-parsed tags and derives its views.
func NewRecord(imgPath, tagText string, list []string, v *vocab.Vocabulary) *Record {
	r := &Record{
		Path:           imgPath,
		AnnotationPath: AnnotationPath(imgPath),
		TagText:        tagText,
		AllTags:        list,
	}
	r.derive(v)
	return r
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open annotation: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if sc.Scan() {
		return sc.Text(), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("cannot read annotation: %w", err)
	}
	return "", ErrNotAnnotated
}
