// Package backup snapshots annotation files before they are rewritten.
package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bagtoad/tagcluster/internal/ledger"
	"github.com/bagtoad/tagcluster/internal/tags"
)

// FileName returns the archive name for a snapshot taken at now.
func FileName(now time.Time) string {
	return "backup_" + now.Format("20060102150405") + ".zip"
}

// Snapshot writes every annotation file under parent into a deflate zip in
// parent and returns its path. Archive names are relative to parent. The
// state directory is skipped.
func Snapshot(parent string, now time.Time) (string, error) {
	path := filepath.Join(parent, FileName(now))
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(parent, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ledger.DirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), tags.AnnotationExt) {
			return nil
		}
		rel, err := filepath.Rel(parent, p)
		if err != nil {
			return err
		}
		return addFile(zw, p, filepath.ToSlash(rel))
	})

	closeErr := zw.Close()
	if err := out.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if walkErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if walkErr != nil {
			return "", fmt.Errorf("write backup: %w", walkErr)
		}
		return "", fmt.Errorf("finish backup: %w", closeErr)
	}
	return path, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
