// Package fileutil holds the copy, link and move helpers used when
// repackaging a dataset.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// CopyFile streams src to dst. It refuses to overwrite an existing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// MoveFile renames src to dst, falling back to copy and delete when the two
// paths are on different filesystems. dst must not exist.
func MoveFile(src, dst string) error {
	if Exists(dst) {
		return fmt.Errorf("%s: %w", dst, os.ErrExist)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
