package tags

import (
	"os"
	"time"
)

// Fresh reports whether the file at path was modified less than days ago.
// A non-positive window or a missing file is never fresh.
func Fresh(path string, days int, now time.Time) bool {
	if days <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) < time.Duration(days)*24*time.Hour
}
