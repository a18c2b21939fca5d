package tags

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/traditionalchinese"
)

// BooruTag is the content of a .boorutag sidecar written by booru downloaders.
type BooruTag struct {
	Characters []string
	Artist     string
	Tags       []string
}

const (
	booruCharacterLine = 0
	booruArtistLine    = 6
	booruTagLine       = 18
)

var booruSidecarExts = []string{".jpg.boorutag", ".png.boorutag"}

var parenthesized = regexp.MustCompile(`\(.*?\)`)

// ReadBooruTag reads the sidecar next to imagePath. It returns nil, nil when
// no sidecar exists. Sidecars are Big5 (code page 950) encoded.
func ReadBooruTag(imagePath string) (*BooruTag, error) {
	base := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	for _, ext := range booruSidecarExts {
		bt, err := readBooruFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return bt, err
	}
	return nil, nil
}

func readBooruFile(path string) (*BooruTag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(traditionalchinese.Big5.NewDecoder().Reader(f))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(lines) == 0 {
		return &BooruTag{}, nil
	}

	bt := &BooruTag{}
	for _, c := range strings.Split(parenthesized.ReplaceAllString(lines[booruCharacterLine], ""), ",") {
		c = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(c, `\`, ""), "_", " "))
		if c != "" {
			bt.Characters = append(bt.Characters, c)
		}
	}
	if len(lines) > booruTagLine {
		bt.Artist = strings.TrimSpace(lines[booruArtistLine])
		bt.Tags = Split(lines[booruTagLine])
	}
	return bt, nil
}
