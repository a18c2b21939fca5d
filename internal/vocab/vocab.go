// Package vocab provides the reference tag vocabularies that separate subject
// tags (appearance, clothing) from scene tags.
package vocab

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocab.yaml
var defaultData []byte

// Vocabulary is an immutable set of known tags. Build one with Parse, Default,
// or Resolve and pass it to the components that need it.
type Vocabulary struct {
	appearance map[string]struct{}
	clothing   map[string]struct{}
	colors     []string
	nsfw       []*regexp.Regexp
}

type document struct {
	Appearance []string `yaml:"appearance"`
	Clothing   []string `yaml:"clothing"`
	Colors     []string `yaml:"colors"`
	NSFW       []string `yaml:"nsfw"`
}

// Parse decodes a YAML vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(doc.Appearance) == 0 && len(doc.Clothing) == 0 {
		return nil, errors.New("vocabulary defines no appearance or clothing tags")
	}

	v := &Vocabulary{
		appearance: toSet(doc.Appearance),
		clothing:   toSet(doc.Clothing),
	}
	for _, c := range doc.Colors {
		if c != "" {
			v.colors = append(v.colors, c)
		}
	}
	for _, p := range doc.NSFW {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("nsfw pattern %q: %w", p, err)
		}
		v.nsfw = append(v.nsfw, re)
	}
	return v, nil
}

// Default returns the built-in vocabulary.
func Default() (*Vocabulary, error) {
	return Parse(defaultData)
}

// New builds a vocabulary directly from tag lists. Mostly useful in tests.
func New(appearance, clothing, colors []string) *Vocabulary {
	return &Vocabulary{
		appearance: toSet(appearance),
		clothing:   toSet(clothing),
		colors:     append([]string(nil), colors...),
	}
}

// customPath returns the path to the user's vocabulary override file.
func customPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tagcluster", "vocab.yaml"), nil
}

// LoadFile reads a vocabulary from path. Returns nil if the file does not exist.
func LoadFile(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open vocabulary file: %w", err)
	}
	return Parse(data)
}

// Resolve returns the vocabulary to use for a run.
// Priority: explicit path > ~/.tagcluster/vocab.yaml > built-in.
func Resolve(explicitPath string) (*Vocabulary, error) {
	if explicitPath != "" {
		v, err := LoadFile(explicitPath)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("vocabulary file not found: %s", explicitPath)
		}
		return v, nil
	}

	if path, err := customPath(); err == nil {
		v, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}

	return Default()
}

// IsAppearance reports whether tag is in the appearance vocabulary.
func (v *Vocabulary) IsAppearance(tag string) bool {
	_, ok := v.appearance[tag]
	return ok
}

// IsClothing reports whether tag is in the clothing vocabulary.
func (v *Vocabulary) IsClothing(tag string) bool {
	_, ok := v.clothing[tag]
	return ok
}

// IsNotScene reports whether tag belongs to either subject vocabulary.
func (v *Vocabulary) IsNotScene(tag string) bool {
	return v.IsAppearance(tag) || v.IsClothing(tag)
}

// HasColor reports whether tag contains any palette word.
func (v *Vocabulary) HasColor(tag string) bool {
	for _, c := range v.colors {
		if strings.Contains(tag, c) {
			return true
		}
	}
	return false
}

// IsNSFW reports whether any tag matches a blacklist pattern.
func (v *Vocabulary) IsNSFW(tags []string) bool {
	joined := strings.Join(tags, ", ")
	for _, re := range v.nsfw {
		if re.MatchString(joined) {
			return true
		}
	}
	return false
}

// Size returns the number of appearance and clothing entries.
func (v *Vocabulary) Size() (appearance, clothing int) {
	return len(v.appearance), len(v.clothing)
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}
