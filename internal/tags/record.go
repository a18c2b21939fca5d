// Package tags loads per-image tag annotations and derives the per-axis
// projections the clustering stages work on.
package tags

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator joins and splits tags in annotation files and projections.
const Separator = ", "

// Axis is one of the independent clustering dimensions.
type Axis string

const (
	Costume    Axis = "costume"
	Appearance Axis = "appearance"
	Scene      Axis = "scene"
)

// Axes lists every axis in processing order.
var Axes = []Axis{Costume, Appearance, Scene}

// ParseAxis validates an axis name.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToLower(strings.TrimSpace(s))); a {
	case Costume, Appearance, Scene:
		return a, nil
	}
	return "", fmt.Errorf("unknown axis %q (want costume, appearance or scene)", s)
}

// Prefix returns the placeholder-name prefix for the axis, e.g. "costume_".
func (a Axis) Prefix() string {
	return string(a) + "_"
}

var (
	// ErrNotAnnotated is returned when an annotation yields no tags.
	ErrNotAnnotated = errors.New("annotation has no tag list")
	// ErrAlreadyAssigned is returned when an axis slot is written twice.
	ErrAlreadyAssigned = errors.New("cluster assignment already set")
)

// Assignment is the cluster result for one axis.
type Assignment struct {
	// Name is nil when the cluster was rejected or left unnamed.
	Name   *string
	Prompt []string
}

// NameOr returns the assigned name or fallback when unnamed.
func (a Assignment) NameOr(fallback string) string {
	if a.Name == nil {
		return fallback
	}
	return *a.Name
}

// Record is one image with its tag annotation.
type Record struct {
	Path           string
	AnnotationPath string
	// TagText is the tag portion of the first annotation line exactly as stored.
	TagText string
	AllTags []string
	// Characters comes from an optional .boorutag sidecar.
	Characters []string

	costume    string
	appearance string
	scene      string

	assigned map[Axis]Assignment
}

// View returns the projection string used to vectorize the record on axis.
func (r *Record) View(axis Axis) string {
	switch axis {
	case Costume:
		return r.costume
	case Appearance:
		return r.appearance
	case Scene:
		return r.scene
	}
	return ""
}

// Assign writes the axis slot. Each slot can be written once per run.
func (r *Record) Assign(axis Axis, name *string, prompt []string) error {
	if r.assigned == nil {
		r.assigned = make(map[Axis]Assignment, len(Axes))
	}
	if _, ok := r.assigned[axis]; ok {
		return fmt.Errorf("%s %s: %w", r.Path, axis, ErrAlreadyAssigned)
	}
	var n *string
	if name != nil {
		v := *name
		n = &v
	}
	r.assigned[axis] = Assignment{Name: n, Prompt: append([]string(nil), prompt...)}
	return nil
}

// Assignment returns the axis slot and whether it has been written.
func (r *Record) Assignment(axis Axis) (Assignment, bool) {
	a, ok := r.assigned[axis]
	return a, ok
}

// Has reports whether tag is one of the record's tags.
func (r *Record) Has(tag string) bool {
	for _, t := range r.AllTags {
		if t == tag {
			return true
		}
	}
	return false
}

// ParseTagLine extracts the tag list from the first line of an annotation.
// Two layouts are accepted: "description|||tags|||..." and
// "leading field, tag, tag, ...". It returns the raw tag text and the split tags.
func ParseTagLine(line string) (string, []string, error) {
	line = strings.TrimSpace(line)

	var body string
	if strings.Contains(line, "|||") {
		parts := strings.Split(line, "|||")
		body = strings.TrimSpace(parts[1])
	} else if i := strings.Index(line, Separator); i >= 0 {
		body = line[i+len(Separator):]
	} else {
		body = line
	}

	list := Split(body)
	if len(list) == 0 {
		return "", nil, ErrNotAnnotated
	}
	return body, list, nil
}

// Split breaks tag text on the separator, trims and NFC-normalizes each tag,
// and drops empty entries.
func Split(text string) []string {
	var out []string
	for _, t := range strings.Split(text, Separator) {
		t = norm.NFC.String(strings.TrimSpace(strings.Trim(t, ",")))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Join is the inverse of Split.
func Join(list []string) string {
	return strings.Join(list, Separator)
}
