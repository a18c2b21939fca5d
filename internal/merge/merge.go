// Package merge rewrites annotation files so each image's cluster label sits
// in front of its remaining caption tags.
package merge

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bagtoad/tagcluster/internal/tags"
	"github.com/bagtoad/tagcluster/internal/vocab"
	"github.com/samber/lo"
)

// ErrEmptyAnnotation is returned by Apply for a file with no lines.
var ErrEmptyAnnotation = errors.New("annotation file is empty")

// Input is everything Merge needs for one record.
type Input struct {
	// Lines are the annotation file lines without line terminators.
	Lines []string
	// TagText is the tag portion of the first line as loaded.
	TagText string
	AllTags []string
	// Name is the costume cluster name, nil when the cluster has none.
	Name *string
	// IncludeName puts Name at the front of the label.
	IncludeName      bool
	CostumePrompt    []string
	AppearancePrompt []string
	ScenePrompt      []string
	Vocab            *vocab.Vocabulary
}

// Result is the merged annotation.
type Result struct {
	Lines   []string
	Label   []string
	Caption []string
	// Guarded is true when a line already carried the label and was left as is.
	Guarded bool
}

// Merge splits the record's tags into a label and a caption and rewrites
// every line. It never touches the filesystem.
//
// Color tags always stay in the caption. Costume prompt tags join the label.
// Scene prompt tags join it only for explicit or questionable images, and
// appearance prompt tags only when they are known appearance tags.
func Merge(in Input) Result {
	var label, caption []string
	if in.IncludeName && in.Name != nil && *in.Name != "" {
		label = append(label, *in.Name)
	}

	first := ""
	if len(in.Lines) > 0 {
		first = in.Lines[0]
	}
	mature := strings.Contains(first, "explicit") || strings.Contains(first, "questionable")

	placed := make(map[string]bool, len(in.AllTags)+1)
	for _, t := range label {
		placed[t] = true
	}
	for _, tag := range in.AllTags {
		if placed[tag] {
			continue
		}
		placed[tag] = true

		switch {
		case in.Vocab.HasColor(tag):
			caption = append(caption, tag)
		case lo.Contains(in.CostumePrompt, tag):
			label = append(label, tag)
		case mature && lo.Contains(in.ScenePrompt, tag):
			label = append(label, tag)
		case lo.Contains(in.AppearancePrompt, tag) && in.Vocab.IsAppearance(tag):
			label = append(label, tag)
		default:
			caption = append(caption, tag)
		}
	}

	res := Result{Label: label, Caption: caption}
	captionText := tags.Join(caption)
	labelText := tags.Join(label)
	for _, raw := range in.Lines {
		orig := strings.TrimSpace(raw)
		line := orig
		if in.TagText != "" {
			line = replaceTags(line, in.TagText, captionText)
		}
		if labelText != "" {
			if !hasLabel(line, label[0]) {
				line = splice(line, labelText)
			}
			if hasLabel(orig, label[0]) && line == orig {
				res.Guarded = true
			}
		}
		res.Lines = append(res.Lines, line)
	}
	return res
}

const pipe = "|||"

// replaceTags swaps the loaded tag text for the caption. An empty caption
// removes the tag text together with one adjoining separator.
func replaceTags(line, tagText, caption string) string {
	if caption != "" {
		return strings.Replace(line, tagText, caption, 1)
	}
	for _, old := range []string{tags.Separator + tagText, tagText + tags.Separator, tagText} {
		if strings.Contains(line, old) {
			return strings.Replace(line, old, "", 1)
		}
	}
	return line
}

// splice inserts label at the front of the line's tag portion: after the
// first "|||" in the pipe layout, otherwise after the leading field.
func splice(line, label string) string {
	if line == "" {
		return label
	}
	if head, tail, ok := strings.Cut(line, pipe); ok {
		tail = strings.TrimLeft(tail, " ")
		if tail == "" || strings.HasPrefix(tail, pipe) {
			return head + pipe + label + tail
		}
		return head + pipe + label + tags.Separator + tail
	}
	lead, rest, ok := strings.Cut(line, tags.Separator)
	if !ok {
		return line + tags.Separator + label
	}
	return lead + tags.Separator + label + tags.Separator + rest
}

// hasLabel reports whether the tag portion already starts with the label's
// first token, i.e. the line was merged by an earlier run.
func hasLabel(line, token string) bool {
	var rest string
	if _, tail, ok := strings.Cut(line, pipe); ok {
		rest, _, _ = strings.Cut(tail, pipe)
	} else if _, tail, ok := strings.Cut(line, tags.Separator); ok {
		rest = tail
	} else {
		return false
	}
	next, _, _ := strings.Cut(rest, tags.Separator)
	return strings.TrimSpace(next) == token
}

// Apply reads path, merges it with in, and writes the result back. Lines
// from the file replace in.Lines.
func Apply(path string, in Input) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("cannot read annotation: %w", err)
	}
	text := strings.TrimRight(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%s: %w", path, ErrEmptyAnnotation)
	}
	in.Lines = strings.Split(text, "\n")

	res := Merge(in)
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(path, []byte(strings.Join(res.Lines, "\n")), info.Mode().Perm()); err != nil {
		return Result{}, fmt.Errorf("cannot write annotation: %w", err)
	}
	return res, nil
}

// ForRecord builds the merge input for a loaded record.
func ForRecord(r *tags.Record, includeName bool, v *vocab.Vocabulary) Input {
	in := Input{
		TagText:     r.TagText,
		AllTags:     r.AllTags,
		IncludeName: includeName,
		Vocab:       v,
	}
	if a, ok := r.Assignment(tags.Costume); ok {
		in.Name = a.Name
		in.CostumePrompt = a.Prompt
	}
	if a, ok := r.Assignment(tags.Appearance); ok {
		in.AppearancePrompt = a.Prompt
	}
	if a, ok := r.Assignment(tags.Scene); ok {
		in.ScenePrompt = a.Prompt
	}
	return in
}
