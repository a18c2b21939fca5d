// Package materialize repackages a clustered subfolder on disk: extra
// repeat-weighted folders built from hard links, and per-cluster folders
// built by moving files.
package materialize

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bagtoad/tagcluster/internal/fileutil"
	"github.com/bagtoad/tagcluster/internal/tags"
)

// MaxCopies caps the passes made over a small cluster.
const MaxCopies = 15

// Companions are the files that travel with an image, by extension.
var Companions = []string{tags.AnnotationExt, ".npz"}

// ErrNoGroups is returned by NewPlan when no record carries a name.
var ErrNoGroups = errors.New("no named clusters to materialize")

// Group is the image paths sharing one cluster name.
type Group struct {
	Name  string
	Paths []string
}

// Groups collects records by their name on axis, in first-appearance order.
// Records without a name are left out.
func Groups(records []*tags.Record, axis tags.Axis) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range records {
		a, ok := r.Assignment(axis)
		if !ok || a.Name == nil {
			continue
		}
		i, seen := index[*a.Name]
		if !seen {
			i = len(groups)
			index[*a.Name] = i
			groups = append(groups, Group{Name: *a.Name})
		}
		groups[i].Paths = append(groups[i].Paths, r.Path)
	}
	return groups
}

// Entry is one group with its number of copy passes.
type Entry struct {
	Group
	Copies int
}

// Plan is the materialization layout for one subfolder.
type Plan struct {
	Entries      []Entry
	Largest      int
	ExtraRepeats int
}

// NewPlan sizes every group. Smaller clusters get more copies, inversely
// proportional to the largest one and capped at MaxCopies. totalRecords is
// the number of loaded records and repeats the subfolder's repeat prefix.
func NewPlan(groups []Group, totalRecords, repeats int) (Plan, error) {
	if len(groups) == 0 {
		return Plan{}, ErrNoGroups
	}
	var p Plan
	for _, g := range groups {
		p.Largest = max(p.Largest, len(g.Paths))
	}
	if p.Largest == 0 {
		return Plan{}, ErrNoGroups
	}
	p.ExtraRepeats = max(1, int(math.Ceil(float64(totalRecords*repeats)/float64(p.Largest*len(groups)))))
	for _, g := range groups {
		if len(g.Paths) == 0 {
			continue
		}
		p.Entries = append(p.Entries, Entry{Group: g, Copies: min(MaxCopies, p.Largest/len(g.Paths))})
	}
	return p, nil
}

// Op is a file operation kind.
type Op string

const (
	OpLink Op = "link"
	OpCopy Op = "copy"
	OpMove Op = "move"
)

// Action records one planned or performed file operation.
type Action struct {
	Op      Op
	Source  string
	Dest    string
	Cluster string
	// Err is set when the operation failed or was refused.
	Err error
}

// Materializer performs a Plan for one subfolder.
type Materializer struct {
	// Subfolder is the directory holding the clustered images.
	Subfolder string
	// Name is the subject name parsed from the subfolder, used for extra folders.
	Name   string
	DryRun bool
	Logger *slog.Logger
	// Link creates hard links; nil means os.Link.
	Link func(oldname, newname string) error
}

func (m *Materializer) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *Materializer) link(oldname, newname string) error {
	if m.Link != nil {
		return m.Link(oldname, newname)
	}
	return os.Link(oldname, newname)
}

// ExtraDir returns the extra folder for the given repeats, next to the
// subfolder.
func (m *Materializer) ExtraDir(repeats int, copied bool) string {
	kind := "hard link"
	if copied {
		kind = "copy"
	}
	return filepath.Join(filepath.Dir(m.Subfolder), fmt.Sprintf("%d_%s extra %s", repeats, m.Name, kind))
}

// CopyToExtra links every image and its companions Copies times into the
// extra folder, prefixing each pass with "<pass>_". When a link fails the
// file is copied instead and later files go to the "extra copy" folder.
func (m *Materializer) CopyToExtra(p Plan) []Action {
	var actions []Action
	dir := m.ExtraDir(p.ExtraRepeats, false)
	copied := false
	if !m.DryRun {
		if err := os.MkdirAll(dir, 0755); err != nil {
			m.logger().Warn("cannot create extra folder", "path", dir, "error", err)
			return nil
		}
	}

	for _, e := range p.Entries {
		for pass := 0; pass < e.Copies; pass++ {
			for _, img := range e.Paths {
				for _, src := range triplet(img) {
					if src != img && !fileutil.Exists(src) {
						continue
					}
					dst := filepath.Join(dir, fmt.Sprintf("%d_%s", pass, filepath.Base(src)))
					a := Action{Op: OpLink, Source: src, Dest: dst, Cluster: e.Name}
					if m.DryRun {
						actions = append(actions, a)
						continue
					}
					if fileutil.Exists(dst) {
						a.Err = fmt.Errorf("%s: %w", dst, os.ErrExist)
						m.logger().Info("destination exists, skipping", "path", dst)
						actions = append(actions, a)
						continue
					}
					if err := m.link(src, dst); err != nil {
						m.logger().Warn("hard link failed, copying instead", "path", src, "error", err)
						a.Op = OpCopy
						a.Err = fileutil.CopyFile(src, dst)
						if a.Err != nil {
							m.logger().Warn("cannot copy file", "path", src, "error", a.Err)
						}
						if !copied {
							copied = true
							dir = m.ExtraDir(p.ExtraRepeats, true)
							if err := os.MkdirAll(dir, 0755); err != nil {
								m.logger().Warn("cannot create extra folder", "path", dir, "error", err)
								return append(actions, a)
							}
						}
					}
					actions = append(actions, a)
				}
			}
		}
	}
	return actions
}

// MoveToClusters moves every image and its companions into
// "<subfolder>/<copies>_<name>". With sweep set, files left at the top of
// the subfolder are then moved into "<subfolder>/1_".
func (m *Materializer) MoveToClusters(p Plan, sweep bool) []Action {
	var actions []Action
	for _, e := range p.Entries {
		dir := filepath.Join(m.Subfolder, fmt.Sprintf("%d_%s", e.Copies, e.Name))
		if !m.DryRun {
			if err := os.MkdirAll(dir, 0755); err != nil {
				m.logger().Warn("cannot create cluster folder", "path", dir, "error", err)
				continue
			}
		}
		for _, img := range e.Paths {
			for _, src := range triplet(img) {
				if src != img && !fileutil.Exists(src) {
					continue
				}
				actions = append(actions, m.move(src, filepath.Join(dir, filepath.Base(src)), e.Name))
			}
		}
	}
	if sweep {
		actions = append(actions, m.sweep()...)
	}
	return actions
}

func (m *Materializer) sweep() []Action {
	dir := filepath.Join(m.Subfolder, "1_")
	entries, err := os.ReadDir(m.Subfolder)
	if err != nil {
		m.logger().Warn("cannot list subfolder", "path", m.Subfolder, "error", err)
		return nil
	}
	if !m.DryRun {
		if err := os.MkdirAll(dir, 0755); err != nil {
			m.logger().Warn("cannot create folder", "path", dir, "error", err)
			return nil
		}
	}
	var actions []Action
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		src := filepath.Join(m.Subfolder, entry.Name())
		actions = append(actions, m.move(src, filepath.Join(dir, entry.Name()), ""))
	}
	return actions
}

func (m *Materializer) move(src, dst, cluster string) Action {
	a := Action{Op: OpMove, Source: src, Dest: dst, Cluster: cluster}
	if m.DryRun {
		return a
	}
	if err := fileutil.MoveFile(src, dst); err != nil {
		a.Err = err
		if errors.Is(err, os.ErrExist) {
			m.logger().Info("destination exists, skipping", "path", dst)
		} else {
			m.logger().Warn("cannot move file", "path", src, "error", err)
		}
	}
	return a
}

// triplet returns the image path followed by its companion paths.
func triplet(img string) []string {
	base := strings.TrimSuffix(img, filepath.Ext(img))
	out := []string{img}
	for _, ext := range Companions {
		out = append(out, base+ext)
	}
	return out
}

// Failed counts actions that carry an error.
func Failed(actions []Action) int {
	n := 0
	for _, a := range actions {
		if a.Err != nil {
			n++
		}
	}
	return n
}
