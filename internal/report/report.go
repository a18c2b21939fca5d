// Package report writes the cluster results of each subfolder to a markdown
// file and prints run summaries to the console.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bagtoad/tagcluster/internal/tags"
	"github.com/facette/natsort"
)

// FileName is the markdown report written into the parent directory.
const FileName = "cluster_results.md"

// Cluster is one named cluster as it appears in the report.
type Cluster struct {
	Axis   tags.Axis
	Name   string
	Prompt []string
	Count  int
}

// Summary is the report section of one subfolder.
type Summary struct {
	Subfolder string
	Total     int
	Axes      []tags.Axis
	// Clusters are natural-sorted by name.
	Clusters []Cluster
}

// Summarize groups the named assignments of records per axis. Clusters
// without a name are left out.
func Summarize(subfolder string, records []*tags.Record, axes []tags.Axis) Summary {
	s := Summary{Subfolder: subfolder, Total: len(records), Axes: axes}
	for _, axis := range axes {
		index := make(map[string]int)
		for _, r := range records {
			a, ok := r.Assignment(axis)
			if !ok || a.Name == nil {
				continue
			}
			i, seen := index[*a.Name]
			if !seen {
				i = len(s.Clusters)
				index[*a.Name] = i
				s.Clusters = append(s.Clusters, Cluster{Axis: axis, Name: *a.Name, Prompt: a.Prompt})
			}
			s.Clusters[i].Count++
		}
	}
	sort.SliceStable(s.Clusters, func(i, j int) bool {
		a, b := s.Clusters[i].Name, s.Clusters[j].Name
		if a == b {
			return false
		}
		return natsort.Compare(a, b)
	})
	return s
}

// DynamicPrompt joins the prompts of one axis as "{p1|p2|...}".
func (s Summary) DynamicPrompt(axis tags.Axis) string {
	var prompts []string
	for _, c := range s.Clusters {
		if c.Axis == axis {
			prompts = append(prompts, tags.Join(c.Prompt))
		}
	}
	return "{" + strings.Join(prompts, "|") + "}"
}

// WriteMarkdown writes one subfolder section.
func WriteMarkdown(w io.Writer, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Cluster results - %s\n", s.Subfolder)
	fmt.Fprintf(&b, "Total images: %d\n", s.Total)
	for _, c := range s.Clusters {
		fmt.Fprintf(&b, "## %s\n", c.Name)
		fmt.Fprintf(&b, "%s\n", tags.Join(c.Prompt))
		fmt.Fprintf(&b, "Images in cluster: %d\n\n", c.Count)
	}
	for _, axis := range s.Axes {
		fmt.Fprintf(&b, "%sdynamic_prompt : %s  \n", axis.Prefix(), s.DynamicPrompt(axis))
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Reset truncates the report at path and writes its title.
func Reset(path string) error {
	return os.WriteFile(path, []byte("# Cluster results\n\n"), 0644)
}

// Append adds a subfolder section to the report at path.
func Append(path string, s Summary) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot open report: %w", err)
	}
	if err := WriteMarkdown(f, s); err != nil {
		f.Close()
		return fmt.Errorf("cannot write report: %w", err)
	}
	return f.Close()
}
