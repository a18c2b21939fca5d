package tags

import "github.com/bagtoad/tagcluster/internal/vocab"

const (
	costumeRepeats    = 2
	appearanceRepeats = 3
)

// derive fills the three projections from AllTags. Views never change after load.
func (r *Record) derive(v *vocab.Vocabulary) {
	r.costume = Join(boost(r.AllTags, v.IsNotScene, costumeRepeats))
	r.appearance = Join(boost(r.AllTags, v.IsAppearance, appearanceRepeats))
	r.scene = Join(without(r.AllTags, v.IsClothing))
}

// boost returns list followed by the distinct members matching keep, appended
// repeat times in first-occurrence order.
func boost(list []string, keep func(string) bool, repeat int) []string {
	var hits []string
	seen := make(map[string]bool)
	for _, t := range list {
		if keep(t) && !seen[t] {
			seen[t] = true
			hits = append(hits, t)
		}
	}

	out := make([]string, 0, len(list)+len(hits)*repeat)
	out = append(out, list...)
	for i := 0; i < repeat; i++ {
		out = append(out, hits...)
	}
	return out
}

func without(list []string, drop func(string) bool) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		if !drop(t) {
			out = append(out, t)
		}
	}
	return out
}

// Solo reports whether the record shows a single clothed subject. Only such
// records are clustered on the costume and appearance axes.
func (r *Record) Solo() bool {
	return r.Has("solo") && !r.Has("completely nude")
}

// Eligible returns the records clustered on axis.
func Eligible(records []*Record, axis Axis) []*Record {
	if axis == Scene {
		return records
	}
	var out []*Record
	for _, r := range records {
		if r.Solo() {
			out = append(out, r)
		}
	}
	return out
}
