package naming

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bagtoad/tagcluster/internal/characterize"
	"github.com/bagtoad/tagcluster/internal/tags"
	"github.com/bagtoad/tagcluster/internal/vocab"
	"github.com/samber/lo"
)

const (
	// DefaultMaxNamed caps the clusters named per axis run.
	DefaultMaxNamed = 20
	// DefaultSampleImages caps the images placed on a contact sheet.
	DefaultSampleImages = 8
	// minVocabularyOverlap is the eligibility gate for subject axes.
	minVocabularyOverlap = 2
)

// SafeRatings are the classifier labels that may be sent to the service.
var SafeRatings = map[string]bool{
	"general":      true,
	"sensitive":    true,
	"questionable": true,
}

// Sheet is a composited contact sheet of cluster members.
type Sheet interface {
	Image() image.Image
	JPEG() ([]byte, error)
	Save(path string) error
}

// SheetBuilder composes contact sheets from image paths.
type SheetBuilder interface {
	Build(paths []string) (Sheet, error)
}

// ReviewRequest is what a reviewer sees for one cluster.
type ReviewRequest struct {
	Axis        tags.Axis
	Placeholder string
	Prompt      []string
	Existing    []string
	// SheetPath is empty when no contact sheet could be built.
	SheetPath string
	Sensitive bool
}

// Reviewer asks a human to confirm, rename, or reject a cluster. It returns
// the raw answer.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (string, error)
}

// Service proposes a name for a contact sheet. It returns the raw reply.
type Service interface {
	NameOutfit(ctx context.Context, jpeg []byte, existing []string) (string, error)
}

// SafetyClassifier rates an image, e.g. "general" or "explicit".
type SafetyClassifier interface {
	Rate(img image.Image) (string, error)
}

// Result pairs a cluster with its rank and naming outcome.
type Result struct {
	Cluster characterize.Cluster
	Rank    int
	Outcome Outcome
}

// Namer names the clusters of one axis run.
type Namer struct {
	Mode         Mode
	Vocab        *vocab.Vocabulary
	Reviewer     Reviewer
	Service      Service
	Safety       SafetyClassifier
	Sheets       SheetBuilder
	SheetDir     string
	MaxNamed     int
	SampleImages int
	Logger       *slog.Logger
}

func (n *Namer) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

// Rank orders clusters by descending size; ties keep the lower cluster ID first.
func Rank(clusters []characterize.Cluster) []characterize.Cluster {
	ranked := append([]characterize.Cluster(nil), clusters...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Size() != ranked[j].Size() {
			return ranked[i].Size() > ranked[j].Size()
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// Name assigns an outcome to every cluster and writes the name and prompt
// onto each member record. records are the rows the clusters index into.
func (n *Namer) Name(ctx context.Context, axis tags.Axis, clusters []characterize.Cluster, records []*tags.Record, reg *Registry) ([]Result, error) {
	maxNamed := n.MaxNamed
	if maxNamed <= 0 {
		maxNamed = DefaultMaxNamed
	}

	ranked := Rank(clusters)
	results := make([]Result, 0, len(ranked))
	for rank, c := range ranked {
		outcome, err := n.decide(ctx, axis, rank, maxNamed, c, records, reg)
		if err != nil {
			return nil, fmt.Errorf("naming %s cluster %d: %w", axis, c.ID, err)
		}
		if Named(outcome) {
			reg.Add(outcome.FinalName())
		}
		n.logger().Info("cluster named",
			"axis", string(axis),
			"rank", rank,
			"size", c.Size(),
			"name", outcome.FinalName(),
			"source", outcome.Source(),
		)

		var name *string
		if Named(outcome) {
			name = lo.ToPtr(outcome.FinalName())
		}
		for _, m := range c.Members {
			if m < 0 || m >= len(records) {
				return nil, fmt.Errorf("cluster %d member %d out of range", c.ID, m)
			}
			if err := records[m].Assign(axis, name, c.Prompt); err != nil {
				return nil, err
			}
		}
		results = append(results, Result{Cluster: c, Rank: rank, Outcome: outcome})
	}
	return results, nil
}

// decide only fails when ctx is done; every other problem falls back to a
// placeholder.
func (n *Namer) decide(ctx context.Context, axis tags.Axis, rank, maxNamed int, c characterize.Cluster, records []*tags.Record, reg *Registry) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rank >= maxNamed {
		return Unnamed{}, nil
	}
	placeholder := fmt.Sprintf("%s%d", axis.Prefix(), rank)
	if axis == tags.Scene {
		return Placeholder{Name: placeholder}, nil
	}
	if !n.eligible(axis, c.Prompt) {
		return Rejection{Reason: "prompt shares fewer than 2 tags with the vocabulary"}, nil
	}

	switch n.Mode {
	case ModeManual:
		sheet, sensitive := n.sheet(c, records)
		return n.review(ctx, axis, placeholder, c, sheet, sensitive, reg)
	case ModeModel:
		sheet, sensitive := n.sheet(c, records)
		if out, ok := n.askService(ctx, sheet, sensitive, reg); ok {
			return out, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return n.review(ctx, axis, placeholder, c, sheet, sensitive, reg)
	}
	return Placeholder{Name: placeholder}, nil
}

// eligible applies the vocabulary gate: costume prompts need two clothing
// tags, appearance prompts two appearance tags.
func (n *Namer) eligible(axis tags.Axis, prompt []string) bool {
	in := n.Vocab.IsClothing
	if axis == tags.Appearance {
		in = n.Vocab.IsAppearance
	}
	return lo.CountBy(prompt, in) >= minVocabularyOverlap
}

// sheet builds a contact sheet from up to SampleImages members, preferring
// members whose tags are not on the NSFW blacklist. sensitive is true when
// only blacklisted members were available.
func (n *Namer) sheet(c characterize.Cluster, records []*tags.Record) (Sheet, bool) {
	if n.Sheets == nil {
		return nil, false
	}
	limit := n.SampleImages
	if limit <= 0 {
		limit = DefaultSampleImages
	}

	var safe, all []string
	for _, m := range c.Members {
		all = append(all, records[m].Path)
		if !n.Vocab.IsNSFW(records[m].AllTags) {
			safe = append(safe, records[m].Path)
		}
	}
	paths, sensitive := safe, false
	if len(paths) == 0 {
		paths, sensitive = all, true
	}
	if len(paths) > limit {
		paths = paths[:limit]
	}

	sheet, err := n.Sheets.Build(paths)
	if err != nil {
		n.logger().Warn("cannot build contact sheet", "cluster", c.ID, "error", err)
		return nil, sensitive
	}
	return sheet, sensitive
}

func (n *Namer) askService(ctx context.Context, sheet Sheet, sensitive bool, reg *Registry) (Outcome, bool) {
	if n.Service == nil || sheet == nil || sensitive {
		return nil, false
	}
	if n.Safety == nil {
		n.logger().Warn("no safety classifier configured, using manual review")
		return nil, false
	}
	rating, err := n.Safety.Rate(sheet.Image())
	if err != nil {
		n.logger().Warn("safety classification failed, using manual review", "error", err)
		return nil, false
	}
	if !SafeRatings[rating] {
		n.logger().Info("contact sheet not safe for service, using manual review", "rating", rating)
		return nil, false
	}

	data, err := sheet.JPEG()
	if err != nil {
		n.logger().Warn("cannot encode contact sheet", "error", err)
		return nil, false
	}
	existing := reg.Names()
	reply, err := n.Service.NameOutfit(ctx, data, existing)
	if err != nil {
		n.logger().Warn("naming service failed, using manual review", "error", err)
		return nil, false
	}
	name, rejected, err := ParseServiceReply(reply)
	if err != nil {
		n.logger().Warn("unusable naming service reply, using manual review", "reply", reply)
		return nil, false
	}
	if rejected {
		n.logger().Info("naming service rejected cluster, using manual review")
		return nil, false
	}
	return ServiceDecision{Name: name, Reply: reply, Rating: rating, Existing: existing}, true
}

func (n *Namer) review(ctx context.Context, axis tags.Axis, placeholder string, c characterize.Cluster, sheet Sheet, sensitive bool, reg *Registry) (Outcome, error) {
	req := ReviewRequest{
		Axis:        axis,
		Placeholder: placeholder,
		Prompt:      c.Prompt,
		Existing:    reg.Names(),
		Sensitive:   sensitive,
	}
	if sheet != nil {
		dir := n.SheetDir
		if dir == "" {
			dir = os.TempDir()
		}
		path := filepath.Join(dir, placeholder+".jpg")
		if err := sheet.Save(path); err != nil {
			n.logger().Warn("cannot save contact sheet", "path", path, "error", err)
		} else {
			req.SheetPath = path
		}
	}

	if n.Reviewer == nil {
		n.logger().Warn("no reviewer available, keeping placeholder", "name", placeholder)
		return Placeholder{Name: placeholder}, nil
	}
	answer, err := n.Reviewer.Review(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		n.logger().Warn("review failed, keeping placeholder", "name", placeholder, "error", err)
		return Placeholder{Name: placeholder}, nil
	}
	out := ParseReviewAnswer(answer, placeholder)
	if h, ok := out.(HumanDecision); ok {
		h.SheetPath = req.SheetPath
		h.Sensitive = sensitive
		out = h
	}
	return out, nil
}
