// Package pipeline runs the full clustering pass over a parent directory:
// load, cluster and name each axis, merge annotations, materialize the
// dataset, and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bagtoad/tagcluster/internal/backup"
	"github.com/bagtoad/tagcluster/internal/characterize"
	"github.com/bagtoad/tagcluster/internal/cluster"
	"github.com/bagtoad/tagcluster/internal/config"
	"github.com/bagtoad/tagcluster/internal/contactsheet"
	"github.com/bagtoad/tagcluster/internal/ledger"
	"github.com/bagtoad/tagcluster/internal/materialize"
	"github.com/bagtoad/tagcluster/internal/merge"
	"github.com/bagtoad/tagcluster/internal/naming"
	"github.com/bagtoad/tagcluster/internal/report"
	"github.com/bagtoad/tagcluster/internal/scanner"
	"github.com/bagtoad/tagcluster/internal/tags"
	"github.com/bagtoad/tagcluster/internal/vectorize"
	"github.com/bagtoad/tagcluster/internal/vocab"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// MinRecords is the smallest subfolder that is clustered.
const MinRecords = 3

// LockName is the advisory lock file created in the parent directory.
const LockName = ".tagcluster.lock"

// ErrLocked is returned when another run holds the parent directory.
var ErrLocked = errors.New("another tagcluster run is using this directory")

// Recorder stores named clusters. *ledger.Store implements it.
type Recorder interface {
	RecordClusters(ctx context.Context, entries []ledger.Entry) error
}

// Runner holds the collaborators of one run. Config and Vocab are required.
type Runner struct {
	Config *config.Config
	Vocab  *vocab.Vocabulary
	DryRun bool

	Reviewer naming.Reviewer
	Service  naming.Service
	Safety   naming.SafetyClassifier
	// Ledger may be nil.
	Ledger Recorder

	// Out receives the console summary; nil means stdout.
	Out    io.Writer
	Logger *slog.Logger
	// Now and Link are replaced in tests.
	Now  func() time.Time
	Link func(oldname, newname string) error
}

// SubfolderResult is the outcome of one subfolder.
type SubfolderResult struct {
	Subfolder scanner.Subfolder
	Records   []*tags.Record
	Axes      []tags.Axis
	Named     map[tags.Axis][]naming.Result
	Merged    int
	Actions   []materialize.Action
	Summary   report.Summary
	// Err is set when the subfolder was abandoned.
	Err error
}

// Result summarizes a run.
type Result struct {
	RunID      string
	BackupPath string
	ReportPath string
	Subfolders []SubfolderResult
	// Skipped lists child folders that do not follow the "<repeats>_<name>" pattern.
	Skipped []string
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

// Run processes every qualifying subfolder of parent. A failing subfolder is
// logged and the run continues.
func (r *Runner) Run(ctx context.Context, parent string) (*Result, error) {
	if r.Config == nil || r.Vocab == nil {
		return nil, errors.New("runner needs a config and a vocabulary")
	}
	info, err := os.Stat(parent)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", parent)
	}

	lock := flock.New(filepath.Join(parent, LockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger().Warn("failed to release lock", "error", err)
		}
	}()

	res := &Result{RunID: uuid.NewString()}
	logger := r.logger().With("run_id", res.RunID)
	logger.Info("run started", "parent", parent, "dry_run", r.DryRun)

	folders, skipped, err := scanner.Subfolders(parent)
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped
	for _, name := range skipped {
		logger.Info("skipping folder", "folder", name)
	}

	if !r.DryRun {
		if res.BackupPath, err = backup.Snapshot(parent, r.now()); err != nil {
			return nil, err
		}
		logger.Info("annotations backed up", "path", res.BackupPath)

		res.ReportPath = filepath.Join(parent, report.FileName)
		if err := report.Reset(res.ReportPath); err != nil {
			return nil, fmt.Errorf("cannot reset report: %w", err)
		}
	}

	for _, sub := range folders {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sr := r.safeSubfolder(ctx, logger.With("subfolder", sub.Base), res, sub)
		res.Subfolders = append(res.Subfolders, sr)
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("run interrupted", "subfolders", len(res.Subfolders))
		return res, err
	}
	logger.Info("run finished", "subfolders", len(res.Subfolders))
	return res, nil
}

func (r *Runner) safeSubfolder(ctx context.Context, logger *slog.Logger, res *Result, sub scanner.Subfolder) (sr SubfolderResult) {
	sr.Subfolder = sub
	defer func() {
		if p := recover(); p != nil {
			sr.Err = fmt.Errorf("panic: %v", p)
			logger.Error("subfolder failed", "error", sr.Err)
		}
	}()
	if err := r.subfolder(ctx, logger, res, &sr); err != nil {
		sr.Err = err
		logger.Error("subfolder failed", "error", err)
	}
	return sr
}

func (r *Runner) subfolder(ctx context.Context, logger *slog.Logger, res *Result, sr *SubfolderResult) error {
	cfg := r.Config
	sub := sr.Subfolder

	records, err := tags.Load(sub.Path, r.Vocab, logger)
	if err != nil {
		return err
	}
	sr.Records = records
	if len(records) < MinRecords {
		logger.Info("too few annotated images, skipping", "records", len(records))
		return nil
	}
	logger.Info("processing subfolder", "records", len(records))

	dirAxis, err := tags.ParseAxis(cfg.Axes.DirMode)
	if err != nil {
		return err
	}
	sr.Axes = Axes(cfg.Axes, dirAxis)
	sr.Named = make(map[tags.Axis][]naming.Result, len(sr.Axes))

	namer, err := r.namer(logger, res.RunID)
	if err != nil {
		return err
	}
	reg := &naming.Registry{}
	for _, axis := range sr.Axes {
		if err := ctx.Err(); err != nil {
			return err
		}
		named, err := r.clusterAxis(ctx, logger, namer, axis, records, reg)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Warn("axis clustering failed", "axis", string(axis), "error", err)
			continue
		}
		sr.Named[axis] = named
	}

	// Nothing is written once ctx is done.
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.DryRun {
		sr.Merged = r.mergeAll(logger, records)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sr.Actions = r.materialize(logger, sub, records, dirAxis)

	sr.Summary = report.Summarize(sub.Base, records, sr.Axes)
	if res.ReportPath != "" {
		if err := report.Append(res.ReportPath, sr.Summary); err != nil {
			logger.Warn("cannot write report", "path", res.ReportPath, "error", err)
		}
	}
	report.Print(r.out(), sr.Summary, sr.Actions, r.DryRun)

	if r.Ledger != nil && !r.DryRun {
		if err := r.Ledger.RecordClusters(ctx, ledgerEntries(res.RunID, sub.Base, sr.Named, r.now())); err != nil {
			logger.Warn("cannot record clusters in ledger", "error", err)
		}
	}
	return nil
}

// Axes returns the axes to cluster in processing order. Costume always runs,
// and the axis that drives the folder layout is enabled even when the config
// leaves it off.
func Axes(a config.Axes, dirAxis tags.Axis) []tags.Axis {
	out := []tags.Axis{tags.Costume}
	if a.Appearance || dirAxis == tags.Appearance {
		out = append(out, tags.Appearance)
	}
	if a.Scene || dirAxis == tags.Scene {
		out = append(out, tags.Scene)
	}
	return out
}

func (r *Runner) namer(logger *slog.Logger, runID string) (*naming.Namer, error) {
	cfg := r.Config.Naming
	mode, err := naming.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	sheetDir := cfg.SheetDir
	if sheetDir == "" {
		sheetDir = filepath.Join(os.TempDir(), "tagcluster-sheets-"+runID)
	}
	return &naming.Namer{
		Mode:         mode,
		Vocab:        r.Vocab,
		Reviewer:     r.Reviewer,
		Service:      r.Service,
		Safety:       r.Safety,
		Sheets:       sheetBuilder{b: &contactsheet.Builder{Logger: logger}},
		SheetDir:     sheetDir,
		MaxNamed:     cfg.MaxNamed,
		SampleImages: cfg.SampleImages,
		Logger:       logger,
	}, nil
}

// clusterAxis vectorizes the eligible records of one axis, partitions them,
// characterizes every cluster, and names the clusters.
func (r *Runner) clusterAxis(ctx context.Context, logger *slog.Logger, namer *naming.Namer, axis tags.Axis, records []*tags.Record, reg *naming.Registry) ([]naming.Result, error) {
	eligible := tags.Eligible(records, axis)
	if len(eligible) == 0 {
		logger.Info("no eligible records", "axis", string(axis))
		return nil, nil
	}

	docs := make([]string, len(eligible))
	for i, rec := range eligible {
		docs[i] = rec.View(axis)
	}
	fs, err := vectorize.Fit(docs)
	if err != nil {
		return nil, err
	}

	cc := r.Config.Clustering
	alg, err := cluster.ParseAlgorithm(cc.Algorithm)
	if err != nil {
		return nil, err
	}
	p, err := cluster.New(alg, cluster.Options{
		Seed:          cc.Seed,
		Restarts:      cc.Restarts,
		MaxIterations: cc.MaxIterations,
		OPTICSMaxEps:  cc.OPTICSMaxEps,
	})
	if err != nil {
		return nil, err
	}

	k := cluster.ClusterCount(len(eligible), axis)
	if d := cluster.Distinct(fs.Matrix); d < k {
		logger.Debug("lowering cluster count to distinct points", "axis", string(axis), "requested", k, "distinct", d)
		k = d
	}
	labels, err := p.Partition(fs.Matrix, k)
	if err != nil {
		return nil, fmt.Errorf("%s clustering: %w", p.Name(), err)
	}

	clusters, err := characterize.Characterize(fs, labels, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("axis clustered", "axis", string(axis), "algorithm", p.Name(), "records", len(eligible), "clusters", len(clusters))
	return namer.Name(ctx, axis, clusters, eligible, reg)
}

// mergeAll rewrites the annotation of every record that received at least
// one assignment. It returns the number of files written.
func (r *Runner) mergeAll(logger *slog.Logger, records []*tags.Record) int {
	mode, _ := naming.ParseMode(r.Config.Naming.Mode)
	includeName := mode != naming.ModeAuto || r.Config.Merge.LabelPlaceholders
	now := r.now()

	merged := 0
	for _, rec := range records {
		if !assigned(rec) {
			continue
		}
		if tags.Fresh(rec.AnnotationPath, r.Config.Freshness.Days, now) {
			logger.Info("annotation edited recently, not rewriting", "path", rec.AnnotationPath)
			continue
		}
		if _, err := merge.Apply(rec.AnnotationPath, merge.ForRecord(rec, includeName, r.Vocab)); err != nil {
			logger.Warn("cannot merge annotation", "path", rec.AnnotationPath, "error", err)
			continue
		}
		merged++
	}
	return merged
}

func assigned(rec *tags.Record) bool {
	for _, axis := range tags.Axes {
		if _, ok := rec.Assignment(axis); ok {
			return true
		}
	}
	return false
}

func (r *Runner) materialize(logger *slog.Logger, sub scanner.Subfolder, records []*tags.Record, dirAxis tags.Axis) []materialize.Action {
	mc := r.Config.Materialize
	if !mc.Copy && !mc.Move {
		return nil
	}
	plan, err := materialize.NewPlan(materialize.Groups(records, dirAxis), len(records), sub.Repeats)
	if err != nil {
		logger.Info("nothing to materialize", "axis", string(dirAxis), "error", err)
		return nil
	}
	m := &materialize.Materializer{
		Subfolder: sub.Path,
		Name:      sub.Name,
		DryRun:    r.DryRun,
		Logger:    logger,
		Link:      r.Link,
	}
	var actions []materialize.Action
	if mc.Copy {
		actions = append(actions, m.CopyToExtra(plan)...)
	}
	if mc.Move {
		actions = append(actions, m.MoveToClusters(plan, !mc.Copy)...)
	}
	if n := materialize.Failed(actions); n > 0 {
		logger.Warn("some files were not materialized", "failed", n)
	}
	return actions
}

func ledgerEntries(runID, subfolder string, named map[tags.Axis][]naming.Result, now time.Time) []ledger.Entry {
	var out []ledger.Entry
	for _, axis := range tags.Axes {
		for _, res := range named[axis] {
			if !naming.Named(res.Outcome) {
				continue
			}
			e := ledger.Entry{
				RunID:     runID,
				Subfolder: subfolder,
				Axis:      string(axis),
				Name:      res.Outcome.FinalName(),
				Prompt:    res.Cluster.Prompt,
				Members:   res.Cluster.Size(),
				Source:    res.Outcome.Source(),
				CreatedAt: now,
			}
			if h, ok := res.Outcome.(naming.HumanDecision); ok {
				e.Sheet = h.SheetPath
			}
			out = append(out, e)
		}
	}
	return out
}

// sheetBuilder adapts contactsheet.Builder to the namer.
type sheetBuilder struct {
	b *contactsheet.Builder
}

func (s sheetBuilder) Build(paths []string) (naming.Sheet, error) {
	sheet, err := s.b.Build(paths)
	if err != nil {
		return nil, err
	}
	return sheet, nil
}
