package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bagtoad/tagcluster/internal/config"
	"github.com/bagtoad/tagcluster/internal/ledger"
	"github.com/bagtoad/tagcluster/internal/llm"
	"github.com/bagtoad/tagcluster/internal/logging"
	"github.com/bagtoad/tagcluster/internal/model"
	"github.com/bagtoad/tagcluster/internal/naming"
	"github.com/bagtoad/tagcluster/internal/pipeline"
	"github.com/bagtoad/tagcluster/internal/vocab"
	"github.com/spf13/cobra"
)

// flags holds command line overrides. Only flags the user set are applied.
type flags struct {
	configPath string
	algorithm  string
	namingMode string
	dirMode    string
	appearance bool
	scene      bool
	copy       bool
	move       bool
	dryRun     bool
	seed       int64
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "tagcluster <parent-directory>",
		Short: "Cluster tagged images by costume, appearance and scene",
		Long: `tagcluster groups the tagged images of every "<repeats>_<name>" folder
under a parent directory into clusters, names each cluster, writes the
cluster label into each image's .txt annotation, and can repackage the
files into repeat-weighted folders for training.

Clusters are named with positional placeholders (auto), by you on the
terminal (manual), or by a vision model checked by a local content rating
model (model).`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), args[0], cfg, f.dryRun)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to the config file (default ~/.config/tagcluster/config.toml)")

	fl := rootCmd.Flags()
	fl.StringVar(&f.algorithm, "algorithm", "", "Clustering algorithm: kmeans, spectral, agglomerative or optics")
	fl.StringVar(&f.namingMode, "naming-mode", "", "Cluster naming: auto, manual or model")
	fl.StringVar(&f.dirMode, "dir-mode", "", "Axis that drives the folder layout: costume, appearance or scene")
	fl.BoolVar(&f.appearance, "appearance", false, "Also cluster by appearance")
	fl.BoolVar(&f.scene, "scene", false, "Also cluster by scene")
	fl.BoolVar(&f.copy, "copy", false, "Hard-link clusters into repeat-weighted extra folders")
	fl.BoolVar(&f.move, "move", false, "Move images into per-cluster folders")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Show what would be done without writing files")
	fl.Int64Var(&f.seed, "seed", 0, "Random seed for kmeans and spectral clustering")

	rootCmd.AddCommand(newInitConfigCommand(&f), newHistoryCommand(&f))
	return rootCmd
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, _, _, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("algorithm") {
		cfg.Clustering.Algorithm = f.algorithm
	}
	if changed("naming-mode") {
		cfg.Naming.Mode = f.namingMode
	}
	if changed("dir-mode") {
		cfg.Axes.DirMode = f.dirMode
	}
	if changed("appearance") {
		cfg.Axes.Appearance = f.appearance
	}
	if changed("scene") {
		cfg.Axes.Scene = f.scene
	}
	if changed("copy") {
		cfg.Materialize.Copy = f.copy
	}
	if changed("move") {
		cfg.Materialize.Move = f.move
	}
	if changed("seed") {
		cfg.Clustering.Seed = f.seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, dir string, cfg *config.Config, dryRun bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	parent, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("cannot resolve directory: %w", err)
	}

	v, err := vocab.Resolve(cfg.Paths.Vocabulary)
	if err != nil {
		return fmt.Errorf("cannot load vocabulary: %w", err)
	}
	appearance, clothing := v.Size()
	logger.Info("vocabulary loaded", "appearance", appearance, "clothing", clothing)

	runner := &pipeline.Runner{
		Config: cfg,
		Vocab:  v,
		DryRun: dryRun,
		Logger: logger,
	}

	mode, err := naming.ParseMode(cfg.Naming.Mode)
	if err != nil {
		return err
	}
	if mode != naming.ModeAuto {
		runner.Reviewer = naming.NewTerminalReviewer()
	}
	if mode == naming.ModeModel {
		service, err := llm.New(llm.Config{
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Attempts: uint(cfg.LLM.RetryAttempts),
			Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("model naming unavailable: %w", err)
		}
		runner.Service = service

		rating, err := loadRatingModel(cfg.Safety)
		if err != nil {
			logger.Warn("content rating model unavailable, every cluster goes to manual review", "error", err)
		} else {
			defer rating.Destroy()
			runner.Safety = rating
		}
	}

	if !dryRun {
		path := cfg.Paths.Ledger
		if path == "" {
			path = ledger.DefaultPath(parent)
		}
		store, err := ledger.Open(path)
		if err != nil {
			logger.Warn("cluster ledger unavailable", "path", path, "error", err)
		} else {
			defer store.Close()
			runner.Ledger = store
		}
	}

	res, err := runner.Run(ctx, parent)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}
	if res.ReportPath != "" {
		fmt.Printf("\nReport written to %s\n", res.ReportPath)
	}
	return nil
}

func loadRatingModel(cfg config.Safety) (*model.RatingSession, error) {
	dir, err := model.ModelsDir(cfg.ModelsDir)
	if err != nil {
		return nil, err
	}
	fmt.Println("Checking content rating model...")
	err = model.EnsureModels(dir, func(filename string, downloaded, total int64) {
		if total > 0 {
			pct := float64(downloaded) / float64(total) * 100
			fmt.Printf("\rDownloading %s... %.0f%%", filename, pct)
		} else {
			fmt.Printf("\rDownloading %s... %d bytes", filename, downloaded)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("model setup failed: %w", err)
	}
	return model.NewRatingSession(cfg.ONNXRuntimePath, dir)
}
