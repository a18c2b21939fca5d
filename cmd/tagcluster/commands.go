package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bagtoad/tagcluster/internal/config"
	"github.com/bagtoad/tagcluster/internal/ledger"
	"github.com/bagtoad/tagcluster/internal/report"
	"github.com/spf13/cobra"
)

func newInitConfigCommand(f *flags) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a sample config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(f.configPath)
			var err error
			if target == "" {
				target, err = config.DefaultConfigPath()
			} else {
				target, err = config.ExpandPath(target)
			}
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing config file")
	return cmd
}

func newHistoryCommand(f *flags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <parent-directory>",
		Short: "Show clusters named by earlier runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			path := cfg.Paths.Ledger
			if path == "" {
				parent, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				path = ledger.DefaultPath(parent)
			}

			store, err := ledger.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No clusters recorded yet.")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.CreatedAt.Local().Format("2006-01-02 15:04"),
					e.RunID[:min(8, len(e.RunID))],
					e.Subfolder,
					e.Axis,
					e.Name,
					strconv.Itoa(e.Members),
					e.Source,
					strings.Join(e.Prompt, ", "),
				})
			}
			fmt.Fprintln(out, report.RenderTable(
				[]string{"When", "Run", "Folder", "Axis", "Name", "Images", "Source", "Prompt"},
				rows,
				[]report.Align{report.AlignLeft, report.AlignLeft, report.AlignLeft, report.AlignLeft, report.AlignLeft, report.AlignRight, report.AlignLeft, report.AlignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of clusters to show")
	return cmd
}
