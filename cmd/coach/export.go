package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/portability"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var (
	exportFormat    string
	exportOutput    string
	exportSecrets   bool
	importFormat    string
	importOverwrite bool
	importDryRun    bool
)

// resolveFormat prefers an explicit flag, then the file extension, then JSON.
func resolveFormat(flag, path string) (portability.Format, error) {
	if flag != "" {
		return portability.ParseFormat(flag)
	}
	if path != "" && path != "-" {
		return portability.FormatForPath(path)
	}
	return portability.JSON, nil
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "advanced",
	Short:   "Write all local data to a file or stdout",
	Long: `Write every goal, tiny goal, daily task, recurring task, quote, the
preferences and stats as JSON, YAML or TOML. The API key is left out unless
--include-secrets is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(exportFormat, exportOutput)
		if err != nil {
			return err
		}
		opts := portability.Options{IncludeSecrets: exportSecrets}
		return withApp(func(a *app) error {
			snap := a.store.Snapshot()
			if exportOutput == "" || exportOutput == "-" {
				return portability.Export(cmd.OutOrStdout(), snap, format, opts)
			}
			if err := portability.ExportFile(exportOutput, snap, format, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported to %s\n", ui.RenderPass("✓"), exportOutput)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "advanced",
	Short:   "Restore local data from an export",
	Long: `Restore local data from an export written by 'coach export'. Invalid items
are skipped and reported. Existing data is only replaced with --overwrite.

Imported data stays on this device; run 'coach migrate --force' to push it
to the remote store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(importFormat, args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open export: %w", err)
		}
		defer f.Close()
		snap, err := portability.Read(f, format)
		if err != nil {
			return err
		}

		return withApp(func(a *app) error {
			res, err := portability.Restore(a.store, snap, portability.RestoreOptions{
				Overwrite: importOverwrite,
				DryRun:    importDryRun,
			})
			if errors.Is(err, portability.ErrNotEmpty) {
				return fmt.Errorf("%w: pass --overwrite to replace it", err)
			}
			if err != nil {
				return err
			}
			if !importDryRun {
				if _, err := a.tracker.RecomputeStats(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			verb := "Imported"
			if importDryRun {
				verb = "Would import"
			}
			fmt.Fprintf(out, "%s %s %d goals, %d tiny goals, %d daily tasks, %d recurring tasks, %d quotes\n",
				ui.RenderPass("✓"), verb, res.Goals, res.TinyGoals, res.DailyTasks, res.RecurringTasks, res.Quotes)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  %s skipped: %s\n", ui.RenderWarn("!"), e)
			}
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "json, yaml or toml (default from --output, else json)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportSecrets, "include-secrets", false, "Include the AI API key")

	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "json, yaml or toml (default from extension)")
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "Replace existing local data")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate without writing")

	rootCmd.AddCommand(exportCmd, importCmd)
}
