package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/loadtest"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var (
	loadWriters int
	loadOps     int
	loadShared  bool
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "advanced",
	Short:   "Stress the local queue with concurrent writers",
	Long: `Run concurrent writers against a scratch database, each allocating ids
and appending sync operations, then check that no append was lost and no id
was handed out twice. Your own data is never touched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.MkdirTemp("", "coach-loadtest-")
		if err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}
		defer os.RemoveAll(dir)

		res, err := loadtest.Run(cmd.Context(), filepath.Join(dir, "load.db"), loadtest.Options{
			Writers:      loadWriters,
			OpsPerWriter: loadOps,
			Shared:       loadShared,
		})
		if err != nil {
			return err
		}
		res.Print(cmd.OutOrStdout())
		if !res.OK() {
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", ui.RenderFail("✗"), e)
			}
			return fmt.Errorf("load test failed")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s No lost operations\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	loadtestCmd.Flags().IntVar(&loadWriters, "writers", 10, "Concurrent writers")
	loadtestCmd.Flags().IntVar(&loadOps, "ops", 20, "Operations per writer")
	loadtestCmd.Flags().BoolVar(&loadShared, "shared", false, "Share one database handle between writers")
	rootCmd.AddCommand(loadtestCmd)
}
