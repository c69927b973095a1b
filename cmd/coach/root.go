package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	dataPath string
	quiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "Offline-first daily goals, focus tasks and quotes",
	Long: `coach tracks goals, tiny goals, a daily focus task, recurring tasks and
daily quotes in a local database. Every change works offline; when sync is
enabled and you are signed in, changes are queued and pushed to the remote
store by 'coach daemon' or 'coach sync now'.

Existing local data is copied to the remote store once with 'coach migrate'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "track", Title: "Tracking:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/dailycoach/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Local database path (overrides data.path)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Discard log output")
}
