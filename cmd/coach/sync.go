package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/syncer"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Inspect and control synchronization with the remote store",
	Long: `Every local change is recorded in a durable queue and pushed to the remote
store when sync is enabled, the network is reachable and a user is signed in.
'coach daemon' drains the queue continuously; 'coach sync now' drains it once.`,
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Push pending changes once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			a.probe(cmd.Context())
			report, err := a.engine.SyncNow(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd, report)
			if report.Failed > 0 {
				return fmt.Errorf("%d operation(s) failed", report.Failed)
			}
			return nil
		})
	},
}

func printReport(cmd *cobra.Command, r syncer.Report) {
	out := cmd.OutOrStdout()
	if r.Skipped != "" {
		fmt.Fprintf(out, "%s Sync skipped: %s\n", ui.RenderWarn("!"), r.Skipped)
		fmt.Fprintf(out, "Pending: %d\n", r.Remaining)
		return
	}
	mark := ui.RenderPass("✓")
	if r.Failed > 0 || r.Interrupted {
		mark = ui.RenderWarn("!")
	}
	fmt.Fprintf(out, "%s Sent %d, committed %d, failed %d, abandoned %d\n",
		mark, r.Attempted, r.Committed, r.Failed, r.Abandoned)
	if r.Interrupted {
		fmt.Fprintln(out, "Network lost during sync")
	}
	fmt.Fprintf(out, "Pending: %d\n", r.Remaining)
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			a.probe(cmd.Context())
			a.engine.Refresh()
			st := a.engine.State()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%s\n\n", ui.RenderStatus(st.Status()))
			fmt.Fprintf(out, "Enabled:   %t\n", st.SyncEnabled)
			fmt.Fprintf(out, "Online:    %t\n", st.Online)
			fmt.Fprintf(out, "Pending:   %d\n", st.PendingOperations)
			last := "never"
			if st.LastSyncTime != nil {
				last = st.LastSyncTime.Local().Format(time.DateTime)
			}
			fmt.Fprintf(out, "Last sync: %s\n", last)
			if id, ok := a.auth.CurrentUser(); ok {
				fmt.Fprintf(out, "User:      %s\n", id.UserID)
			} else {
				fmt.Fprintf(out, "User:      %s\n", ui.RenderMuted("signed out"))
			}
			if st.Error {
				fmt.Fprintf(out, "Error:     %s\n", ui.RenderFail(st.ErrorMessage))
			}
			return nil
		})
	},
}

func syncToggleCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if enabled {
					if st, ok := a.migrator().Status(); !ok || !st.Completed {
						return fmt.Errorf("sync can only be enabled after a successful migration; run 'coach migrate' first")
					}
				}
				if err := a.engine.SetSyncEnabled(enabled); err != nil {
					return err
				}
				word := "disabled"
				if enabled {
					word = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Sync %s\n", ui.RenderPass("✓"), word)
				return nil
			})
		},
	}
}

func init() {
	syncCmd.AddCommand(
		syncNowCmd,
		syncStatusCmd,
		syncToggleCmd("enable", "Enable sync", true),
		syncToggleCmd("disable", "Disable sync; changes made while disabled are not sent", false),
	)
	rootCmd.AddCommand(syncCmd)
}
