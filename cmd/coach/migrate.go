package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/dashboard"
	"github.com/jhousvawls/daily-coach/internal/migrate"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var (
	migrateYes       bool
	migrateForce     bool
	migrateDashboard bool
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "sync",
	Short:   "Copy all local data to the remote store",
	Long: `Copy every goal, tiny goal, daily task, recurring task, quote and the
preferences to the remote store for the signed-in user. A failed item is
reported and the rest continue; nothing is rolled back.

A migration without errors turns sync on. Sync cannot be enabled before
one has completed. Running again after a successful migration requires
--force. Re-runs update existing remote records rather than duplicating
them. The API key is never copied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			m := a.migrator()
			out := cmd.OutOrStdout()

			if st, ok := m.Status(); ok && st.Completed && !migrateForce {
				fmt.Fprintf(out, "Already migrated on %s (use --force to run again)\n",
					st.AttemptedAt.Local().Format(time.DateTime))
				return nil
			}
			if !a.store.HasData() {
				fmt.Fprintln(out, "No local data to migrate")
			}

			if !migrateYes {
				if !ui.IsTerminal(os.Stdin) {
					return fmt.Errorf("refusing to migrate without confirmation; pass --yes")
				}
				ok, err := confirm("Migrate local data?", "Copies everything on this device to the remote store.")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
			}

			if migrateDashboard {
				server, err := startDashboard(a)
				if err != nil {
					return err
				}
				defer func() { _ = server.Stop() }()
				h := dashboard.NewHandler(server, a.store.Stats, a.sink.Logger("dashboard"))
				h.FollowMigration(m)
				defer h.Wait()
				fmt.Fprintf(out, "Dashboard: http://%s\n", server.GetAddr())
			}

			progress, unsub := m.Subscribe(64)
			done := make(chan struct{})
			live := ui.NewLive(os.Stdout)
			go func() {
				defer close(done)
				for p := range progress {
					line := fmt.Sprintf("%-16s %s", p.Stage, ui.ProgressBar(int(p.Percentage), 20))
					if p.CurrentItem != "" {
						line += " " + ui.RenderMuted(p.CurrentItem)
					}
					live.Update(line)
				}
			}()

			result, err := m.Run(cmd.Context(), migrate.Options{Force: migrateForce})
			m.Close()
			unsub()
			<-done
			live.Done()
			if err != nil {
				if errors.Is(err, migrate.ErrUnauthenticated) {
					return fmt.Errorf("%w: run 'coach auth login' first", err)
				}
				return err
			}

			a.engine.Refresh()
			printResult(cmd, result)
			if result.Success {
				fmt.Fprintf(out, "%s Sync enabled\n", ui.RenderPass("✓"))
			}
			if !result.Success {
				return fmt.Errorf("migration finished with %d error(s)", len(result.Errors))
			}
			return nil
		})
	},
}

func printResult(cmd *cobra.Command, r migrate.Result) {
	out := cmd.OutOrStdout()
	mark := ui.RenderPass("✓")
	if !r.Success {
		mark = ui.RenderWarn("!")
	}
	fmt.Fprintf(out, "%s Migrated %d of %d items in %s\n", mark, r.Migrated.Total(), r.TotalItems, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  goals %d, tiny goals %d, daily tasks %d, recurring %d, quotes %d, preferences %d\n",
		r.Migrated.Goals, r.Migrated.TinyGoals, r.Migrated.DailyTasks,
		r.Migrated.RecurringTasks, r.Migrated.Quotes, r.Migrated.Preferences)
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  %s %s\n", ui.RenderFail("✗"), e)
	}
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded migration result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			m := a.migrator()
			out := cmd.OutOrStdout()
			st, ok := m.Status()
			if !ok {
				fmt.Fprintln(out, "No migration recorded")
			} else {
				state := ui.RenderPass("completed")
				if !st.Completed {
					state = ui.RenderWarn("incomplete")
				}
				fmt.Fprintf(out, "Last attempt: %s (%s)\n", st.AttemptedAt.Local().Format(time.DateTime), state)
				if st.Result != nil {
					printResult(cmd, *st.Result)
				}
			}
			fmt.Fprintf(out, "Needs migration: %t\n", m.NeedsMigration())
			return nil
		})
	},
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the recorded migration so it can run again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			if err := a.migrator().Reset(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Migration status cleared\n", ui.RenderPass("✓"))
			return nil
		})
	},
}

var migrateValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare local and remote record counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			mismatches, err := a.migrator().Validate(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(mismatches) == 0 {
				fmt.Fprintf(out, "%s Local and remote counts match\n", ui.RenderPass("✓"))
				return nil
			}
			for _, mm := range mismatches {
				fmt.Fprintf(out, "%s %s\n", ui.RenderWarn("!"), mm)
			}
			return fmt.Errorf("%d collection(s) differ", len(mismatches))
		})
	},
}

func init() {
	migrateCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "Do not ask for confirmation")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "Run even if a migration already completed")
	migrateCmd.Flags().BoolVar(&migrateDashboard, "dashboard", false, "Serve live progress on the dashboard")

	migrateCmd.AddCommand(migrateStatusCmd, migrateResetCmd, migrateValidateCmd)
	rootCmd.AddCommand(migrateCmd)
}
