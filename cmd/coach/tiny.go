package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/ui"
)

var tinyCmd = &cobra.Command{
	Use:     "tiny",
	GroupID: "track",
	Short:   "Manage tiny goals",
}

var tinyAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a tiny goal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			g, err := a.tracker.AddTinyGoal(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added tiny goal #%d\n", ui.RenderPass("✓"), g.ID)
			return nil
		})
	},
}

var tinyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tiny goals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			goals := a.tracker.TinyGoals()
			if len(goals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tiny goals")
			}
			for _, g := range goals {
				fmt.Fprintf(cmd.OutOrStdout(), "%s #%d %s\n", ui.Check(g.CompletedAt != nil), g.ID, g.Text)
			}
			return nil
		})
	},
}

func tinyActionCmd(use, short, verb string, fn func(a *app, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(a *app) error {
				if err := fn(a, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s tiny goal #%d\n", ui.RenderPass("✓"), verb, id)
				return nil
			})
		},
	}
}

func init() {
	tinyCmd.AddCommand(tinyAddCmd, tinyListCmd)
	tinyCmd.AddCommand(
		tinyActionCmd("done", "Complete a tiny goal", "Completed", func(a *app, id int64) error {
			_, err := a.tracker.CompleteTinyGoal(id)
			return err
		}),
		tinyActionCmd("reopen", "Reopen a tiny goal", "Reopened", func(a *app, id int64) error {
			_, err := a.tracker.ReopenTinyGoal(id)
			return err
		}),
		tinyActionCmd("rm", "Delete a tiny goal", "Deleted", func(a *app, id int64) error {
			return a.tracker.DeleteTinyGoal(id)
		}),
	)
	rootCmd.AddCommand(tinyCmd)
}
