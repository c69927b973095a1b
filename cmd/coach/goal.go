package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var goalCmd = &cobra.Command{
	Use:     "goal",
	GroupID: "track",
	Short:   "Manage long-running goals",
}

var (
	goalCategory    string
	goalTarget      string
	goalDescription string
	goalOpenOnly    bool
)

var goalAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a goal",
	Long: `Add a goal. --target accepts a date (2024-06-30) or natural language
such as "next friday" or "in 3 weeks".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			g := schema.Goal{
				Text:        strings.Join(args, " "),
				Description: goalDescription,
				Category:    schema.Category(goalCategory),
			}
			if goalTarget != "" {
				day, err := parseDay(goalTarget, time.Now())
				if err != nil {
					return err
				}
				g.TargetDate = day
			}
			g, err := a.tracker.AddGoal(g)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added goal #%d\n", ui.RenderPass("✓"), g.ID)
			return nil
		})
	},
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			goals := a.tracker.Goals()
			shown := 0
			for _, g := range goals {
				if goalOpenOnly && g.IsComplete() {
					continue
				}
				printGoal(cmd.OutOrStdout(), g)
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No goals")
			}
			return nil
		})
	},
}

var goalProgressCmd = &cobra.Command{
	Use:   "progress <id> <percent>",
	Short: "Set goal progress (100 completes the goal)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		pct, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
		if err != nil {
			return fmt.Errorf("invalid progress %q", args[1])
		}
		return withApp(func(a *app) error {
			g, err := a.tracker.SetProgress(id, pct)
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		})
	},
}

// goalActionCmd builds the id-only goal commands.
func goalActionCmd(use, short, verb string, fn func(a *app, id int64) error) *cobra.Command {
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
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s goal #%d\n", ui.RenderPass("✓"), verb, id)
				return nil
			})
		},
	}
}

var goalBreakdownCmd = &cobra.Command{
	Use:   "breakdown <id> [step...]",
	Short: "Add subtasks, suggested by AI when no steps are given",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			g, err := a.tracker.Goal(id)
			if err != nil {
				return err
			}
			steps := args[1:]
			if len(steps) == 0 {
				svc := a.suggestions()
				if !svc.Configured() {
					fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderWarn("AI not configured; using generic steps"))
				}
				steps = svc.Subtasks(cmd.Context(), g.Text)
			}
			g, err = a.tracker.AddSubtasks(id, steps...)
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		})
	},
}

var goalToggleCmd = &cobra.Command{
	Use:   "toggle <goal-id> <subtask-id>",
	Short: "Toggle a subtask",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		goalID, err := parseID(args[0])
		if err != nil {
			return err
		}
		subID, err := parseID(args[1])
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			g, err := a.tracker.ToggleSubtask(goalID, subID)
			if err != nil {
				return err
			}
			printGoal(cmd.OutOrStdout(), g)
			return nil
		})
	},
}

func init() {
	goalAddCmd.Flags().StringVarP(&goalCategory, "category", "c", string(schema.CategoryPersonal), "personal or professional")
	goalAddCmd.Flags().StringVarP(&goalTarget, "target", "t", "", "Target date")
	goalAddCmd.Flags().StringVarP(&goalDescription, "description", "d", "", "Longer description")
	goalListCmd.Flags().BoolVar(&goalOpenOnly, "open", false, "Hide completed goals")

	goalCmd.AddCommand(goalAddCmd, goalListCmd, goalProgressCmd, goalBreakdownCmd, goalToggleCmd)
	goalCmd.AddCommand(
		goalActionCmd("done", "Complete a goal", "Completed", func(a *app, id int64) error {
			_, err := a.tracker.CompleteGoal(id)
			return err
		}),
		goalActionCmd("reopen", "Reopen a completed goal", "Reopened", func(a *app, id int64) error {
			_, err := a.tracker.ReopenGoal(id)
			return err
		}),
		goalActionCmd("rm", "Delete a goal", "Deleted", func(a *app, id int64) error {
			return a.tracker.DeleteGoal(id)
		}),
	)
	rootCmd.AddCommand(goalCmd)
}
