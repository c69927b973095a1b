package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var (
	recurringWeekly  string
	recurringMonthly string
	recurringDate    string
)

var recurringCmd = &cobra.Command{
	Use:     "recurring",
	GroupID: "track",
	Short:   "Manage weekly and monthly recurring tasks",
	Long: `Recurring tasks come due on listed weekdays (--weekly mon,thu) or on one
day of the month (--monthly firstDay|midMonth|lastDay). Ids may be
abbreviated to any unique prefix.`,
}

var recurringAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a recurring task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recurrenceFromFlags()
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			task, err := a.tracker.AddRecurringTask(strings.Join(args, " "), rec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added %s (%s)\n", ui.RenderPass("✓"), shortID(task.ID), describeRecurrence(task.Recurrence))
			return nil
		})
	},
}

func recurrenceFromFlags() (schema.Recurrence, error) {
	switch {
	case recurringWeekly != "" && recurringMonthly != "":
		return schema.Recurrence{}, fmt.Errorf("use either --weekly or --monthly")
	case recurringWeekly != "":
		days, err := parseWeekdays(recurringWeekly)
		if err != nil {
			return schema.Recurrence{}, err
		}
		return schema.Recurrence{Type: schema.RecurrenceWeekly, Days: days}, nil
	case recurringMonthly != "":
		mt, err := parseMonthly(recurringMonthly)
		if err != nil {
			return schema.Recurrence{}, err
		}
		return schema.Recurrence{Type: schema.RecurrenceMonthly, MonthlyType: mt}, nil
	}
	return schema.Recurrence{}, fmt.Errorf("one of --weekly or --monthly is required")
}

var recurringListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recurring tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			tasks := a.tracker.RecurringTasks()
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recurring tasks")
			}
			for _, task := range tasks {
				last := "never"
				if task.LastCompleted != nil {
					last = schema.FormatDate(task.LastCompleted.Local())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ui.RenderMuted(shortID(task.ID)), task.Text,
					ui.RenderMuted(fmt.Sprintf("(%s, last done %s)", describeRecurrence(task.Recurrence), last)))
			}
			return nil
		})
	},
}

var recurringDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Record completion of a recurring task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			task, err := a.tracker.CompleteRecurringTask(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Completed %s\n", ui.RenderPass("✓"), task.Text)
			return nil
		})
	},
}

var recurringRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a recurring task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			if err := a.tracker.DeleteRecurringTask(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", ui.RenderPass("✓"), args[0])
			return nil
		})
	},
}

var recurringDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List recurring tasks due on a date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDay(recurringDate, time.Now())
		if err != nil {
			return err
		}
		day, err := schema.ParseDate(date)
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			due := a.tracker.DueOn(day)
			if len(due) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing due on %s\n", date)
			}
			for _, task := range due {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ui.Check(task.CompletedOn(day)), task.Text, ui.RenderMuted(shortID(task.ID)))
			}
			return nil
		})
	},
}

func init() {
	recurringAddCmd.Flags().StringVar(&recurringWeekly, "weekly", "", "Weekdays, e.g. mon,wed,fri")
	recurringAddCmd.Flags().StringVar(&recurringMonthly, "monthly", "", "firstDay, midMonth or lastDay")
	recurringDueCmd.Flags().StringVar(&recurringDate, "date", "", "Date (default today)")

	recurringCmd.AddCommand(recurringAddCmd, recurringListCmd, recurringDoneCmd, recurringRmCmd, recurringDueCmd)
	rootCmd.AddCommand(recurringCmd)
}
