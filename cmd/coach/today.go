package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/suggest"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var todayDate string

var todayCmd = &cobra.Command{
	Use:     "today",
	GroupID: "track",
	Short:   "Manage the daily focus task",
	Long: `Each calendar date has at most one focus task. Setting it again replaces
it. --date accepts YYYY-MM-DD or natural language such as "yesterday".`,
}

func todayKey() (string, error) {
	return parseDay(todayDate, time.Now())
}

var todaySetCmd = &cobra.Command{
	Use:   "set <text>",
	Short: "Set the focus task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := todayKey()
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			task, err := a.tracker.SetDailyTask(date, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Focus for %s: %s\n", ui.RenderPass("✓"), task.Date, task.Text)
			return nil
		})
	},
}

func todayCompleteCmd(use, short string, done bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := todayKey()
			if err != nil {
				return err
			}
			return withApp(func(a *app) error {
				var task schema.DailyTask
				if done {
					task, err = a.tracker.CompleteDailyTask(date)
				} else {
					task, err = a.tracker.UncompleteDailyTask(date)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Check(task.Completed), task.Text)
				if done {
					stats := a.store.Stats()
					fmt.Fprintf(cmd.OutOrStdout(), "Streak: %d day(s)\n", stats.CurrentStreak)
				}
				return nil
			})
		},
	}
}

var todayShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the focus task, due recurring tasks and quote",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := todayKey()
		if err != nil {
			return err
		}
		day, _ := schema.ParseDate(date)
		return withApp(func(a *app) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", ui.RenderBold(day.Format("Monday, January 2")))

			if task, ok := a.tracker.DailyTask(date); ok {
				fmt.Fprintf(out, "Focus: %s %s\n", ui.Check(task.Completed), task.Text)
			} else {
				fmt.Fprintln(out, ui.RenderMuted("Focus: not set (coach today set <text>)"))
			}

			if due := a.tracker.DueOn(day); len(due) > 0 {
				fmt.Fprintln(out, "\nRecurring:")
				for _, task := range due {
					fmt.Fprintf(out, "  %s %s %s\n", ui.Check(task.CompletedOn(day)), task.Text, ui.RenderMuted(shortID(task.ID)))
				}
			}

			if a.store.Preferences().ShowQuote {
				if q, ok := a.tracker.Quote(date); ok {
					fmt.Fprintf(out, "\n%s\n", ui.RenderAccent(fmt.Sprintf("%q - %s", q.Text, q.Author)))
				}
			}

			stats := a.store.Stats()
			fmt.Fprintf(out, "\nStreak: %d (best %d)\n", stats.CurrentStreak, stats.LongestStreak)
			return nil
		})
	},
}

var (
	quoteMood string
	quoteNew  bool
)

var quoteCmd = &cobra.Command{
	Use:     "quote",
	GroupID: "track",
	Short:   "Show today's quote, fetching one if needed",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			q, ok := a.tracker.Quote("")
			if !ok || quoteNew || (quoteMood != "" && q.Mood != quoteMood) {
				fresh := a.suggestions().Quote(cmd.Context(), quoteMood)
				var err error
				if q, err = a.tracker.SetQuote(fresh); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q\n  - %s\n", q.Text, q.Author)
			return nil
		})
	},
}

var (
	focusAnalyze bool
	focusSet     bool
)

var focusCmd = &cobra.Command{
	Use:     "focus <text>",
	GroupID: "track",
	Short:   "Turn a brain dump into one focus statement",
	Long: `Ask the AI coach to condense free-form text into one prioritized focus
for today. --analyze lists themes and ranked candidates instead. --set stores
the result as today's focus task.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return withApp(func(a *app) error {
			svc := a.suggestions()
			out := cmd.OutOrStdout()

			var focus string
			if focusAnalyze {
				analysis, err := svc.Analyze(cmd.Context(), text)
				if err != nil {
					return aiError(err)
				}
				if len(analysis.Themes) > 0 {
					fmt.Fprintf(out, "Themes: %s\n\n", strings.Join(analysis.Themes, ", "))
				}
				for _, c := range analysis.Candidates {
					fmt.Fprintf(out, "%d. %s\n   %s\n", c.Rank, c.Text, ui.RenderMuted(c.Reason))
				}
				focus = analysis.Candidates[0].Text
			} else {
				var err error
				if focus, err = svc.Prioritize(cmd.Context(), text); err != nil {
					return aiError(err)
				}
				fmt.Fprintln(out, focus)
			}

			if focusSet {
				task, err := a.tracker.SetDailyTask(schema.FormatDate(time.Now()), focus)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s Focus for %s set\n", ui.RenderPass("✓"), task.Date)
			}
			return nil
		})
	},
}

func aiError(err error) error {
	if errors.Is(err, suggest.ErrNotConfigured) {
		return fmt.Errorf("%w: set ai.api_key or 'coach prefs set api_key=...'", err)
	}
	return err
}

func init() {
	todayCmd.PersistentFlags().StringVar(&todayDate, "date", "", "Date (default today)")
	todayCmd.AddCommand(
		todaySetCmd,
		todayCompleteCmd("done", "Complete the focus task", true),
		todayCompleteCmd("undo", "Mark the focus task not done", false),
		todayShowCmd,
	)
	quoteCmd.Flags().StringVarP(&quoteMood, "mood", "m", "", "How you feel, used to pick a quote")
	quoteCmd.Flags().BoolVar(&quoteNew, "new", false, "Fetch a new quote even if one is stored")
	focusCmd.Flags().BoolVar(&focusAnalyze, "analyze", false, "Show themes and ranked candidates")
	focusCmd.Flags().BoolVar(&focusSet, "set", false, "Store the result as today's focus task")

	rootCmd.AddCommand(todayCmd, quoteCmd, focusCmd)
}
