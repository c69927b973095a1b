package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var prefsCmd = &cobra.Command{
	Use:     "prefs",
	GroupID: "track",
	Short:   "Show or change preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			p := a.store.Preferences()
			key := ui.RenderMuted("not set")
			if p.APIKey != "" {
				key = "set " + ui.RenderMuted("(stored on this device only)")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "theme:         %s\n", p.Theme)
			fmt.Fprintf(out, "reminder_time: %s\n", p.ReminderTime)
			fmt.Fprintf(out, "notifications: %t\n", p.Notifications)
			fmt.Fprintf(out, "show_quote:    %t\n", p.ShowQuote)
			fmt.Fprintf(out, "api_key:       %s\n", key)
			return nil
		})
	},
}

// applyPref sets one key=value pair on p.
func applyPref(p *schema.UserPreferences, pair string) error {
	key, value, ok := strings.Cut(pair, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", pair)
	}
	key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
	value = strings.TrimSpace(value)

	switch key {
	case "theme":
		p.Theme = value
	case "reminder_time", "reminder":
		p.ReminderTime = value
	case "notifications":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("notifications: %w", err)
		}
		p.Notifications = b
	case "show_quote":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("show_quote: %w", err)
		}
		p.ShowQuote = b
	case "api_key":
		p.APIKey = value
	default:
		return fmt.Errorf("unknown preference %q", key)
	}
	return nil
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key=value>...",
	Short: "Change preferences",
	Long: `Change preferences. Keys: theme (light, dark, system), reminder_time
(HH:MM), notifications, show_quote, api_key. The API key is never synced.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var perr error
		return withApp(func(a *app) error {
			_, err := a.tracker.UpdatePreferences(func(p *schema.UserPreferences) {
				for _, pair := range args {
					if perr = applyPref(p, pair); perr != nil {
						return
					}
				}
			})
			if perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Preferences updated\n", ui.RenderPass("✓"))
			return nil
		})
	},
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd, prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}
