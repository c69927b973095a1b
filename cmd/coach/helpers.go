package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDay accepts YYYY-MM-DD or natural language ("next friday", "in 2
// weeks") relative to now and returns the calendar date.
func parseDay(text string, now time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "today") {
		return schema.FormatDate(now), nil
	}
	if _, err := schema.ParseDate(text); err == nil {
		return text, nil
	}
	r, err := dateParser.Parse(text, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", text, err)
	}
	if r == nil {
		return "", fmt.Errorf("could not understand date %q", text)
	}
	return schema.FormatDate(r.Time), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

var weekdays = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// parseWeekdays accepts "mon,wed,fri" or numbers 0..6.
func parseWeekdays(s string) ([]int, error) {
	seen := make(map[int]bool)
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		d, ok := weekdays[part[:min(3, len(part))]]
		if !ok {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || n > 6 {
				return nil, fmt.Errorf("invalid weekday %q", part)
			}
			d = n
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no weekdays given")
	}
	return days, nil
}

func parseMonthly(s string) (schema.MonthlyType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(s, "-", ""), "_", "")) {
	case "firstday", "first":
		return schema.MonthlyFirstDay, nil
	case "midmonth", "mid":
		return schema.MonthlyMidMonth, nil
	case "lastday", "last":
		return schema.MonthlyLastDay, nil
	}
	return "", fmt.Errorf("invalid monthly type %q (want firstDay, midMonth or lastDay)", s)
}

func describeRecurrence(r schema.Recurrence) string {
	if r.Type == schema.RecurrenceMonthly {
		return "monthly, " + string(r.MonthlyType)
	}
	names := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	parts := make([]string, 0, len(r.Days))
	for _, d := range r.Days {
		if d >= 0 && d < len(names) {
			parts = append(parts, names[d])
		}
	}
	return "weekly, " + strings.Join(parts, " ")
}

func printGoal(w io.Writer, g schema.Goal) {
	line := fmt.Sprintf("%s #%d %s %s", ui.Check(g.IsComplete()), g.ID, g.Text, ui.RenderMuted("("+string(g.Category)+")"))
	if g.TargetDate != "" {
		line += ui.RenderMuted(" due " + g.TargetDate)
	}
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "    %s\n", ui.ProgressBar(g.Progress, 20))
	for _, st := range g.Subtasks {
		fmt.Fprintf(w, "    %s %d. %s\n", ui.Check(st.Completed), st.ID, st.Text)
	}
}

// confirm asks a yes/no question on the terminal.
func confirm(title, description string) (bool, error) {
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// shortID abbreviates a recurring task id for display; prefixes are accepted
// wherever an id is.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
