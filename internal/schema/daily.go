package schema

import "time"

// DailyTask is the focus task for one calendar date. A later write for the
// same date replaces the earlier one.
type DailyTask struct {
	Date        string     `json:"date" yaml:"date" toml:"date" validate:"required,isodate"`
	Text        string     `json:"text" yaml:"text" toml:"text" validate:"required,max=500"`
	Completed   bool       `json:"completed" yaml:"completed" toml:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty" toml:"completedAt,omitempty"`
}

// Validate checks field constraints.
func (d *DailyTask) Validate() error {
	return check("daily task", d)
}

// DailyQuote is the quote shown for one calendar date.
type DailyQuote struct {
	Date   string `json:"date" yaml:"date" toml:"date" validate:"required,isodate"`
	Text   string `json:"text" yaml:"text" toml:"text" validate:"required"`
	Author string `json:"author" yaml:"author" toml:"author"`
	Mood   string `json:"mood,omitempty" yaml:"mood,omitempty" toml:"mood,omitempty"`
}

// Validate checks field constraints.
func (q *DailyQuote) Validate() error {
	return check("quote", q)
}
