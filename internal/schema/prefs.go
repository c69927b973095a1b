package schema

// UserPreferences is the per-user settings singleton.
type UserPreferences struct {
	APIKey        string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" toml:"apiKey,omitempty"`
	ReminderTime  string `json:"reminderTime" yaml:"reminderTime" toml:"reminderTime" validate:"omitempty,datetime=15:04"`
	Theme         string `json:"theme" yaml:"theme" toml:"theme" validate:"oneof=light dark system"`
	Notifications bool   `json:"notifications" yaml:"notifications" toml:"notifications"`
	ShowQuote     bool   `json:"showQuote" yaml:"showQuote" toml:"showQuote"`
}

// DefaultPreferences returns the preferences a fresh install starts with.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		ReminderTime:  "09:00",
		Theme:         "system",
		Notifications: true,
		ShowQuote:     true,
	}
}

// Validate checks field constraints.
func (p *UserPreferences) Validate() error {
	return check("preferences", p)
}

// IsDefault reports whether p equals DefaultPreferences.
func (p UserPreferences) IsDefault() bool {
	return p == DefaultPreferences()
}

// UserStats are derived counters cached alongside preferences. They are
// recomputed from local data and are never authoritative.
type UserStats struct {
	GoalsCompleted      int    `json:"goalsCompleted" yaml:"goalsCompleted" toml:"goalsCompleted"`
	TinyGoalsCompleted  int    `json:"tinyGoalsCompleted" yaml:"tinyGoalsCompleted" toml:"tinyGoalsCompleted"`
	DailyTasksCompleted int    `json:"dailyTasksCompleted" yaml:"dailyTasksCompleted" toml:"dailyTasksCompleted"`
	CurrentStreak       int    `json:"currentStreak" yaml:"currentStreak" toml:"currentStreak"`
	LongestStreak       int    `json:"longestStreak" yaml:"longestStreak" toml:"longestStreak"`
	LastActiveDate      string `json:"lastActiveDate,omitempty" yaml:"lastActiveDate,omitempty" toml:"lastActiveDate,omitempty"`
}
