package schema

import "time"

// Category groups goals.
type Category string

const (
	CategoryPersonal     Category = "personal"
	CategoryProfessional Category = "professional"
)

// Subtask is one step of a goal.
type Subtask struct {
	ID        int64  `json:"id" yaml:"id" toml:"id"`
	Text      string `json:"text" yaml:"text" toml:"text" validate:"required,max=500"`
	Completed bool   `json:"completed" yaml:"completed" toml:"completed"`
}

// Goal is a long-running objective with optional subtasks.
//
// Progress is monotonic by convention only. A set CompletedAt means the goal
// is complete regardless of Progress.
type Goal struct {
	ID          int64      `json:"id" yaml:"id" toml:"id"`
	Text        string     `json:"text" yaml:"text" toml:"text" validate:"required,max=500"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Category    Category   `json:"category" yaml:"category" toml:"category" validate:"oneof=personal professional"`
	Progress    int        `json:"progress" yaml:"progress" toml:"progress" validate:"gte=0,lte=100"`
	TargetDate  string     `json:"targetDate,omitempty" yaml:"targetDate,omitempty" toml:"targetDate,omitempty" validate:"omitempty,isodate"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty" toml:"completedAt,omitempty"`
	Subtasks    []Subtask  `json:"subtasks" yaml:"subtasks" toml:"subtasks" validate:"dive"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt" toml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt" toml:"updatedAt"`
}

// Validate checks field constraints.
func (g *Goal) Validate() error {
	return check("goal", g)
}

// SetDefaults fills optional fields so stored goals are uniform.
func (g *Goal) SetDefaults(now time.Time) {
	if g.Category == "" {
		g.Category = CategoryPersonal
	}
	if g.Subtasks == nil {
		g.Subtasks = []Subtask{}
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = now
	}
}

// IsComplete reports whether the goal counts as done.
func (g *Goal) IsComplete() bool {
	return g.CompletedAt != nil || g.Progress >= 100
}

// SubtaskProgress returns the share of completed subtasks as 0..100.
// Goals without subtasks report their stored progress.
func (g *Goal) SubtaskProgress() int {
	if len(g.Subtasks) == 0 {
		return g.Progress
	}
	done := 0
	for _, s := range g.Subtasks {
		if s.Completed {
			done++
		}
	}
	return done * 100 / len(g.Subtasks)
}

// TinyGoal is a small, lightweight goal with no progress or category.
type TinyGoal struct {
	ID          int64      `json:"id" yaml:"id" toml:"id"`
	Text        string     `json:"text" yaml:"text" toml:"text" validate:"required,max=500"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty" toml:"completedAt,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty" toml:"createdAt,omitempty"`
}

// Validate checks field constraints.
func (g *TinyGoal) Validate() error {
	return check("tiny goal", g)
}
