// Package suggest produces content for the tracker from a language model.
//
// The model is unreliable by assumption. Subtasks and Quote always return a
// usable value, falling back to static content; Prioritize and Analyze have
// no sensible fallback and return the error.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/jhousvawls/daily-coach/internal/schema"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("AI suggestions not configured")

// Completer sends one prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Candidate is one ranked option produced by Analyze.
type Candidate struct {
	Text   string `json:"text"`
	Reason string `json:"reason,omitempty"`
	Rank   int    `json:"rank"`
}

// Analysis is the structured reading of free-form text.
type Analysis struct {
	Themes     []string    `json:"themes"`
	Candidates []Candidate `json:"candidates"`
}

// Service wraps a Completer with prompts, parsing and fallbacks.
type Service struct {
	completer Completer
	logger    *log.Logger
}

// New creates a Service. A nil completer makes every call report
// ErrNotConfigured and every fallback apply.
func New(c Completer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[suggest] ", log.LstdFlags)
	}
	return &Service{completer: c, logger: logger}
}

// NewQuiet creates a Service that discards its log output.
func NewQuiet(c Completer) *Service {
	return New(c, log.New(io.Discard, "", 0))
}

// Configured reports whether a completer is present.
func (s *Service) Configured() bool {
	return s.completer != nil
}

func (s *Service) complete(ctx context.Context, system, prompt string) (string, error) {
	if s.completer == nil {
		return "", ErrNotConfigured
	}
	out, err := s.completer.Complete(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to get suggestion: %w", err)
	}
	return strings.TrimSpace(out), nil
}

const systemPrompt = "You are a concise productivity coach. Answer with exactly what is asked and nothing else."

// Prioritize condenses free-form text into one prioritized focus statement.
func (s *Service) Prioritize(ctx context.Context, text string) (string, error) {
	out, err := s.complete(ctx, systemPrompt,
		"From the notes below, write the single most important thing to focus on today as one short sentence.\n\n"+text)
	if err != nil {
		return "", err
	}
	out = strings.Trim(strings.SplitN(out, "\n", 2)[0], `"' `)
	if out == "" {
		return "", fmt.Errorf("empty suggestion")
	}
	return out, nil
}

// Analyze extracts themes and ranked candidate focuses from free-form text.
func (s *Service) Analyze(ctx context.Context, text string) (Analysis, error) {
	out, err := s.complete(ctx, systemPrompt,
		`Analyze the notes below. Reply with JSON only, shaped as `+
			`{"themes": ["..."], "candidates": [{"text": "...", "reason": "...", "rank": 1}]}, `+
			"with at most 5 candidates ranked from 1.\n\n"+text)
	if err != nil {
		return Analysis{}, err
	}
	var a Analysis
	if err := decodeJSON(out, &a); err != nil {
		return Analysis{}, err
	}
	if len(a.Candidates) == 0 {
		return Analysis{}, fmt.Errorf("analysis returned no candidates")
	}
	for i := range a.Candidates {
		if a.Candidates[i].Rank == 0 {
			a.Candidates[i].Rank = i + 1
		}
	}
	return a, nil
}

// Subtasks breaks a focus statement into a short ordered list of steps.
func (s *Service) Subtasks(ctx context.Context, focus string) []string {
	out, err := s.complete(ctx, systemPrompt,
		`Break this goal into 3 to 5 concrete steps. Reply with a JSON array of strings only.`+"\n\n"+focus)
	if err == nil {
		var steps []string
		if err = decodeJSON(out, &steps); err == nil {
			steps = clean(steps)
			if len(steps) > 0 {
				return steps
			}
			err = fmt.Errorf("no steps returned")
		}
	}
	s.logger.Printf("WARNING: using default subtasks: %v", err)
	return fallbackSubtasks(focus)
}

// Quote returns an inspirational quote for mood. Date is left empty.
func (s *Service) Quote(ctx context.Context, mood string) schema.DailyQuote {
	prompt := `Give one short, real, attributed inspirational quote. Reply with JSON only, shaped as {"text": "...", "author": "..."}.`
	if mood != "" {
		prompt += " The reader feels " + mood + "."
	}
	out, err := s.complete(ctx, systemPrompt, prompt)
	if err == nil {
		var q struct {
			Text   string `json:"text"`
			Author string `json:"author"`
		}
		if err = decodeJSON(out, &q); err == nil {
			if strings.TrimSpace(q.Text) != "" {
				return schema.DailyQuote{
					Text:   strings.TrimSpace(q.Text),
					Author: strings.TrimSpace(q.Author),
					Mood:   mood,
				}
			}
			err = fmt.Errorf("empty quote")
		}
	}
	s.logger.Printf("WARNING: using fallback quote: %v", err)
	return fallbackQuote(mood)
}

// decodeJSON parses the first JSON value in out, ignoring any prose or code
// fences around it.
func decodeJSON(out string, v any) error {
	start := strings.IndexAny(out, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON in reply")
	}
	dec := json.NewDecoder(strings.NewReader(out[start:]))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse reply: %w", err)
	}
	return nil
}

func clean(steps []string) []string {
	out := steps[:0]
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
