package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
)

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestPrioritize(t *testing.T) {
	f := &fakeCompleter{reply: "\"Finish the quarterly report.\"\nBecause it is due."}
	s := NewQuiet(f)

	got, err := s.Prioritize(context.Background(), "report due, emails, gym")
	if err != nil {
		t.Fatalf("Prioritize failed: %v", err)
	}
	if got != "Finish the quarterly report." {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(f.prompts[0], "report due") {
		t.Error("notes missing from prompt")
	}
}

func TestPrioritize_Errors(t *testing.T) {
	if _, err := NewQuiet(nil).Prioritize(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	down := errors.New("overloaded")
	if _, err := NewQuiet(&fakeCompleter{err: down}).Prioritize(context.Background(), "x"); !errors.Is(err, down) {
		t.Errorf("err = %v, want wrapped %v", err, down)
	}
}

func TestAnalyze(t *testing.T) {
	reply := "Here you go:\n```json\n" +
		`{"themes": ["work", "health"], "candidates": [{"text": "Ship the report", "rank": 1}, {"text": "Go to the gym"}]}` +
		"\n```"
	a, err := NewQuiet(&fakeCompleter{reply: reply}).Analyze(context.Background(), "notes")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(a.Themes) != 2 || len(a.Candidates) != 2 {
		t.Fatalf("analysis = %+v", a)
	}
	if a.Candidates[1].Rank != 2 {
		t.Errorf("missing rank not filled: %+v", a.Candidates[1])
	}

	if _, err := NewQuiet(&fakeCompleter{reply: "no json here"}).Analyze(context.Background(), "notes"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := NewQuiet(&fakeCompleter{reply: `{"themes": []}`}).Analyze(context.Background(), "notes"); err == nil {
		t.Error("expected error for no candidates")
	}
}

func TestSubtasks(t *testing.T) {
	tests := []struct {
		name      string
		completer Completer
		want      int
		fallback  bool
	}{
		{"parsed", &fakeCompleter{reply: `["Outline", " ", "Draft", "Edit"]`}, 3, false},
		{"unconfigured", nil, 4, true},
		{"failure", &fakeCompleter{err: errors.New("timeout")}, 4, true},
		{"garbage", &fakeCompleter{reply: "sure thing"}, 4, true},
		{"empty list", &fakeCompleter{reply: "[]"}, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := NewQuiet(tt.completer).Subtasks(context.Background(), "Write a book")
			if len(steps) != tt.want {
				t.Fatalf("steps = %v, want %d", steps, tt.want)
			}
			if tt.fallback && !strings.Contains(steps[0], "Write a book") {
				t.Errorf("fallback does not mention the focus: %q", steps[0])
			}
		})
	}
}

func TestQuote(t *testing.T) {
	q := NewQuiet(&fakeCompleter{reply: `{"text": "Keep going.", "author": "Someone"}`}).Quote(context.Background(), "tired")
	if q.Text != "Keep going." || q.Author != "Someone" || q.Mood != "tired" {
		t.Errorf("quote = %+v", q)
	}

	fb := NewQuiet(nil).Quote(context.Background(), "motivated")
	if fb.Text == "" || fb.Author == "" || fb.Mood != "motivated" {
		t.Errorf("fallback = %+v", fb)
	}
	again := NewQuiet(nil).Quote(context.Background(), "motivated")
	if again != fb {
		t.Error("fallback not stable for the same mood")
	}
	if unknown := NewQuiet(nil).Quote(context.Background(), "whimsical"); unknown.Text == "" {
		t.Error("no fallback for unknown mood")
	}
}

func TestNewAnthropic_NoKey(t *testing.T) {
	if _, err := NewAnthropic("  ", ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestAnthropic_Complete(t *testing.T) {
	var gotModel, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		gotKey = r.Header.Get("X-Api-Key")
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "test-model",
			"content": [{"type": "text", "text": "Focus on the report."}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c, err := NewAnthropic("sk-test", "test-model", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewAnthropic failed: %v", err)
	}
	out, err := c.Complete(context.Background(), systemPrompt, "notes")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != "Focus on the report." {
		t.Errorf("out = %q", out)
	}
	if gotKey != "sk-test" || gotModel != "test-model" {
		t.Errorf("key=%q model=%q", gotKey, gotModel)
	}
}

func TestAnthropic_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "api_error", "message": "boom"}}`))
	}))
	defer srv.Close()

	c, err := NewAnthropic("sk-test", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewAnthropic failed: %v", err)
	}
	s := NewQuiet(c)
	if steps := s.Subtasks(context.Background(), "Plan"); len(steps) == 0 {
		t.Error("no fallback on server error")
	}
	if _, err := s.Prioritize(context.Background(), "x"); err == nil {
		t.Error("expected error from Prioritize")
	}
}
