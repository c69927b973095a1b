// Package ui renders terminal output for the coach CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#86EFAC"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FCD34D"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FCA5A5"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#93C5FD"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#616161", Dark: "#9CA3AF"}
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	boldStyle   = lipgloss.NewStyle().Bold(true)
	badgeStyle  = lipgloss.NewStyle().Padding(0, 1).Bold(true)
)

func init() {
	if termenv.EnvNoColor() || !IsTerminal(os.Stdout) {
		DisableColor()
	}
}

// DisableColor renders everything as plain text.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderFail(s string) string   { return failStyle.Render(s) }
func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderMuted(s string) string  { return mutedStyle.Render(s) }
func RenderBold(s string) string   { return boldStyle.Render(s) }

// RenderStatus renders a sync status indicator as a coloured badge.
func RenderStatus(status string) string {
	var c lipgloss.TerminalColor
	switch status {
	case "synced":
		c = ColorPass
	case "syncing", "pending":
		c = ColorAccent
	case "offline", "disabled":
		c = ColorMuted
	default:
		c = ColorFail
	}
	return badgeStyle.Foreground(c).Render(strings.ToUpper(status))
}

// Check renders a completion box.
func Check(done bool) string {
	if done {
		return RenderPass("[x]")
	}
	return "[ ]"
}

// ProgressBar renders pct (0..100) as a fixed-width bar.
func ProgressBar(pct, width int) string {
	if width < 1 {
		width = 1
	}
	pct = max(0, min(100, pct))
	filled := pct * width / 100
	return "[" + passStyle.Render(strings.Repeat("#", filled)) + strings.Repeat(".", width-filled) + "]" +
		fmt.Sprintf(" %3d%%", pct)
}

// Live rewrites one status line in place on a terminal and prints one line
// per update otherwise.
type Live struct {
	w    io.Writer
	tty  bool
	last string
}

// NewLive returns a Live writing to f.
func NewLive(f *os.File) *Live {
	return &Live{w: f, tty: IsTerminal(f)}
}

// NewLiveWriter returns a Live over any writer; tty selects in-place updates.
func NewLiveWriter(w io.Writer, tty bool) *Live {
	return &Live{w: w, tty: tty}
}

// Update replaces the current line. Repeated text is skipped.
func (l *Live) Update(text string) {
	if text == l.last {
		return
	}
	l.last = text
	if l.tty {
		fmt.Fprintf(l.w, "\r\033[K%s", text)
		return
	}
	fmt.Fprintln(l.w, text)
}

// Done ends the live line.
func (l *Live) Done() {
	if l.tty && l.last != "" {
		fmt.Fprintln(l.w)
	}
	l.last = ""
}
