// Package portability writes the local data to a portable file and reads it
// back. JSON, YAML and TOML are supported.
package portability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jhousvawls/daily-coach/internal/store"
)

// ErrNotEmpty is returned by Restore when the store already holds data.
var ErrNotEmpty = errors.New("local store is not empty")

// Format is an export encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{JSON, YAML, TOML}
}

// ParseFormat accepts a format name, case-insensitively. "yml" is YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json, yaml or toml)", s)
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer format of %s", path)
	}
	return ParseFormat(ext)
}

// Options control Export.
type Options struct {
	// IncludeSecrets keeps the AI API key in the output.
	IncludeSecrets bool
}

// Export writes snap to w.
func Export(w io.Writer, snap store.Snapshot, format Format, opts Options) error {
	if !opts.IncludeSecrets {
		snap.Preferences.APIKey = ""
	}

	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
	case TOML:
		if err := toml.NewEncoder(w).Encode(snap); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

// ExportFile writes snap to path, replacing it atomically.
func ExportFile(path string, snap store.Snapshot, format Format, opts Options) error {
	var buf bytes.Buffer
	if err := Export(&buf, snap, format, opts); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set export permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// Read decodes an export.
func Read(r io.Reader, format Format) (store.Snapshot, error) {
	var snap store.Snapshot
	switch format {
	case JSON:
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return snap, fmt.Errorf("invalid json export: %w", err)
		}
	case YAML:
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
			return snap, fmt.Errorf("invalid yaml export: %w", err)
		}
	case TOML:
		if _, err := toml.NewDecoder(r).Decode(&snap); err != nil {
			return snap, fmt.Errorf("invalid toml export: %w", err)
		}
	default:
		return snap, fmt.Errorf("unknown format %q", format)
	}
	return snap, nil
}

// RestoreOptions control Restore.
type RestoreOptions struct {
	// Overwrite replaces existing local data.
	Overwrite bool
	// DryRun validates without writing.
	DryRun bool
}

// RestoreResult counts restored items.
type RestoreResult struct {
	Goals          int
	TinyGoals      int
	DailyTasks     int
	RecurringTasks int
	Quotes         int
	Errors         []string
}

// Restore validates snap and writes it to s. Invalid items are skipped and
// reported. Restored data is local only; it reaches the remote store through
// a migration.
func Restore(s *store.Store, snap store.Snapshot, opts RestoreOptions) (RestoreResult, error) {
	var res RestoreResult
	if !opts.Overwrite && s.HasData() {
		return res, ErrNotEmpty
	}

	goals := snap.Goals[:0:0]
	for i := range snap.Goals {
		g := snap.Goals[i]
		if err := g.Validate(); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		goals = append(goals, g)
	}
	tiny := snap.TinyGoals[:0:0]
	for i := range snap.TinyGoals {
		g := snap.TinyGoals[i]
		if err := g.Validate(); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		tiny = append(tiny, g)
	}
	daily := snap.DailyTasks[:0:0]
	for i := range snap.DailyTasks {
		d := snap.DailyTasks[i]
		if err := d.Validate(); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		daily = append(daily, d)
	}
	recurring := snap.RecurringTasks[:0:0]
	for i := range snap.RecurringTasks {
		r := snap.RecurringTasks[i]
		if err := r.Validate(); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		recurring = append(recurring, r)
	}
	quotes := snap.Quotes[:0:0]
	for i := range snap.Quotes {
		q := snap.Quotes[i]
		if err := q.Validate(); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		quotes = append(quotes, q)
	}
	prefs := snap.Preferences
	if err := prefs.Validate(); err != nil {
		res.Errors = append(res.Errors, err.Error())
		prefs = s.Preferences()
	}
	if prefs.APIKey == "" {
		prefs.APIKey = s.Preferences().APIKey
	}

	res.Goals, res.TinyGoals, res.DailyTasks = len(goals), len(tiny), len(daily)
	res.RecurringTasks, res.Quotes = len(recurring), len(quotes)
	if opts.DryRun {
		return res, nil
	}

	writes := []func() error{
		func() error { return s.SetGoals(goals) },
		func() error { return s.SetTinyGoals(tiny) },
		func() error { return s.SetDailyTasks(daily) },
		func() error { return s.SetRecurringTasks(recurring) },
		func() error { return s.SetQuotes(quotes) },
		func() error { return s.SetPreferences(prefs) },
		func() error { return s.SetStats(snap.Stats) },
	}
	for _, write := range writes {
		if err := write(); err != nil {
			return res, fmt.Errorf("failed to restore: %w", err)
		}
	}
	return res, nil
}
