// Package logging builds the shared log writer and per-component loggers.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select the log destination.
type Options struct {
	// File, when set, receives logs through a rotating writer instead of
	// stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Quiet discards all output.
	Quiet bool
}

// Sink is the destination every component logger writes to.
type Sink struct {
	w      io.Writer
	closer io.Closer
}

// Open returns a Sink for opts. Close it on exit to flush the log file.
func Open(opts Options) (*Sink, error) {
	switch {
	case opts.Quiet:
		return &Sink{w: io.Discard}, nil
	case opts.File == "":
		return &Sink{w: os.Stderr}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return &Sink{w: lj, closer: lj}, nil
}

// Discard returns a Sink that drops everything.
func Discard() *Sink {
	return &Sink{w: io.Discard}
}

// Writer returns the underlying writer.
func (s *Sink) Writer() io.Writer {
	return s.w
}

// Logger returns a logger for one component, e.g. Logger("sync") prefixes
// lines with "[sync] ".
func (s *Sink) Logger(component string) *log.Logger {
	if s.w == io.Discard {
		return log.New(io.Discard, "", 0)
	}
	return log.New(s.w, "["+component+"] ", log.LstdFlags)
}

// Close flushes and closes the log file, if any.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
