// Package daemon runs the long-lived sync process.
//
// The daemon:
//  1. Starts the sync engine and, when configured, the network prober and the
//     session file watcher
//  2. Watches the Local Store database files so writes made by other
//     processes (CLI commands) are picked up
//  3. Refreshes the engine after a burst of such writes settles
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/netstatus"
	"github.com/jhousvawls/daily-coach/internal/syncer"
	"github.com/jhousvawls/daily-coach/internal/watch"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long database writes must settle before the
	// engine is refreshed.
	DebounceInterval time.Duration

	// Prober, when set, is started and stopped with the daemon.
	Prober *netstatus.Prober

	// Session, when set, is watched for sign-in changes.
	Session *auth.SessionProvider

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 200 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon owns the engine lifecycle.
type Daemon struct {
	engine *syncer.Engine
	dbPath string
	config *Config

	watcher *watch.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a daemon for engine whose Local Store lives at dbPath.
func New(engine *syncer.Engine, dbPath string) (*Daemon, error) {
	return NewWithConfig(engine, dbPath, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(engine *syncer.Engine, dbPath string, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 200 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	w, err := watch.New()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		engine:  engine,
		dbPath:  dbPath,
		config:  config,
		watcher: w,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start runs the daemon. It blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.engine.Init(); err != nil {
		return fmt.Errorf("failed to initialise sync engine: %w", err)
	}
	if d.config.Session != nil {
		d.config.Session.Reload()
		if err := d.config.Session.Watch(); err != nil {
			d.config.Logger.Printf("WARNING: session watcher unavailable: %v", err)
		}
	}
	if d.config.Prober != nil {
		d.config.Prober.Start(d.ctx)
	}
	if err := d.engine.Start(d.ctx); err != nil {
		d.shutdown()
		return fmt.Errorf("failed to start sync engine: %w", err)
	}

	if err := d.watcher.Start(d.dbPath, d.dbPath+"-wal"); err != nil {
		d.shutdown()
		return fmt.Errorf("failed to watch store: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.dbPath)

	d.wg.Add(1)
	go d.watchStore()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.shutdown()
	return nil
}

func (d *Daemon) shutdown() {
	d.once.Do(func() {
		d.config.Logger.Println("Stopping daemon")
		d.cancel()

		if err := d.watcher.Stop(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
		d.wg.Wait()

		d.engine.Stop()
		if d.config.Prober != nil {
			d.config.Prober.Stop()
		}
		if d.config.Session != nil {
			if err := d.config.Session.Close(); err != nil {
				d.config.Logger.Printf("Error closing session watcher: %v", err)
			}
		}
		d.config.Logger.Println("Daemon stopped")
	})
}

// watchStore debounces database file events into engine refreshes.
func (d *Daemon) watchStore() {
	defer d.wg.Done()

	timer := time.NewTimer(d.config.DebounceInterval)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case _, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			timer.Reset(d.config.DebounceInterval)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)

		case <-timer.C:
			d.engine.Refresh()
		}
	}
}
