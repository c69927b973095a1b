// Package syncer implements the Sync Engine: it drains the durable Sync Queue
// against the remote adapter whenever sync is enabled, the network is up and
// a user is signed in.
//
// Lifecycle:
//  1. New wires the collaborators
//  2. Init loads the persisted sync state and queue length
//  3. Start subscribes to network and identity changes and runs the
//     debounce / poll loop
//  4. Stop cancels the loop and removes every subscription
//
// Delivery is at most MaxRetries attempts per operation. Operations within a
// batch are independent: a failure never blocks the next operation, and
// there is no ordering guarantee across retries.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/identity"
	"github.com/jhousvawls/daily-coach/internal/netstatus"
	"github.com/jhousvawls/daily-coach/internal/pubsub"
	"github.com/jhousvawls/daily-coach/internal/queue"
	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/store"
)

// Config holds configuration for the engine.
type Config struct {
	// BatchSize is how many operations are sent between queue checkpoints.
	BatchSize int

	// MaxRetries is the number of failed attempts after which an operation
	// is abandoned.
	MaxRetries int

	// DebounceInterval coalesces bursts of local writes into one drain.
	DebounceInterval time.Duration

	// StabilizeDelay is how long to wait after coming online before draining.
	StabilizeDelay time.Duration

	// PollInterval triggers a drain periodically so failed operations are
	// retried without new writes. Zero disables polling.
	PollInterval time.Duration

	// OpTimeout bounds each remote call. Zero means no timeout.
	OpTimeout time.Duration

	// Logger for engine activity
	Logger *log.Logger

	// Now is the clock (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:        10,
		MaxRetries:       3,
		DebounceInterval: 500 * time.Millisecond,
		StabilizeDelay:   time.Second,
		PollInterval:     30 * time.Second,
		OpTimeout:        15 * time.Second,
		Logger:           log.New(os.Stderr, "[sync] ", log.LstdFlags),
		Now:              time.Now,
	}
}

// Stats are cumulative counters since the engine was created.
type Stats struct {
	Drains    int64 `json:"drains"`
	Committed int64 `json:"committed"`
	Failed    int64 `json:"failed"`
	Abandoned int64 `json:"abandoned"`
}

// Report describes one drain attempt.
type Report struct {
	// Skipped names the unmet precondition when the drain did not run.
	Skipped   string
	Attempted int
	Committed int
	Failed    int
	Abandoned int
	Remaining int
	// Interrupted is set when the network went away mid-drain.
	Interrupted bool
}

// Engine is the Sync Engine.
type Engine struct {
	kv      store.KV
	queue   *queue.Queue
	ids     *identity.Table
	adapter remote.Adapter
	net     netstatus.Signal
	auth    auth.Provider
	config  *Config

	mu       sync.Mutex
	state    State
	stats    Stats
	draining bool
	rerun    bool

	bus     *pubsub.Bus[State]
	trigger chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()
}

// New creates an engine with the default configuration.
func New(kv store.KV, adapter remote.Adapter, net netstatus.Signal, provider auth.Provider) (*Engine, error) {
	return NewWithConfig(kv, adapter, net, provider, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration. Zero fields
// fall back to the defaults.
func NewWithConfig(kv store.KV, adapter remote.Adapter, net netstatus.Signal, provider auth.Provider, config *Config) (*Engine, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv cannot be nil")
	}
	if adapter == nil {
		return nil, fmt.Errorf("adapter cannot be nil")
	}
	if net == nil {
		return nil, fmt.Errorf("network signal cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("identity provider cannot be nil")
	}

	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = defaults.DebounceInterval
	}
	if cfg.StabilizeDelay < 0 {
		cfg.StabilizeDelay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		kv:      kv,
		queue:   queue.New(kv, cfg.Logger),
		ids:     identity.NewTable(kv),
		adapter: adapter,
		net:     net,
		auth:    provider,
		config:  &cfg,
		bus:     pubsub.New[State](),
		trigger: make(chan struct{}, 1),
	}, nil
}

// Queue returns the engine's queue.
func (e *Engine) Queue() *queue.Queue {
	return e.queue
}

// Init loads the persisted state and the current queue length. A corrupt
// state record is logged and replaced by the zero state.
func (e *Engine) Init() error {
	p, err := loadPersisted(e.kv)
	if err != nil {
		e.config.Logger.Printf("WARNING: %v (resetting)", err)
		p = persistedState{}
	}
	pending := e.queue.Len()

	e.mu.Lock()
	e.state = State{
		Online:            e.net.Online(),
		LastSyncTime:      p.LastSyncTime,
		PendingOperations: pending,
		SyncEnabled:       p.SyncEnabled,
		Error:             p.Error,
		ErrorMessage:      p.ErrorMessage,
	}
	e.mu.Unlock()
	return nil
}

// Refresh rereads the persisted enabled flag and queue length, picking up
// changes made by other processes. A drain is scheduled when sync was just
// enabled or the queue grew.
func (e *Engine) Refresh() {
	p, err := loadPersisted(e.kv)
	if err != nil {
		e.config.Logger.Printf("WARNING: %v", err)
		return
	}
	pending := e.queue.Len()

	e.mu.Lock()
	grew := pending > e.state.PendingOperations || (p.SyncEnabled && !e.state.SyncEnabled)
	changed := grew || pending != e.state.PendingOperations || p.SyncEnabled != e.state.SyncEnabled
	e.state.SyncEnabled = p.SyncEnabled
	e.state.PendingOperations = pending
	snapshot := e.state
	e.mu.Unlock()

	if changed {
		e.bus.Publish(snapshot)
	}
	if snapshot.SyncEnabled && pending > 0 && grew {
		e.schedule()
	}
}

// Start subscribes to network and identity changes and runs the trigger
// loop until Stop or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	netCh, unsubNet := e.net.Subscribe(4)
	authCh, unsubAuth := e.auth.Subscribe(4)
	e.unsubs = append(e.unsubs, unsubNet, unsubAuth)

	e.wg.Add(1)
	go e.run(netCh, authCh)

	e.mu.Lock()
	pending := e.state.SyncEnabled && e.state.PendingOperations > 0
	e.mu.Unlock()
	if pending {
		e.schedule()
	}
	return nil
}

// Stop cancels the loop, waits for it and removes every subscription.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
	e.bus.Close()
}

// State returns a snapshot of the sync state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns the cumulative counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Subscribe delivers a State snapshot on every change.
func (e *Engine) Subscribe(buffer int) (<-chan State, func()) {
	return e.bus.Subscribe(buffer)
}

// SetSyncEnabled persists the enabled flag. Enabling schedules a drain.
func (e *Engine) SetSyncEnabled(enabled bool) error {
	p, err := updatePersisted(e.kv, func(p *persistedState) { p.SyncEnabled = enabled })
	if err != nil {
		return err
	}
	e.update(func(s *State) { s.SyncEnabled = p.SyncEnabled })
	if enabled {
		e.schedule()
	}
	return nil
}

// Enqueue appends ops to the queue and schedules a debounced drain. It is a
// no-op while sync is disabled.
func (e *Engine) Enqueue(ops ...queue.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	e.mu.Lock()
	enabled := e.state.SyncEnabled
	e.mu.Unlock()
	if !enabled {
		return nil
	}

	n, err := e.queue.Append(ops...)
	if err != nil {
		return err
	}
	if _, err := updatePersisted(e.kv, func(p *persistedState) { p.PendingOperations = n }); err != nil {
		e.config.Logger.Printf("WARNING: %v", err)
	}
	e.update(func(s *State) { s.PendingOperations = n })
	e.schedule()
	return nil
}

// SyncNow is the manual trigger. It is a no-op while sync is disabled or a
// drain is running; otherwise it clears the error flag and drains.
func (e *Engine) SyncNow(ctx context.Context) (Report, error) {
	e.mu.Lock()
	if !e.state.SyncEnabled {
		e.mu.Unlock()
		return Report{Skipped: "sync disabled"}, nil
	}
	if e.draining {
		e.mu.Unlock()
		return Report{Skipped: "already syncing"}, nil
	}
	e.state.Error = false
	e.state.ErrorMessage = ""
	e.mu.Unlock()

	return e.Drain(ctx)
}

// schedule requests a debounced drain. Requests coalesce.
func (e *Engine) schedule() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// update mutates the in-memory state and publishes the result.
func (e *Engine) update(fn func(*State)) {
	e.mu.Lock()
	fn(&e.state)
	snapshot := e.state
	e.mu.Unlock()
	e.bus.Publish(snapshot)
}

func (e *Engine) run(netCh <-chan bool, authCh <-chan auth.Event) {
	defer e.wg.Done()

	var (
		debounce  *time.Timer
		debounceC <-chan time.Time
		stabilize *time.Timer
		stabC     <-chan time.Time
		pollC     <-chan time.Time
	)
	if e.config.PollInterval > 0 {
		ticker := time.NewTicker(e.config.PollInterval)
		defer ticker.Stop()
		pollC = ticker.C
	}
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		if stabilize != nil {
			stabilize.Stop()
		}
	}()

	for {
		select {
		case <-e.ctx.Done():
			return

		case <-e.trigger:
			if debounce == nil {
				debounce = time.NewTimer(e.config.DebounceInterval)
			} else {
				debounce.Reset(e.config.DebounceInterval)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			e.drainFromLoop()

		case <-pollC:
			e.drainFromLoop()

		case online, ok := <-netCh:
			if !ok {
				netCh = nil
				continue
			}
			if online {
				e.config.Logger.Printf("Network online, draining in %s", e.config.StabilizeDelay)
				e.update(func(s *State) { s.Online = true })
				if stabilize == nil {
					stabilize = time.NewTimer(e.config.StabilizeDelay)
				} else {
					stabilize.Reset(e.config.StabilizeDelay)
				}
				stabC = stabilize.C
			} else {
				e.config.Logger.Println("Network offline")
				e.update(func(s *State) {
					s.Online = false
					s.Syncing = false
				})
				if stabilize != nil {
					stabilize.Stop()
				}
				stabC = nil
			}

		case <-stabC:
			stabC = nil
			e.drainFromLoop()

		case ev, ok := <-authCh:
			if !ok {
				authCh = nil
				continue
			}
			if ev.Present {
				e.config.Logger.Printf("Signed in as %s", ev.Identity.UserID)
				e.schedule()
			} else {
				e.config.Logger.Println("Signed out, sync paused")
			}
		}
	}
}

func (e *Engine) drainFromLoop() {
	report, err := e.Drain(e.ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.config.Logger.Printf("Drain failed: %v", err)
		}
		return
	}
	if report.Skipped == "" && report.Attempted > 0 {
		e.config.Logger.Printf("Drain complete: attempted=%d committed=%d failed=%d abandoned=%d remaining=%d",
			report.Attempted, report.Committed, report.Failed, report.Abandoned, report.Remaining)
	}
}
