// Package netstatus provides the network status signal the sync engine
// consumes: a current online flag plus change events.
package netstatus

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhousvawls/daily-coach/internal/pubsub"
)

// Signal reports connectivity.
type Signal interface {
	// Online reports the current status.
	Online() bool

	// Subscribe delivers the new status on every transition.
	Subscribe(buffer int) (<-chan bool, func())
}

// Switch is a manually driven Signal.
type Switch struct {
	online atomic.Bool
	mu     sync.Mutex
	bus    *pubsub.Bus[bool]
}

var _ Signal = (*Switch)(nil)

// NewSwitch returns a Switch in the given state.
func NewSwitch(online bool) *Switch {
	s := &Switch{bus: pubsub.New[bool]()}
	s.online.Store(online)
	return s
}

// Online implements Signal.
func (s *Switch) Online() bool {
	return s.online.Load()
}

// Subscribe implements Signal.
func (s *Switch) Subscribe(buffer int) (<-chan bool, func()) {
	return s.bus.Subscribe(buffer)
}

// Set changes the status. Subscribers are notified only on a transition, and
// Online already reports the new value when they are.
func (s *Switch) Set(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online.Swap(online) == online {
		return
	}
	s.bus.Publish(online)
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	// URL is fetched with HEAD on every probe. Any response counts as online.
	URL string

	// Interval between probes (default: 10s).
	Interval time.Duration

	// Timeout of one probe (default: 5s).
	Timeout time.Duration

	// Client used for probes (default: http.DefaultClient).
	Client *http.Client

	// Logger for transitions (default: stderr with [net] prefix).
	Logger *log.Logger
}

// DefaultProberConfig returns the default configuration for url.
func DefaultProberConfig(url string) ProberConfig {
	return ProberConfig{
		URL:      url,
		Interval: 10 * time.Second,
		Timeout:  5 * time.Second,
		Client:   http.DefaultClient,
		Logger:   log.New(os.Stderr, "[net] ", log.LstdFlags),
	}
}

// Prober is a Signal driven by periodic HTTP reachability checks. It reports
// offline until its first successful probe.
type Prober struct {
	*Switch
	config ProberConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProber creates a Prober. Call Start to begin probing.
func NewProber(config ProberConfig) (*Prober, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("probe URL is required")
	}
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[net] ", log.LstdFlags)
	}
	return &Prober{Switch: NewSwitch(false), config: config}, nil
}

// Start probes immediately and then every Interval until Stop or ctx is
// cancelled.
func (p *Prober) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop()
}

// Stop halts probing and waits for the loop to exit.
func (p *Prober) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Prober) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.ProbeOnce(p.ctx)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.ProbeOnce(p.ctx)
		}
	}
}

// ProbeOnce runs one probe, updates the status and returns it.
func (p *Prober) ProbeOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	online := false
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.config.URL, nil)
	if err == nil {
		resp, err := p.config.Client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			online = true
		}
	}
	if ctx.Err() != nil && p.ctx != nil && p.ctx.Err() != nil {
		// Shutting down; keep the last known status.
		return p.Online()
	}

	if was := p.Online(); was != online {
		if online {
			p.config.Logger.Printf("Network online (%s)", p.config.URL)
		} else {
			p.config.Logger.Printf("Network offline (%s unreachable)", p.config.URL)
		}
	}
	p.Set(online)
	return online
}
