package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/config"
	"github.com/jhousvawls/daily-coach/internal/logging"
	"github.com/jhousvawls/daily-coach/internal/migrate"
	"github.com/jhousvawls/daily-coach/internal/netstatus"
	"github.com/jhousvawls/daily-coach/internal/remote"
	"github.com/jhousvawls/daily-coach/internal/remote/couch"
	"github.com/jhousvawls/daily-coach/internal/remote/sqlstore"
	"github.com/jhousvawls/daily-coach/internal/store"
	"github.com/jhousvawls/daily-coach/internal/suggest"
	"github.com/jhousvawls/daily-coach/internal/syncer"
	"github.com/jhousvawls/daily-coach/internal/tracker"
)

// app holds everything one command invocation needs.
type app struct {
	cfg  *config.Config
	sink *logging.Sink

	db     *store.DB
	store  *store.Store
	remote *lazyRemote

	auth    auth.Provider
	session *auth.SessionProvider
	net     netstatus.Signal
	prober  *netstatus.Prober

	engine  *syncer.Engine
	tracker *tracker.Tracker
}

func openApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataPath != "" {
		cfg.Data.Path = dataPath
	}

	sink, err := logging.Open(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Quiet:      quiet,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Data.Path), 0700); err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := store.Open(cfg.Data.Path)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		sink:   sink,
		db:     db,
		store:  store.New(db, sink.Logger("store")),
		remote: &lazyRemote{cfg: cfg.Remote, logger: sink.Logger("remote")},
	}
	a.auth, a.session = identityProvider(cfg.Auth, sink.Logger("auth"))
	a.net, a.prober, err = networkSignal(cfg.Network, sink.Logger("net"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	scfg := syncer.DefaultConfig()
	scfg.BatchSize = cfg.Sync.BatchSize
	scfg.MaxRetries = cfg.Sync.MaxRetries
	scfg.DebounceInterval = cfg.Sync.Debounce
	scfg.StabilizeDelay = cfg.Sync.StabilizeDelay
	scfg.PollInterval = cfg.Sync.PollInterval
	scfg.OpTimeout = cfg.Sync.OpTimeout
	scfg.Logger = sink.Logger("sync")

	a.engine, err = syncer.NewWithConfig(db, a.remote, a.net, a.auth, scfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.engine.Init(); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.tracker = tracker.New(a.store, a.engine, a.auth, sink.Logger("tracker"))
	return a, nil
}

// withApp opens the app for one command and closes it afterwards.
func withApp(fn func(a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (a *app) Close() error {
	if a.engine != nil {
		a.engine.Stop()
	}
	if a.prober != nil {
		a.prober.Stop()
	}
	if a.session != nil {
		_ = a.session.Close()
	}
	if err := a.remote.Close(); err != nil {
		a.sink.Logger("remote").Printf("WARNING: %v", err)
	}
	err := a.db.Close()
	_ = a.sink.Close()
	return err
}

// probe refreshes the network status before a one-shot remote operation.
func (a *app) probe(ctx context.Context) bool {
	if a.prober != nil {
		return a.prober.ProbeOnce(ctx)
	}
	return a.net.Online()
}

func (a *app) migrator() *migrate.Migrator {
	cfg := migrate.DefaultConfig()
	cfg.Logger = a.sink.Logger("migrate")
	return migrate.NewWithConfig(a.store, a.remote, a.auth, cfg)
}

// suggestions returns the AI service. The API key comes from the config,
// falling back to the one stored in preferences.
func (a *app) suggestions() *suggest.Service {
	logger := a.sink.Logger("suggest")
	key := a.cfg.AI.APIKey
	if key == "" {
		key = a.store.Preferences().APIKey
	}
	client, err := suggest.NewAnthropic(key, a.cfg.AI.Model)
	if err != nil {
		return suggest.New(nil, logger)
	}
	return suggest.New(client, logger)
}

func identityProvider(cfg config.AuthConfig, logger *log.Logger) (auth.Provider, *auth.SessionProvider) {
	switch {
	case cfg.UserID != "":
		return auth.NewStatic(cfg.UserID), nil
	case cfg.Secret != "":
		s := auth.NewSessionProvider(cfg.SessionFile, []byte(cfg.Secret), logger)
		return s, s
	default:
		return auth.NewStatic(""), nil
	}
}

func networkSignal(cfg config.NetworkConfig, logger *log.Logger) (netstatus.Signal, *netstatus.Prober, error) {
	if cfg.ProbeURL == "" {
		return netstatus.NewSwitch(true), nil, nil
	}
	pcfg := netstatus.DefaultProberConfig(cfg.ProbeURL)
	pcfg.Interval = cfg.ProbeInterval
	pcfg.Logger = logger
	p, err := netstatus.NewProber(pcfg)
	if err != nil {
		return nil, nil, err
	}
	return p, p, nil
}

// lazyRemote connects to the remote store on first use, so commands that only
// touch local data never dial it. A failed connection is retried on the next
// call.
type lazyRemote struct {
	cfg    config.RemoteConfig
	logger *log.Logger

	mu      sync.Mutex
	adapter remote.Adapter
}

var _ remote.Adapter = (*lazyRemote)(nil)

func (l *lazyRemote) get(ctx context.Context) (remote.Adapter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.adapter != nil {
		return l.adapter, nil
	}
	a, err := openRemote(ctx, l.cfg, l.logger)
	if err != nil {
		return nil, err
	}
	l.adapter = a
	return a, nil
}

func openRemote(ctx context.Context, cfg config.RemoteConfig, logger *log.Logger) (remote.Adapter, error) {
	switch cfg.Driver {
	case "memory":
		logger.Println("WARNING: remote.driver is memory; remote data lives only as long as this process")
		return remote.NewMemory(), nil
	case "postgres", "libsql", "sqlite":
		return sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	case "couchdb":
		return couch.Open(ctx, cfg.CouchURL, cfg.CouchDB)
	}
	return nil, fmt.Errorf("unsupported remote driver %q", cfg.Driver)
}

func (l *lazyRemote) Insert(ctx context.Context, rec remote.Record) (remote.Record, error) {
	a, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return a.Insert(ctx, rec)
}

func (l *lazyRemote) Update(ctx context.Context, c remote.Collection, id string, fields remote.Fields) (remote.Record, error) {
	a, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return a.Update(ctx, c, id, fields)
}

func (l *lazyRemote) Delete(ctx context.Context, c remote.Collection, id string) error {
	a, err := l.get(ctx)
	if err != nil {
		return err
	}
	return a.Delete(ctx, c, id)
}

func (l *lazyRemote) List(ctx context.Context, c remote.Collection, f remote.Filter) ([]remote.Record, error) {
	a, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return a.List(ctx, c, f)
}

func (l *lazyRemote) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.adapter.(remote.Closer); ok {
		return c.Close()
	}
	return nil
}
