package dashboard

import (
	"log"
	"os"
	"sync"

	"github.com/jhousvawls/daily-coach/internal/migrate"
	"github.com/jhousvawls/daily-coach/internal/schema"
	"github.com/jhousvawls/daily-coach/internal/syncer"
)

// StatsData is the payload of a stats message.
type StatsData struct {
	User schema.UserStats `json:"user"`
	Sync syncer.Stats     `json:"sync"`
}

// Handler formats engine and migration events as dashboard messages.
// It bridges between the event buses and the WebSocket server.
type Handler struct {
	server *Server
	logger *log.Logger

	// stats returns the current derived stats; optional.
	stats func() schema.UserStats

	mu   sync.Mutex
	sync syncer.Stats

	wg sync.WaitGroup
}

// NewHandler creates a new event handler connected to a dashboard server.
// stats, when non-nil, is consulted whenever sync state changes.
func NewHandler(server *Server, stats func() schema.UserStats, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{
		server: server,
		logger: logger,
		stats:  stats,
	}
}

// OnSyncState broadcasts a state change followed by refreshed stats.
func (h *Handler) OnSyncState(state syncer.State, counters syncer.Stats) {
	if err := h.server.Publish(MessageTypeSyncState, state); err != nil {
		h.logger.Printf("Failed to publish sync state: %v", err)
		return
	}
	h.mu.Lock()
	h.sync = counters
	h.mu.Unlock()
	h.broadcastStats()
}

// OnMigrationProgress broadcasts one migration progress event.
func (h *Handler) OnMigrationProgress(p migrate.Progress) {
	if p.Stage == migrate.StageComplete {
		h.logger.Printf("Migration complete (%d items)", p.Total)
	}
	if err := h.server.Publish(MessageTypeMigrationProgress, p); err != nil {
		h.logger.Printf("Failed to publish migration progress: %v", err)
	}
}

func (h *Handler) broadcastStats() {
	var data StatsData
	if h.stats != nil {
		data.User = h.stats()
	}
	h.mu.Lock()
	data.Sync = h.sync
	h.mu.Unlock()
	if err := h.server.Publish(MessageTypeStats, data); err != nil {
		h.logger.Printf("Failed to publish stats: %v", err)
	}
}

// FollowEngine forwards every state the engine publishes until the
// subscription closes. The current state is sent first.
func (h *Handler) FollowEngine(engine *syncer.Engine) {
	ch, unsub := engine.Subscribe(16)
	h.OnSyncState(engine.State(), engine.Stats())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer unsub()
		for state := range ch {
			h.OnSyncState(state, engine.Stats())
		}
	}()
}

// FollowMigration forwards migration progress until the migrator closes.
func (h *Handler) FollowMigration(m *migrate.Migrator) {
	ch, unsub := m.Subscribe(64)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer unsub()
		for p := range ch {
			h.OnMigrationProgress(p)
		}
	}()
}

// Wait blocks until every followed bus has closed.
func (h *Handler) Wait() {
	h.wg.Wait()
}
