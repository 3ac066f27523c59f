package session

import (
	"log/slog"
	"sync"
	"time"

	"docroom/internal/storage"
	"docroom/internal/ws"
)

// Manager owns at most one live coordinator per document id. Coordinators are
// created on first use, reload their persisted state, and are shut down once
// their last connection leaves.
type Manager struct {
	mu           sync.Mutex
	coordinators map[string]*Coordinator

	store             storage.Store
	logger            *slog.Logger
	maxConnections    int
	heartbeatInterval time.Duration
	idleTimeout       time.Duration
	historyLimit      int
}

// ManagerConfig holds the shared dependencies and per-session tunables.
type ManagerConfig struct {
	Store             storage.Store
	Logger            *slog.Logger
	MaxConnections    int
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	HistoryLimit      int
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		coordinators:      make(map[string]*Coordinator),
		store:             cfg.Store,
		logger:            logger,
		maxConnections:    cfg.MaxConnections,
		heartbeatInterval: cfg.HeartbeatInterval,
		idleTimeout:       cfg.IdleTimeout,
		historyLimit:      cfg.HistoryLimit,
	}
}

// Get returns the live coordinator for a document, or nil.
func (m *Manager) Get(docID string) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.coordinators[docID]
}

// GetOrCreate returns the live coordinator for a document, activating one
// from persisted state when none is running.
func (m *Manager) GetOrCreate(docID string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getOrCreateLocked(docID)
}

func (m *Manager) getOrCreateLocked(docID string) (*Coordinator, error) {
	if coord, ok := m.coordinators[docID]; ok {
		return coord, nil
	}

	coord, err := New(Config{
		DocID:             docID,
		Store:             m.store,
		Logger:            m.logger,
		MaxConnections:    m.maxConnections,
		HeartbeatInterval: m.heartbeatInterval,
		IdleTimeout:       m.idleTimeout,
		HistoryLimit:      m.historyLimit,
		OnIdle:            m.removeIdle,
	})
	if err != nil {
		return nil, err
	}

	m.coordinators[docID] = coord

	return coord, nil
}

// Connect attaches a client to a document's session, activating the session
// if needed. The manager lock serializes connects against idle shutdown, so a
// client can never land on a coordinator that is being torn down.
func (m *Manager) Connect(docID string, client *ws.Client, userID, displayName string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coord, err := m.getOrCreateLocked(docID)
	if err != nil {
		return nil, err
	}

	if err := coord.Connect(client, userID, displayName); err != nil {
		return nil, err
	}

	return coord, nil
}

// removeIdle shuts a coordinator down once its last connection has left. A
// connection racing in through Connect wins: the coordinator stays.
func (m *Manager) removeIdle(docID string) {
	m.mu.Lock()

	coord, ok := m.coordinators[docID]
	if !ok || coord.ConnectionCount() > 0 {
		m.mu.Unlock()

		return
	}

	delete(m.coordinators, docID)
	m.mu.Unlock()

	_ = coord.Close()
	m.logger.Info("session deactivated", "doc", docID)
}

// Count returns the number of live coordinators.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.coordinators)
}

// CloseAll shuts down every live coordinator. Used on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	coords := make([]*Coordinator, 0, len(m.coordinators))

	for _, coord := range m.coordinators {
		coords = append(coords, coord)
	}

	m.coordinators = make(map[string]*Coordinator)
	m.mu.Unlock()

	for _, coord := range coords {
		_ = coord.Close()
	}
}
