package gridsession

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

var (
	// ErrSessionNotFound is returned for an unknown or reaped session
	ErrSessionNotFound = shared.NewDomainError("NOT_FOUND", "Session not found")
	// ErrTooManySessions is returned when the session limit is reached
	ErrTooManySessions = shared.NewDomainError("CONFLICT", "Too many open sessions")
)

// ManagerConfig holds session limits
type ManagerConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
	MaxSessions  int
	CallTimeout  time.Duration
}

// DefaultManagerConfig returns the default limits
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTimeout:  30 * time.Minute,
		ReapInterval: time.Minute,
		MaxSessions:  1000,
		CallTimeout:  30 * time.Second,
	}
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithPublisher publishes committed events through p
func WithPublisher(p shared.EventPublisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics records session activity through metrics
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock replaces time.Now
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// Manager owns the open sessions
type Manager struct {
	registry  *Registry
	config    ManagerConfig
	logger    *zap.Logger
	publisher shared.EventPublisher
	metrics   Metrics
	clock     func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	runMu     sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewManager creates a session manager
func NewManager(registry *Registry, config ManagerConfig, logger *zap.Logger, opts ...ManagerOption) *Manager {
	defaults := DefaultManagerConfig()
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.ReapInterval <= 0 {
		config.ReapInterval = defaults.ReapInterval
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = defaults.MaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		registry: registry,
		config:   config,
		logger:   logger.Named("gridsession"),
		metrics:  NoopMetrics{},
		clock:    time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the screen registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Create opens a session on screen and loads query, or the screen default
// query when query is empty
func (m *Manager) Create(ctx context.Context, screen, actor string, query grid.Query) (*Session, View, error) {
	sc, err := m.registry.Lookup(screen)
	if err != nil {
		return nil, View{}, err
	}

	m.mu.Lock()
	if len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, View{}, ErrTooManySessions
	}
	s, err := NewSession(SessionConfig{
		Screen:      sc,
		Actor:       actor,
		Logger:      m.logger,
		Publisher:   m.publisher,
		Metrics:     m.metrics,
		CallTimeout: m.config.CallTimeout,
		Clock:       m.clock,
	})
	if err != nil {
		m.mu.Unlock()
		return nil, View{}, err
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.metrics.SessionOpened(ctx, sc.Name)
	m.logger.Info("session opened",
		zap.String("session_id", s.ID.String()),
		zap.String("screen", sc.Name),
		zap.String("actor", actor),
	)

	if len(query) == 0 {
		query = sc.DefaultQuery.Clone()
	}
	view, err := s.Load(ctx, query)
	if err != nil {
		_ = m.Close(ctx, s.ID)
		return nil, View{}, err
	}
	return s, view, nil
}

// Get returns an open session
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.Closed() {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close closes and forgets a session
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	m.metrics.SessionClosed(ctx, s.Screen)
	m.logger.Info("session closed", zap.String("session_id", id.String()), zap.String("screen", s.Screen))
	return nil
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes sessions idle for longer than the idle timeout and returns how
// many were closed
func (m *Manager) Reap(ctx context.Context) int {
	cutoff := m.clock().Add(-m.config.IdleTimeout)
	var idle []uuid.UUID
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	reaped := 0
	for _, id := range idle {
		if err := m.Close(ctx, id); err == nil {
			reaped++
		}
	}
	if reaped > 0 {
		m.logger.Info("idle sessions reaped", zap.Int("count", reaped))
	}
	return reaped
}

// Start runs the idle reaper until Stop
func (m *Manager) Start(ctx context.Context) error {
	m.runMu.Lock()
	if m.isRunning {
		m.runMu.Unlock()
		return nil
	}
	m.isRunning = true
	m.runMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.runReaper(ctx)

	m.logger.Info("session reaper started",
		zap.Duration("idle_timeout", m.config.IdleTimeout),
		zap.Duration("interval", m.config.ReapInterval),
	)
	return nil
}

func (m *Manager) runReaper(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(ctx)
		}
	}
}

// Stop stops the reaper and closes every session
func (m *Manager) Stop(ctx context.Context) error {
	m.runMu.Lock()
	wasRunning := m.isRunning
	m.isRunning = false
	m.runMu.Unlock()

	if wasRunning && m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("session reaper stop timed out")
		return ctx.Err()
	}

	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_ = m.Close(ctx, id)
	}
	m.logger.Info("session manager stopped", zap.Int("closed", len(ids)))
	return nil
}
