package gridsession_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/domain/grid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(cfg gridsession.ManagerConfig, opts ...gridsession.ManagerOption) *gridsession.Manager {
	return gridsession.NewManager(gridsession.NewRegistry(testScreen(newBackend())), cfg, nil, opts...)
}

func TestManager_CreateUnknownScreen(t *testing.T) {
	m := newManager(gridsession.ManagerConfig{})

	_, _, err := m.Create(context.Background(), "missing", "kim", nil)

	assert.True(t, errors.Is(err, gridsession.ErrScreenNotFound))
	assert.Equal(t, 0, m.Count())
}

func TestManager_CreateUsesDefaultQuery(t *testing.T) {
	b := newBackend()
	screen := testScreen(b)
	screen.DefaultQuery = grid.Query{"year": "2024"}
	m := gridsession.NewManager(gridsession.NewRegistry(screen), gridsession.ManagerConfig{}, nil)
	defer func() { _ = m.Stop(context.Background()) }()

	_, view, err := m.Create(context.Background(), "items", "kim", nil)
	require.NoError(t, err)
	assert.Equal(t, grid.Query{"year": "2024"}, view.Query)

	_, view, err = m.Create(context.Background(), "items", "kim", grid.Query{"year": "2025"})
	require.NoError(t, err)
	assert.Equal(t, grid.Query{"year": "2025"}, view.Query)
}

func TestManager_MaxSessions(t *testing.T) {
	m := newManager(gridsession.ManagerConfig{MaxSessions: 1})
	defer func() { _ = m.Stop(context.Background()) }()

	_, _, err := m.Create(context.Background(), "items", "kim", nil)
	require.NoError(t, err)
	_, _, err = m.Create(context.Background(), "items", "lee", nil)

	assert.True(t, errors.Is(err, gridsession.ErrTooManySessions))
	assert.Equal(t, 1, m.Count())
}

func TestManager_GetAndClose(t *testing.T) {
	m := newManager(gridsession.ManagerConfig{})
	s, _, err := m.Create(context.Background(), "items", "kim", nil)
	require.NoError(t, err)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(context.Background(), s.ID))
	_, err = m.Get(s.ID)
	assert.True(t, errors.Is(err, gridsession.ErrSessionNotFound))
	assert.True(t, errors.Is(m.Close(context.Background(), s.ID), gridsession.ErrSessionNotFound))
	_, err = m.Get(uuid.New())
	assert.True(t, errors.Is(err, gridsession.ErrSessionNotFound))
}

func TestManager_ReapClosesIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 11, 30, 9, 0, 0, 0, time.UTC)}
	metrics := &recordingMetrics{}
	m := newManager(gridsession.ManagerConfig{IdleTimeout: 10 * time.Minute},
		gridsession.WithClock(clock.Now), gridsession.WithMetrics(metrics))
	idle, _, err := m.Create(context.Background(), "items", "kim", nil)
	require.NoError(t, err)
	clock.Advance(8 * time.Minute)
	busy, _, err := m.Create(context.Background(), "items", "lee", nil)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	reaped := m.Reap(context.Background())

	assert.Equal(t, 1, reaped)
	assert.True(t, idle.Closed())
	assert.False(t, busy.Closed())
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 1, metrics.closed)
}

func TestManager_StartStop(t *testing.T) {
	m := newManager(gridsession.ManagerConfig{ReapInterval: 10 * time.Millisecond})
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	s, _, err := m.Create(context.Background(), "items", "kim", nil)
	require.NoError(t, err)

	require.NoError(t, m.Stop(context.Background()))

	assert.True(t, s.Closed())
	assert.Equal(t, 0, m.Count())
}
