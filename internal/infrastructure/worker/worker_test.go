package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockActivator struct {
	mu       sync.Mutex
	calls    int
	limits   []int
	activate func(call int) (int, error)
}

func (m *mockActivator) ActivateDue(ctx context.Context, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.limits = append(m.limits, limit)
	if m.activate != nil {
		return m.activate(m.calls)
	}
	return 0, nil
}

func (m *mockActivator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestPriceActivationWorker_RunOnce(t *testing.T) {
	activator := &mockActivator{activate: func(call int) (int, error) {
		if call == 2 {
			return 1, errors.New("database is locked")
		}
		return 2, nil
	}}
	w := NewPriceActivationWorker(PriceActivationConfig{BatchSize: 7}, activator, zap.NewNop())

	assert.Equal(t, 2, w.RunOnce(context.Background()))
	assert.Equal(t, 1, w.RunOnce(context.Background()))

	stats := w.Stats()
	assert.Equal(t, 3, stats.Activated)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, "database is locked", stats.LastError)
	assert.Equal(t, []int{7, 7}, activator.limits)
}

func TestPriceActivationWorker_Lifecycle(t *testing.T) {
	activator := &mockActivator{}
	w := NewPriceActivationWorker(PriceActivationConfig{PollInterval: 10 * time.Millisecond}, activator, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start")

	assert.Eventually(t, func() bool { return activator.callCount() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	calls := activator.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, activator.callCount(), "no passes after stop")
	assert.False(t, w.Stats().Running)
	assert.NoError(t, w.Stop(), "stop is idempotent")
}

type stubWorker struct {
	name     string
	startErr error
	stopErr  error
	started  bool
	stopped  bool
}

func (s *stubWorker) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubWorker) Stop() error {
	s.stopped = true
	return s.stopErr
}

func (s *stubWorker) Name() string { return s.name }

func TestManager(t *testing.T) {
	m := NewManager(zap.NewNop())
	ok := &stubWorker{name: "ok"}
	broken := &stubWorker{name: "broken", startErr: errors.New("boom"), stopErr: errors.New("stuck")}
	m.Register(ok)
	m.Register(broken)
	assert.Equal(t, 2, m.WorkerCount())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.True(t, ok.started)
	assert.Error(t, m.StartAll(context.Background()))

	err := m.StopAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.True(t, ok.stopped)
	assert.False(t, m.IsRunning())

	assert.NoError(t, m.StopAll())
}
