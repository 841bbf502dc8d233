package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingReminder struct {
	calls atomic.Int32
	err   error
}

func (r *countingReminder) RemindOverdue(ctx context.Context) (int, error) {
	r.calls.Add(1)
	return 3, r.err
}

func TestOverdueWorker_RunsOnTick(t *testing.T) {
	reminder := &countingReminder{}
	w := NewOverdueWorker(OverdueWorkerConfig{Interval: 10 * time.Millisecond}, reminder, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "double start")

	assert.Eventually(t, func() bool { return reminder.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	stopped := reminder.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, reminder.calls.Load(), "no runs after Stop")
	assert.Equal(t, int(stopped), w.Runs())
	assert.NoError(t, w.Stop(), "stop is idempotent")
}

func TestOverdueWorker_RunOnStartRecordsErrors(t *testing.T) {
	reminder := &countingReminder{err: errors.New("db locked")}
	w := NewOverdueWorker(OverdueWorkerConfig{Interval: time.Hour, RunOnStart: true}, reminder, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return w.Runs() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.EqualError(t, w.LastError(), "db locked")
}

type stubWorker struct {
	name     string
	startErr error
	log      *[]string
	mu       *sync.Mutex
}

func (s *stubWorker) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.log = append(*s.log, "start "+s.name)
	return s.startErr
}

func (s *stubWorker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.log = append(*s.log, "stop "+s.name)
	return nil
}

func (s *stubWorker) Name() string { return s.name }

func TestWorkerManager_Lifecycle(t *testing.T) {
	var log []string
	var mu sync.Mutex
	m := NewWorkerManager(zap.NewNop())
	m.Register(&stubWorker{name: "a", log: &log, mu: &mu})
	m.Register(&stubWorker{name: "broken", startErr: errors.New("boom"), log: &log, mu: &mu})
	m.Register(&stubWorker{name: "b", log: &log, mu: &mu})
	assert.Equal(t, 3, m.GetWorkerCount())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.NoError(t, m.StopAll())

	assert.Equal(t, []string{"start a", "start broken", "start b", "stop b", "stop a"}, log)
}
