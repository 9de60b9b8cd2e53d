package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	mu     sync.Mutex
	calls  []time.Time
	report services.ReconcileReport
	err    error
}

func (f *fakeReconciler) ReconcileDue(_ context.Context, now time.Time) (services.ReconcileReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.report, f.err
}

func (f *fakeReconciler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestReconcileWorker_DefaultInterval(t *testing.T) {
	w := NewReconcileWorker(&fakeReconciler{}, &sharedApplication.FixedClock{}, ReconcileWorkerConfig{}, nil)
	assert.Equal(t, DefaultReconcileInterval, w.config.Interval)
	assert.Equal(t, time.Second, DefaultReconcileWorkerConfig().Interval)
}

func TestReconcileWorker_RunOnce(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeReconciler{report: services.ReconcileReport{Scanned: 3, Renewed: 1, Expired: 2}}
	w := NewReconcileWorker(fake, &sharedApplication.FixedClock{At: now}, DefaultReconcileWorkerConfig(), nil)

	report := w.RunOnce(context.Background())
	assert.Equal(t, 3, report.Changed())
	require.Len(t, fake.calls, 1)
	assert.Equal(t, now, fake.calls[0])

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Zero(t, stats.Failures)
	require.NotNil(t, stats.LastRunAt)
	assert.Equal(t, now, *stats.LastRunAt)
	assert.Equal(t, fake.report, stats.LastReport)
	assert.False(t, stats.Running)
}

func TestReconcileWorker_RecordsFailures(t *testing.T) {
	fake := &fakeReconciler{err: errors.New("database is locked")}
	w := NewReconcileWorker(fake, &sharedApplication.FixedClock{}, DefaultReconcileWorkerConfig(), nil)

	w.RunOnce(context.Background())
	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, "database is locked", stats.LastError)

	fake.err = nil
	w.RunOnce(context.Background())
	stats = w.Stats()
	assert.Equal(t, int64(2), stats.Runs)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Empty(t, stats.LastError)
}

func TestReconcileWorker_RunAndStop(t *testing.T) {
	fake := &fakeReconciler{}
	w := NewReconcileWorker(fake, &sharedApplication.FixedClock{}, ReconcileWorkerConfig{Interval: 10 * time.Millisecond}, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool { return fake.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, w.IsRunning())

	w.Stop()
	w.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.False(t, w.IsRunning())
}

func TestReconcileWorker_StopsOnContextCancel(t *testing.T) {
	fake := &fakeReconciler{}
	w := NewReconcileWorker(fake, &sharedApplication.FixedClock{}, ReconcileWorkerConfig{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return fake.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
