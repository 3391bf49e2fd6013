//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/infra/redis"
)

var nopLogger = zerolog.Nop()

type fakeStatus struct {
	mu      sync.Mutex
	pending int
	calls   int
	err     error
}

func (f *fakeStatus) WorkspaceStatus(ctx context.Context, workspaceID string) (*model.StatusView, error) {
	return model.NoSubscriptionView(), nil
}

func (f *fakeStatus) ExpireLapsedTrials(ctx context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	n := min(limit, f.pending)
	f.pending -= n
	return n, nil
}

type fakeNotifications struct {
	within time.Duration
	sent   int
}

func (f *fakeNotifications) WorkspaceEvent(ctx context.Context, kind adapter.NotificationKind, workspaceID, subject, body string) {
}

func (f *fakeNotifications) NotifyTrialsEnding(ctx context.Context, within time.Duration) (int, error) {
	f.within = within
	return f.sent, nil
}

type fakeStats struct {
	totals map[model.SubscriptionStatus]int
	err    error
}

func (f *fakeStats) Totals(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return f.totals, f.err
}

func (f *fakeStats) Revenue(ctx context.Context) (week, month, year map[string]int64, err error) {
	return nil, nil, nil, nil
}

func newLocker(t *testing.T) (*redis.RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return redis.NewLocker(redis.Wrap(cli)), mr
}

func TestExpiryWorker_DrainsInBatches(t *testing.T) {
	status := &fakeStatus{pending: 25}
	w := NewExpiryWorker(time.Hour, 10, status, nil, &nopLogger)

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, 3, status.calls, "10 + 10 + 5")
}

func TestExpiryWorker_PropagatesErrors(t *testing.T) {
	status := &fakeStatus{err: errors.New("db down")}
	w := NewExpiryWorker(time.Hour, 10, status, nil, &nopLogger)

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestExpiryWorker_SkipsWhenLockHeld(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()
	token, err := locker.TryLock(ctx, trialSweepLock, time.Minute)
	require.NoError(t, err)

	status := &fakeStatus{pending: 5}
	w := NewExpiryWorker(time.Hour, 10, status, locker, &nopLogger)
	_, err = w.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrSkipped)
	assert.Zero(t, status.calls)

	require.NoError(t, locker.Unlock(ctx, trialSweepLock, token))
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestExpiryWorker_ReleasesLock(t *testing.T) {
	locker, mr := newLocker(t)
	w := NewExpiryWorker(time.Hour, 10, &fakeStatus{pending: 1}, locker, &nopLogger)

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, mr.Exists(trialSweepLock))
}

func TestExpiryWorker_RunStopsOnCancel(t *testing.T) {
	status := &fakeStatus{pending: 1}
	w := NewExpiryWorker(time.Hour, 10, status, nil, &nopLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		status.mu.Lock()
		defer status.mu.Unlock()
		return status.calls > 0
	}, time.Second, 10*time.Millisecond, "first run happens at startup")
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNotificationWorker_RunOnce(t *testing.T) {
	notif := &fakeNotifications{sent: 2}
	w := NewNotificationWorker(24*time.Hour, 72*time.Hour, notif, nil, &nopLogger)

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 72*time.Hour, notif.within)
}

func TestStatsWorker_RunOnce(t *testing.T) {
	stats := &fakeStats{totals: map[model.SubscriptionStatus]int{model.SubscriptionStatusActive: 3}}
	w := NewStatsWorker(time.Minute, stats, nil, &nopLogger)
	require.NoError(t, w.RunOnce(context.Background()))

	stats.err = errors.New("db down")
	assert.Error(t, w.RunOnce(context.Background()))
}
