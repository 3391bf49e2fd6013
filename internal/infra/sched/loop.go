package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/infra/metrics"
	"workspace-billing/internal/infra/redis"
)

// runEvery calls job immediately and then on every tick until ctx is done. Each run
// gets its own timeout so a stuck run cannot stall the loop.
func runEvery(ctx context.Context, name string, interval, timeout time.Duration, log *zerolog.Logger, job func(ctx context.Context) error) error {
	if interval <= 0 {
		interval = time.Minute
	}
	log.Info().Str("job", name).Dur("interval", interval).Msg("worker started")

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := job(runCtx)
		switch {
		case errors.Is(err, ErrSkipped):
			metrics.IncJob(name, "skipped")
			log.Debug().Str("job", name).Msg("job owned by another replica")
		case err != nil:
			metrics.IncJob(name, "error")
			log.Error().Err(err).Str("job", name).Msg("job failed")
		default:
			metrics.IncJob(name, "ok")
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("job", name).Msg("worker stopped")
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}

// ErrSkipped is returned by RunOnce when another replica holds the job's lock.
var ErrSkipped = errors.New("job skipped: lock held elsewhere")

// withLock runs fn while holding key. A nil locker runs fn unguarded.
func withLock(ctx context.Context, locker redis.Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	token, err := locker.TryLock(ctx, key, ttl)
	if errors.Is(err, redis.ErrLockHeld) {
		return ErrSkipped
	}
	if err != nil {
		return err
	}
	defer func() {
		// release even when ctx timed out
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = locker.Unlock(uctx, key, token)
	}()
	return fn(ctx)
}
