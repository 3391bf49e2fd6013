package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/infra/metrics"
	"workspace-billing/internal/infra/redis"
	"workspace-billing/internal/usecase"
)

const (
	trialSweepJob  = "trial_sweep"
	trialSweepLock = "lock:trial_sweep"
	// maxSweepRounds bounds one run; the next tick picks up the rest.
	maxSweepRounds = 20
)

// ExpiryWorker proactively moves lapsed trials to expired. Reads stay correct without
// it; it keeps stored status and metrics honest for workspaces nobody looks at.
type ExpiryWorker struct {
	interval time.Duration
	batch    int
	statusUC usecase.StatusUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, batch int, statusUC usecase.StatusUseCase, locker redis.Locker, logger *zerolog.Logger) *ExpiryWorker {
	if batch <= 0 {
		batch = 500
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, batch: batch, statusUC: statusUC, locker: locker, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	return runEvery(ctx, trialSweepJob, w.interval, 5*time.Minute, w.log, func(ctx context.Context) error {
		_, err := w.RunOnce(ctx)
		return err
	})
}

// RunOnce sweeps under the cluster-wide lock and returns how many trials expired.
// It returns ErrSkipped when another replica holds the lock.
func (w *ExpiryWorker) RunOnce(ctx context.Context) (int, error) {
	total := 0
	err := withLock(ctx, w.locker, trialSweepLock, 5*time.Minute, func(ctx context.Context) error {
		for round := 0; round < maxSweepRounds; round++ {
			n, err := w.statusUC.ExpireLapsedTrials(ctx, w.batch)
			total += n
			if err != nil {
				return err
			}
			if n < w.batch {
				return nil
			}
		}
		return nil
	})
	if total > 0 {
		metrics.IncTrialsExpired("sweep", total)
		w.log.Info().Int("count", total).Msg("lapsed trials expired")
	}
	return total, err
}
