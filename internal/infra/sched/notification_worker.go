package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/infra/redis"
	"workspace-billing/internal/usecase"
)

const (
	reminderJob  = "trial_reminders"
	reminderLock = "lock:trial_reminders"
)

// NotificationWorker sends trial-ending reminders once per interval.
type NotificationWorker struct {
	interval time.Duration
	ahead    time.Duration
	notifUC  usecase.NotificationUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewNotificationWorker(interval, ahead time.Duration, notifUC usecase.NotificationUseCase, locker redis.Locker, logger *zerolog.Logger) *NotificationWorker {
	compLog := logger.With().Str("component", "NotificationWorker").Logger()
	return &NotificationWorker{
		interval: interval,
		ahead:    ahead,
		notifUC:  notifUC,
		locker:   locker,
		log:      &compLog,
	}
}

func (w *NotificationWorker) Run(ctx context.Context) error {
	return runEvery(ctx, reminderJob, w.interval, time.Minute, w.log, func(ctx context.Context) error {
		_, err := w.RunOnce(ctx)
		return err
	})
}

func (w *NotificationWorker) RunOnce(ctx context.Context) (int, error) {
	sent := 0
	err := withLock(ctx, w.locker, reminderLock, time.Minute, func(ctx context.Context) error {
		n, err := w.notifUC.NotifyTrialsEnding(ctx, w.ahead)
		sent = n
		return err
	})
	if sent > 0 {
		w.log.Info().Int("count", sent).Msg("trial reminders sent")
	}
	return sent, err
}
