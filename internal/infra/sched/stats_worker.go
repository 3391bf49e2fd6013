package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"workspace-billing/internal/infra/metrics"
	"workspace-billing/internal/usecase"
)

// StatsWorker refreshes gauges that are cheaper to poll than to track per write.
type StatsWorker struct {
	interval time.Duration
	statsUC  usecase.StatsUseCase
	poolStat func() *pgxpool.Stat
	log      *zerolog.Logger
}

// NewStatsWorker accepts pool.Stat; nil skips the pool gauges.
func NewStatsWorker(interval time.Duration, statsUC usecase.StatsUseCase, poolStat func() *pgxpool.Stat, logger *zerolog.Logger) *StatsWorker {
	l := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{interval: interval, statsUC: statsUC, poolStat: poolStat, log: &l}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	return runEvery(ctx, "stats_refresh", w.interval, 30*time.Second, w.log, w.RunOnce)
}

func (w *StatsWorker) RunOnce(ctx context.Context) error {
	if w.poolStat != nil {
		metrics.SetDBPoolStats(w.poolStat())
	}
	byStatus, err := w.statsUC.Totals(ctx)
	if err != nil {
		return err
	}
	metrics.SetSubscriptionsTotal(byStatus)
	return nil
}
