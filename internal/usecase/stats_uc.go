package usecase

import (
	"context"
	"time"

	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (byStatus map[model.SubscriptionStatus]int, err error)
	// Revenue returns captured amounts per currency over the last week, month and year.
	Revenue(ctx context.Context) (week, month, year map[string]int64, err error)
}

type statsUC struct {
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository

	log *zerolog.Logger
	now func() time.Time
}

func NewStatsUseCase(subs repository.SubscriptionRepository, payments repository.PaymentRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{subs: subs, payments: payments, log: logger, now: time.Now}
}

func (s *statsUC) Totals(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return s.subs.CountByStatus(ctx, repository.NoTX)
}

func (s *statsUC) Revenue(ctx context.Context) (map[string]int64, map[string]int64, map[string]int64, error) {
	now := s.now()
	w, err := s.payments.SumSince(ctx, repository.NoTX, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := s.payments.SumSince(ctx, repository.NoTX, now.AddDate(0, -1, 0))
	if err != nil {
		return nil, nil, nil, err
	}
	y, err := s.payments.SumSince(ctx, repository.NoTX, now.AddDate(-1, 0, 0))
	if err != nil {
		return nil, nil, nil, err
	}
	return w, m, y, nil
}
