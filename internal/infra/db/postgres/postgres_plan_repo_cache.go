package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/repository"
	"workspace-billing/internal/infra/metrics"
	red "workspace-billing/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

const activePlansKey = "plans:active"

func planIDKey(id string) string     { return "plan:" + id }
func planSlugKey(slug string) string { return "plan:slug:" + slug }

type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PlanRepository {
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "plan_cache").Logger(),
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	return d.findOne(ctx, planIDKey(id), func() (*model.Plan, error) { return d.inner.FindByID(ctx, tx, id) })
}

func (d *planRepoCacheDecorator) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error) {
	return d.findOne(ctx, planSlugKey(slug), func() (*model.Plan, error) { return d.inner.FindBySlug(ctx, tx, slug) })
}

func (d *planRepoCacheDecorator) findOne(ctx context.Context, key string, load func() (*model.Plan, error)) (*model.Plan, error) {
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return &plan, nil
		}
	} else if !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache read failed")
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := load()
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(plan); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	val, err := d.cache.Get(ctx, activePlansKey)
	if err == nil {
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			metrics.IncCacheRequest("plan_list", "hit")
			return plans, nil
		}
	}

	metrics.IncCacheRequest("plan_list", "miss")
	plans, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		if b, err := json.Marshal(plans); err == nil {
			_ = d.cache.Set(ctx, activePlansKey, b, d.ttl)
		}
	}
	return plans, nil
}

// Writes invalidate the plan, its slug and the catalog list.
func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if err := d.inner.Save(ctx, tx, plan); err != nil {
		return err
	}
	d.invalidate(ctx, planIDKey(plan.ID), planSlugKey(plan.Slug), activePlansKey)
	return nil
}

func (d *planRepoCacheDecorator) SetProviderPlanID(ctx context.Context, tx repository.Tx, id string, provider model.PaymentProvider, providerPlanID string) error {
	if err := d.inner.SetProviderPlanID(ctx, tx, id, provider, providerPlanID); err != nil {
		return err
	}
	keys := []string{planIDKey(id), activePlansKey}
	if p, err := d.inner.FindByID(ctx, tx, id); err == nil {
		keys = append(keys, planSlugKey(p.Slug))
	}
	d.invalidate(ctx, keys...)
	return nil
}

func (d *planRepoCacheDecorator) invalidate(ctx context.Context, keys ...string) {
	if err := d.cache.Del(ctx, keys...); err != nil {
		d.log.Warn().Err(err).Strs("keys", keys).Msg("plan cache invalidation failed")
	}
}
