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

var _ repository.SubscriptionRepository = (*subscriptionRepoCacheDecorator)(nil)

func subscriptionWorkspaceKey(workspaceID string) string { return "sub:ws:" + workspaceID }

// subscriptionRepoCacheDecorator caches the authoritative row per workspace.
// Reads inside a transaction bypass the cache.
type subscriptionRepoCacheDecorator struct {
	repository.SubscriptionRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewSubscriptionRepoCacheDecorator(inner repository.SubscriptionRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.SubscriptionRepository {
	return &subscriptionRepoCacheDecorator{
		SubscriptionRepository: inner,
		cache:                  cache,
		ttl:                    ttl,
		log:                    logger.With().Str("component", "subscription_cache").Logger(),
	}
}

func (d *subscriptionRepoCacheDecorator) LatestByWorkspace(ctx context.Context, tx repository.Tx, workspaceID string) (*model.Subscription, error) {
	if tx != nil {
		return d.SubscriptionRepository.LatestByWorkspace(ctx, tx, workspaceID)
	}
	key := subscriptionWorkspaceKey(workspaceID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var s model.Subscription
		if json.Unmarshal([]byte(val), &s) == nil {
			metrics.IncCacheRequest("subscription", "hit")
			return &s, nil
		}
	} else if !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("subscription cache read failed")
	}

	metrics.IncCacheRequest("subscription", "miss")
	s, err := d.SubscriptionRepository.LatestByWorkspace(ctx, tx, workspaceID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(s); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return s, nil
}

func (d *subscriptionRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if err := d.SubscriptionRepository.Create(ctx, tx, s); err != nil {
		return err
	}
	d.invalidate(ctx, s.WorkspaceID)
	return nil
}

func (d *subscriptionRepoCacheDecorator) Update(ctx context.Context, tx repository.Tx, id string, upd model.SubscriptionUpdate) (*model.Subscription, error) {
	return d.written(ctx)(d.SubscriptionRepository.Update(ctx, tx, id, upd))
}

func (d *subscriptionRepoCacheDecorator) UpdateByProviderSubscriptionID(ctx context.Context, tx repository.Tx, providerSubID string, upd model.SubscriptionUpdate) (*model.Subscription, error) {
	return d.written(ctx)(d.SubscriptionRepository.UpdateByProviderSubscriptionID(ctx, tx, providerSubID, upd))
}

func (d *subscriptionRepoCacheDecorator) ExpireTrial(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return d.written(ctx)(d.SubscriptionRepository.ExpireTrial(ctx, tx, id))
}

// written drops the cached row of whichever workspace a mutation touched.
func (d *subscriptionRepoCacheDecorator) written(ctx context.Context) func(*model.Subscription, error) (*model.Subscription, error) {
	return func(s *model.Subscription, err error) (*model.Subscription, error) {
		if err != nil {
			return nil, err
		}
		d.invalidate(ctx, s.WorkspaceID)
		return s, nil
	}
}

func (d *subscriptionRepoCacheDecorator) invalidate(ctx context.Context, workspaceID string) {
	if err := d.cache.Del(ctx, subscriptionWorkspaceKey(workspaceID)); err != nil {
		d.log.Warn().Err(err).Str("workspace_id", workspaceID).Msg("subscription cache invalidation failed")
	}
}
