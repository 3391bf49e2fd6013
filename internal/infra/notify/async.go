package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/infra/logging"
	"workspace-billing/internal/infra/metrics"
	"workspace-billing/internal/infra/worker"
)

var _ adapter.Notifier = (*Async)(nil)

// Async hands notifications to a worker pool so callers never wait on delivery.
// Notify only fails when the queue is saturated or stopped.
type Async struct {
	inner   adapter.Notifier
	pool    *worker.Pool
	timeout time.Duration
	log     zerolog.Logger
}

func NewAsync(inner adapter.Notifier, pool *worker.Pool, timeout time.Duration, logger *zerolog.Logger) *Async {
	return &Async{
		inner:   inner,
		pool:    pool,
		timeout: timeout,
		log:     logger.With().Str("component", "notify_async").Logger(),
	}
}

func (a *Async) Notify(ctx context.Context, n adapter.Notification) error {
	traceID := logging.TraceID(ctx)
	err := a.pool.Submit(func(wctx context.Context) error {
		sctx, cancel := context.WithTimeout(wctx, a.timeout)
		defer cancel()
		if err := a.inner.Notify(sctx, n); err != nil {
			metrics.IncNotification(string(n.Kind), "error")
			a.log.Warn().Err(err).Str("trace_id", traceID).Str("kind", string(n.Kind)).
				Str("workspace_id", n.WorkspaceID).Msg("notification delivery failed")
			return nil
		}
		metrics.IncNotification(string(n.Kind), "sent")
		return nil
	})
	if err != nil {
		metrics.IncNotification(string(n.Kind), "dropped")
	}
	return err
}
