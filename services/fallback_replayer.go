package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"organic-hub/models"
	awspkg "organic-hub/pkg/aws"
	"organic-hub/repository"
)

// OrderReplayer moves orders accepted while Postgres was down from the local
// fallback store into Postgres.
type OrderReplayer struct {
	orders   repository.OrderRepository
	fallback *repository.FallbackOrderStore
	cache    ProductCache
	metrics  Metrics
	logger   *zap.Logger
}

func NewOrderReplayer(orders repository.OrderRepository, fallback *repository.FallbackOrderStore, cache ProductCache, metrics Metrics, logger *zap.Logger) *OrderReplayer {
	if cache == nil {
		cache = NopCache{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &OrderReplayer{orders: orders, fallback: fallback, cache: cache, metrics: metrics, logger: logger}
}

// Run replays every interval until ctx is done.
func (r *OrderReplayer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReplayOnce(ctx); err != nil && !repository.IsUnreachable(err) {
				r.logger.Error("order replay failed", zap.Error(err))
			}
		}
	}
}

// ReplayOnce writes pending local orders to Postgres and returns how many
// left the local store. It stops at the first unreachable error so the
// remaining orders keep their place. An order whose stock is gone by replay
// time is stored as cancelled. Orders cancelled while the pass runs are
// skipped.
func (r *OrderReplayer) ReplayOnce(ctx context.Context) (int, error) {
	pending, err := r.fallback.All()
	if err != nil || len(pending) == 0 {
		return 0, err
	}

	done := 0
	var stopErr error
	for i := range pending {
		id := pending[i].ID
		ok, err := r.fallback.Replay(id, func(order *models.Order) error {
			return r.replay(ctx, order)
		})
		if repository.IsUnreachable(err) {
			stopErr = err
			break
		}
		if err != nil {
			r.logger.Error("local order not replayed", zap.String("order_id", id.String()), zap.Error(err))
			continue
		}
		if ok {
			done++
		}
	}

	if done > 0 {
		r.logger.Info("local orders replayed", zap.Int("count", done), zap.Int("remaining", len(pending)-done))
	}
	return done, stopErr
}

func (r *OrderReplayer) replay(ctx context.Context, order *models.Order) error {
	exists, err := r.orders.Exists(ctx, order.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = r.orders.Place(ctx, order)
	if err == repository.ErrInsufficientStock {
		at := time.Now().UTC()
		order.Status = models.StatusCancelled
		order.CancelledAt = &at
		order.Notes = appendNote(order.Notes, "cancelled during sync: insufficient stock")
		err = r.orders.Insert(ctx, order)
		if err == nil {
			count(r.metrics, awspkg.MetricOrdersCancelled, map[string]string{"Reason": "replay_stock"})
		}
		return err
	}
	if err == nil {
		invalidateStock(ctx, r.cache, order)
		count(r.metrics, awspkg.MetricOrdersReplayed, nil)
	}
	return err
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}
