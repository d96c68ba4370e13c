package mqhandler

import (
	"context"

	"go.uber.org/zap"

	"moldubot/pkg/logger"
	"moldubot/pkg/mq"
	"moldubot/pkg/util"
)

// Guard wraps a handler body with Redis dedup and a bounded retry budget.
// Both collaborators are optional.
type Guard struct {
	deduper    *util.Deduper
	retries    *util.RetryCounter
	maxRetries int64
	logger     *zap.Logger
}

func NewGuard(deduper *util.Deduper, retries *util.RetryCounter, maxRetries int64, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{deduper: deduper, retries: retries, maxRetries: maxRetries, logger: logger}
}

// Run executes fn once per (handler, id). Failures release the dedup lock
// and are requeued while retryable and under budget; otherwise they are
// marked permanent so the consumer dead-letters them.
func (g *Guard) Run(ctx context.Context, handler, id string, fn func(ctx context.Context) error) error {
	log := logger.WithTrace(ctx, g.logger).With(zap.String("handler", handler), zap.String("id", id))

	if g.deduper != nil && !g.deduper.AcquireOnce(ctx, handler, id) {
		return nil
	}

	err := fn(ctx)
	if err == nil {
		if g.retries != nil {
			if rerr := g.retries.Reset(ctx, util.FormatRetryKey(handler, id)); rerr != nil {
				log.Warn("Failed to reset retry counter", zap.Error(rerr))
			}
		}
		return nil
	}

	if g.deduper != nil {
		g.deduper.Release(ctx, handler, id)
	}

	retryable, errType := util.IsRetryableError(err)
	count := int64(1)
	if g.retries != nil {
		n, rerr := g.retries.IncrementAndGet(ctx, util.FormatRetryKey(handler, id))
		if rerr != nil {
			log.Warn("Failed to increment retry counter", zap.Error(rerr))
		} else {
			count = n
		}
	}

	if !util.ShouldRetry(count, g.maxRetries, retryable) {
		log.Error("Giving up on message",
			zap.String("error_type", errType),
			zap.Int64("attempt", count),
			zap.Error(err),
		)
		return mq.Permanent(err)
	}

	log.Warn("Handler failed, will retry",
		zap.String("error_type", errType),
		zap.Int64("attempt", count),
		zap.Error(err),
	)
	return err
}
