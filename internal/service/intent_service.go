package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mqcontract "moldubot/contracts/mq"
	"moldubot/internal/intent"
	"moldubot/pkg/logger"
	"moldubot/pkg/metrics"
	"moldubot/pkg/trace"
)

const decompositionCachePrefix = "intent:decomposition:"

// EventPublisher is satisfied by *mq.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// IntentService fronts the intent parser with a Redis cache and announces
// every served decomposition on the events exchange.
type IntentService struct {
	parser    *intent.Parser
	rdb       *redis.Client
	ttl       time.Duration
	publisher EventPublisher
	logger    *zap.Logger
}

// NewIntentService builds the service. rdb and publisher may be nil.
func NewIntentService(parser *intent.Parser, rdb *redis.Client, ttl time.Duration, publisher EventPublisher, logger *zap.Logger) *IntentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentService{
		parser:    parser,
		rdb:       rdb,
		ttl:       ttl,
		publisher: publisher,
		logger:    logger,
	}
}

type cachedOutcome struct {
	Decomposition json.RawMessage `json:"decomposition"`
	Source        intent.Source   `json:"source"`
}

// DecompositionCacheKey hashes the sanitized query.
func DecompositionCacheKey(sanitized string) string {
	sum := sha256.Sum256([]byte(sanitized))
	return decompositionCachePrefix + hex.EncodeToString(sum[:])
}

// Decompose never fails: cache and publish errors are logged only. Cache
// hits are counted and published like fresh parses, flagged as cached.
func (s *IntentService) Decompose(ctx context.Context, message string) intent.Outcome {
	log := logger.WithTrace(ctx, s.logger)
	query := intent.Sanitize(message)

	var key string
	if query != "" && s.cacheEnabled() {
		key = DecompositionCacheKey(query)
		if out, ok := s.loadCached(ctx, log, key); ok {
			metrics.RecordIntentCacheHit(string(out.Source))
			s.publish(ctx, log, message, out, true)
			return out
		}
	}

	out := s.parser.Resolve(ctx, message)

	// rule fallbacks are not cached so a recovered model is used again
	if key != "" && out.Source == intent.SourceModel {
		s.storeCached(ctx, log, key, out)
	}
	s.publish(ctx, log, message, out, false)
	return out
}

// Augment prepends the decomposition block. injected is false when the
// message was empty or already carried the block.
func (s *IntentService) Augment(ctx context.Context, message string) (augmented string, injected bool) {
	return intent.Augment(message, func(text string) intent.Decomposition {
		return s.Decompose(ctx, text).Decomposition
	})
}

func (s *IntentService) cacheEnabled() bool {
	return s.rdb != nil && s.ttl > 0
}

func (s *IntentService) loadCached(ctx context.Context, log *zap.Logger, key string) (intent.Outcome, bool) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn("decomposition cache read failed", zap.String("key", key), zap.Error(err))
		}
		return intent.Outcome{}, false
	}

	var c cachedOutcome
	var d intent.Decomposition
	if err := json.Unmarshal(raw, &c); err != nil {
		log.Warn("decomposition cache entry corrupt", zap.String("key", key), zap.Error(err))
		return intent.Outcome{}, false
	}
	if err := json.Unmarshal(c.Decomposition, &d); err != nil {
		log.Warn("decomposition cache entry invalid", zap.String("key", key), zap.Error(err))
		return intent.Outcome{}, false
	}
	log.Debug("decomposition cache hit", zap.String("key", key))
	return intent.Outcome{Decomposition: d, Source: c.Source}, true
}

func (s *IntentService) storeCached(ctx context.Context, log *zap.Logger, key string, out intent.Outcome) {
	d, err := json.Marshal(out.Decomposition)
	if err != nil {
		log.Warn("decomposition encode failed", zap.Error(err))
		return
	}
	raw, err := json.Marshal(cachedOutcome{Decomposition: d, Source: out.Source})
	if err != nil {
		log.Warn("decomposition encode failed", zap.Error(err))
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		log.Warn("decomposition cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *IntentService) publish(ctx context.Context, log *zap.Logger, message string, out intent.Outcome, cached bool) {
	if s.publisher == nil {
		return
	}
	d, err := json.Marshal(out.Decomposition)
	if err != nil {
		log.Warn("decomposition encode failed", zap.Error(err))
		return
	}
	payload := mqcontract.IntentDecomposedPayload{
		RequestID:      uuid.NewString(),
		TraceID:        trace.FromContext(ctx),
		Message:        message,
		Source:         string(out.Source),
		UnusableReason: out.UnusableReason,
		Decomposition:  d,
		Cached:         cached,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, mqcontract.RoutingKeyIntentDecomposed, payload); err != nil {
		log.Warn("publish intent.decomposed failed",
			zap.String("request_id", payload.RequestID),
			zap.Error(err),
		)
	}
}
