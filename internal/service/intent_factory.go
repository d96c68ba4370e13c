package service

import (
	"time"

	"go.uber.org/zap"

	"moldubot/internal/intent"
	"moldubot/internal/llm"
	"moldubot/pkg/circuitbreaker"
	"moldubot/pkg/config"
	"moldubot/pkg/metrics"
)

const intentBreakerName = "intent_model"

// NewIntentParser wires the Ollama-backed model path behind a circuit
// breaker. When the model is disabled or the client cannot be built the
// parser runs on the rule engine alone.
func NewIntentParser(cfg config.IntentConfig, logger *zap.Logger, opts ...intent.Option) *intent.Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("intent model disabled, using rule engine only")
		return intent.NewParser(intent.Unavailable(), logger, opts...)
	}

	generator, err := llm.NewOllamaGenerator(llm.OllamaConfig{
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		logger.Warn("intent model unavailable, using rule engine only", zap.Error(err))
		return intent.NewParser(intent.Unavailable(), logger, opts...)
	}

	model, err := intent.NewModelParser(generator, NewIntentBreaker(cfg.Breaker, logger), logger)
	if err != nil {
		logger.Warn("intent model parser init failed, using rule engine only", zap.Error(err))
		return intent.NewParser(intent.Unavailable(), logger, opts...)
	}

	logger.Info("intent model enabled",
		zap.String("model", generator.Model()),
		zap.Duration("timeout", cfg.Timeout),
	)
	return intent.NewParser(model.WithTimeout(cfg.Timeout), logger, opts...)
}

// NewIntentBreaker maps the config onto breaker defaults and reports state
// changes to logs and metrics.
func NewIntentBreaker(cfg config.BreakerConfig, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	bc := circuitbreaker.DefaultConfig()
	if cfg.FailureThreshold > 0 {
		bc.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.SuccessThreshold > 0 {
		bc.SuccessThreshold = cfg.SuccessThreshold
	}
	if cfg.OpenTimeout > time.Duration(0) {
		bc.Timeout = cfg.OpenTimeout
	}
	if cfg.HalfOpenMaxRequests > 0 {
		bc.HalfOpenMaxRequests = cfg.HalfOpenMaxRequests
	}

	return circuitbreaker.New(intentBreakerName, bc, circuitbreaker.WithStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		metrics.RecordCircuitBreakerTransition(name, to.String())
	}))
}
