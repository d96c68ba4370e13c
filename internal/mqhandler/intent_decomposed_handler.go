package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontract "moldubot/contracts/mq"
	"moldubot/internal/intent"
	"moldubot/internal/model"
	"moldubot/pkg/logger"
	"moldubot/pkg/mq"
)

const intentAuditHandler = "intent_decomposed_audit"

// DecompositionStore is implemented by *repository.DecompositionRepository.
type DecompositionStore interface {
	Insert(ctx context.Context, rec *model.DecompositionRecord) error
}

// IntentDecomposedHandler stores every served decomposition for offline
// evaluation. It never executes steps; the API already did.
type IntentDecomposedHandler struct {
	store  DecompositionStore
	guard  *Guard
	logger *zap.Logger
}

func NewIntentDecomposedHandler(store DecompositionStore, guard *Guard, logger *zap.Logger) *IntentDecomposedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewGuard(nil, nil, 0, logger)
	}
	return &IntentDecomposedHandler{store: store, guard: guard, logger: logger}
}

func (h *IntentDecomposedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mqcontract.IntentDecomposedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal intent.decomposed payload", zap.Error(err))
		return mq.Permanent(err)
	}
	if p.RequestID == "" {
		return mq.Permanent(fmt.Errorf("intent.decomposed without request_id"))
	}

	// rebuild through the constructor so a malformed event never lands in
	// the audit table
	var d intent.Decomposition
	if err := json.Unmarshal(p.Decomposition, &d); err != nil {
		log.Error("Invalid decomposition in event", zap.String("request_id", p.RequestID), zap.Error(err))
		return mq.Permanent(err)
	}
	canonical, err := json.Marshal(d)
	if err != nil {
		return mq.Permanent(err)
	}

	rec := &model.DecompositionRecord{
		RequestID:      p.RequestID,
		TraceID:        p.TraceID,
		Message:        p.Message,
		Source:         p.Source,
		UnusableReason: p.UnusableReason,
		Decomposition:  canonical,
		CreatedAt:      p.CreatedAt,
	}

	return h.guard.Run(ctx, intentAuditHandler, p.RequestID, func(ctx context.Context) error {
		if err := h.store.Insert(ctx, rec); err != nil {
			return fmt.Errorf("insert decomposition %s: %w", p.RequestID, err)
		}
		log.Info("Decomposition recorded",
			zap.String("request_id", p.RequestID),
			zap.String("source", p.Source),
			zap.Strings("steps", d.StepNames()),
		)
		return nil
	})
}
