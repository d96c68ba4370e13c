package intent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"moldubot/pkg/logger"
	"moldubot/pkg/metrics"
)

// Source tells which branch produced a decomposition.
type Source string

const (
	SourceDefault Source = "default"
	SourceModel   Source = "model"
	SourceRule    Source = "rule"
)

// Outcome is a decomposition plus how it was reached.
type Outcome struct {
	Decomposition  Decomposition
	Source         Source
	UnusableReason string
}

// Parser turns an utterance into a Decomposition. It holds only immutable
// configuration and is safe to share across goroutines.
type Parser struct {
	model  StructuredParser
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Parser)

// WithClock fixes the clock used for the current calendar year.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// NewParser builds the orchestrator. A nil model behaves like Unavailable.
func NewParser(model StructuredParser, l *zap.Logger, opts ...Option) *Parser {
	if model == nil {
		model = Unavailable()
	}
	if l == nil {
		l = zap.NewNop()
	}
	p := &Parser{model: model, logger: l, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse always returns a valid decomposition.
func (p *Parser) Parse(ctx context.Context, userMessage string) Decomposition {
	return p.Resolve(ctx, userMessage).Decomposition
}

// Resolve is Parse with the branch taken.
func (p *Parser) Resolve(ctx context.Context, userMessage string) Outcome {
	log := logger.WithTrace(ctx, p.logger)

	query := Sanitize(userMessage)
	if query == "" {
		log.Info("empty intent query, returning default decomposition")
		metrics.RecordIntentParse(string(SourceDefault))
		return Outcome{Decomposition: DefaultDecomposition(userMessage), Source: SourceDefault}
	}

	result := p.model.ParseStructured(ctx, query)
	proposal, ok := result.Decomposition()
	if !ok {
		log.Info("model decomposition unusable, falling back to rules",
			zap.String("reason", result.Reason()),
		)
		metrics.RecordIntentModelUnusable(result.Reason())
		metrics.RecordIntentParse(string(SourceRule))
		return Outcome{
			Decomposition:  p.assemble(log, query, DefaultDecomposition(query).steps),
			Source:         SourceRule,
			UnusableReason: result.Reason(),
		}
	}

	d := p.assemble(log, query, proposal.steps)
	log.Info("model decomposition accepted", zap.Strings("steps", d.StepNames()))
	metrics.RecordIntentParse(string(SourceModel))
	return Outcome{Decomposition: d, Source: SourceModel}
}

// RuleDecomposition builds a decomposition from the rule engine alone.
func (p *Parser) RuleDecomposition(userMessage string) Decomposition {
	query := Sanitize(userMessage)
	if query == "" {
		return DefaultDecomposition(userMessage)
	}
	return p.assemble(p.logger, query, DefaultDecomposition(query).steps)
}

// NormalizeSteps prefers rule-inferred steps. Only when the rules find
// nothing are the proposed steps used, first occurrence kept.
func NormalizeSteps(proposed []Step, query string) []Step {
	if inferred := InferSteps(query); len(inferred) > 0 {
		return inferred
	}
	valid := make([]Step, 0, len(proposed))
	for _, s := range proposed {
		if s.Valid() {
			valid = append(valid, s)
		}
	}
	return dedupeSteps(valid)
}

// assemble recomputes every structured field from the rule engine. The
// only outside input is the fallback step list.
func (p *Parser) assemble(log *zap.Logger, query string, fallbackSteps []Step) Decomposition {
	steps := NormalizeSteps(fallbackSteps, query)

	df, err := BuildDateFilter(query, p.now())
	if err != nil {
		log.DPanic("rule engine produced an invalid date filter", zap.String("query", query), zap.Error(err))
		df = NoDateFilter()
	}

	d, err := NewDecomposition(Fields{
		OriginalQuery:     query,
		Steps:             steps,
		SummaryLineTarget: ExtractSummaryLineTarget(query),
		DateFilter:        df,
		MissingSlots:      BuildMissingSlots(steps, query),
	})
	if err != nil {
		log.DPanic("rule engine produced an invalid decomposition", zap.String("query", query), zap.Error(err))
		return DefaultDecomposition(query)
	}
	return d
}
