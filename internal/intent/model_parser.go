package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"moldubot/internal/llm"
	"moldubot/pkg/circuitbreaker"
	"moldubot/pkg/logger"
	"moldubot/pkg/metrics"
	"moldubot/pkg/otel"
	"moldubot/pkg/util"
)

const (
	ReasonIntegrationUnavailable = "integration_unavailable"
	ReasonSchemaInvalid          = "schema_invalid"
	ReasonValidationFailed       = "validation_failed"
	ReasonJSONDecode             = "json_decode_error"

	structuredOutputEndpoint = "intent.structured_output"
)

// ModelResult is either a schema-valid decomposition or an unusable signal
// with a reason label. There is no partial state.
type ModelResult struct {
	decomposition Decomposition
	reason        string
	usable        bool
}

func Usable(d Decomposition) ModelResult {
	return ModelResult{decomposition: d, usable: true}
}

func Unusable(reason string) ModelResult {
	return ModelResult{reason: reason}
}

// Decomposition returns the model decomposition and true when usable.
func (r ModelResult) Decomposition() (Decomposition, bool) {
	return r.decomposition, r.usable
}

func (r ModelResult) Reason() string { return r.reason }

// StructuredParser is the unreliable model path. Implementations must never
// panic or block past ctx; every failure becomes Unusable.
type StructuredParser interface {
	ParseStructured(ctx context.Context, query string) ModelResult
}

type unavailableParser struct{}

// Unavailable is the parser used when no model client could be built.
// It never sends a prompt.
func Unavailable() StructuredParser { return unavailableParser{} }

func (unavailableParser) ParseStructured(context.Context, string) ModelResult {
	return Unusable(ReasonIntegrationUnavailable)
}

// outputError tags model output failures with their metrics reason.
type outputError struct {
	reason string
	err    error
}

func (e *outputError) Error() string  { return fmt.Sprintf("%s: %v", e.reason, e.err) }
func (e *outputError) Unwrap() error  { return e.err }
func (e *outputError) Reason() string { return e.reason }

// ModelParser asks a language model for a decomposition-shaped JSON object.
// One attempt per call; no retries.
type ModelParser struct {
	generator llm.Generator
	breaker   *circuitbreaker.CircuitBreaker
	schema    *jsonschema.Schema
	timeout   time.Duration
	logger    *zap.Logger
}

// NewModelParser wires generator behind breaker. A nil breaker calls the
// generator directly.
func NewModelParser(generator llm.Generator, breaker *circuitbreaker.CircuitBreaker, l *zap.Logger) (*ModelParser, error) {
	if generator == nil {
		return nil, fmt.Errorf("model parser: nil generator")
	}
	schema, err := compileDecompositionSchema()
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &ModelParser{
		generator: generator,
		breaker:   breaker,
		schema:    schema,
		logger:    l,
	}, nil
}

// WithTimeout bounds each model call. Zero leaves ctx as is.
func (p *ModelParser) WithTimeout(d time.Duration) *ModelParser {
	p.timeout = d
	return p
}

func (p *ModelParser) ParseStructured(ctx context.Context, query string) ModelResult {
	ctx, span := otel.StartSpan(ctx, structuredOutputEndpoint)
	defer span.End()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := logger.WithTrace(ctx, p.logger)
	prompt := BuildPrompt(query)

	var decomposition Decomposition
	start := time.Now()
	call := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("structured output panic: %v", r)
			}
		}()
		raw, err := p.generator.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		decomposition, err = p.decode(raw)
		return err
	}

	var err error
	if p.breaker != nil {
		err = p.breaker.Execute(call)
	} else {
		err = call()
	}
	latency := time.Since(start)

	if err != nil {
		reason := util.ClassifyError(err)
		metrics.RecordAgentCallLatency(structuredOutputEndpoint, reason, latency)
		span.SetStatus(codes.Error, reason)
		span.SetAttributes(attribute.String("intent.unusable_reason", reason))
		log.Warn("structured output unusable",
			zap.String("reason", reason),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return Unusable(reason)
	}

	metrics.RecordAgentCallLatency(structuredOutputEndpoint, "success", latency)
	return Usable(decomposition)
}

// decode extracts the JSON object, validates it against the schema and
// builds the decomposition with unknown step tokens dropped.
func (p *ModelParser) decode(raw string) (Decomposition, error) {
	body, err := llm.ExtractJSON(raw)
	if err != nil {
		return Decomposition{}, &outputError{reason: ReasonJSONDecode, err: err}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Decomposition{}, &outputError{reason: ReasonJSONDecode, err: err}
	}
	if err := p.schema.Validate(doc); err != nil {
		return Decomposition{}, &outputError{reason: ReasonSchemaInvalid, err: err}
	}

	w := newDecompositionWire()
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Decomposition{}, &outputError{reason: ReasonJSONDecode, err: err}
	}
	d, err := w.build(false)
	if err != nil {
		return Decomposition{}, &outputError{reason: ReasonValidationFailed, err: err}
	}
	return d, nil
}
