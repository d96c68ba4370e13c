package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultSummaryLineTarget = 5
	MinSummaryLineTarget     = 1
	MaxSummaryLineTarget     = 20
)

var ErrInvalidDecomposition = errors.New("invalid intent decomposition")

// Fields are the raw proposed values a Decomposition is built from.
type Fields struct {
	OriginalQuery     string
	Steps             []Step
	SummaryLineTarget int
	DateFilter        DateFilter
	MissingSlots      []Slot
}

// Decomposition is the validated interpretation of one utterance.
// It has no setters; every value goes through NewDecomposition.
type Decomposition struct {
	originalQuery     string
	steps             []Step
	summaryLineTarget int
	dateFilter        DateFilter
	missingSlots      []Slot
}

// NewDecomposition canonicalizes f and checks every schema invariant:
// trimmed query, deduplicated steps in first-occurrence order, a line target
// in [1,20], allow-listed missing slots sorted alphabetically and dropped
// entirely when no booking step is present.
func NewDecomposition(f Fields) (Decomposition, error) {
	for _, s := range f.Steps {
		if !s.Valid() {
			return Decomposition{}, fmt.Errorf("%w: unknown step %d", ErrInvalidDecomposition, int(s))
		}
	}
	if f.SummaryLineTarget < MinSummaryLineTarget || f.SummaryLineTarget > MaxSummaryLineTarget {
		return Decomposition{}, fmt.Errorf("%w: summary_line_target %d out of [%d,%d]",
			ErrInvalidDecomposition, f.SummaryLineTarget, MinSummaryLineTarget, MaxSummaryLineTarget)
	}

	// Re-run the filter constructor so hand-built zero values stay canonical.
	df, err := NewDateFilter(f.DateFilter.mode, f.DateFilter.relative, f.DateFilter.start, f.DateFilter.end)
	if err != nil {
		return Decomposition{}, fmt.Errorf("%w: %v", ErrInvalidDecomposition, err)
	}

	steps := dedupeSteps(f.Steps)
	slots, err := canonicalSlots(f.MissingSlots)
	if err != nil {
		return Decomposition{}, err
	}
	if !containsStep(steps, StepBookMeetingRoom) {
		slots = []Slot{}
	}

	return Decomposition{
		originalQuery:     strings.TrimSpace(f.OriginalQuery),
		steps:             steps,
		summaryLineTarget: f.SummaryLineTarget,
		dateFilter:        df,
		missingSlots:      slots,
	}, nil
}

func canonicalSlots(in []Slot) ([]Slot, error) {
	seen := make(map[Slot]struct{}, len(in))
	out := make([]Slot, 0, len(in))
	for _, s := range in {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: unknown missing slot %q", ErrInvalidDecomposition, string(s))
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// DefaultDecomposition is returned for input that carries no request at all.
func DefaultDecomposition(userMessage string) Decomposition {
	return Decomposition{
		originalQuery:     strings.TrimSpace(userMessage),
		steps:             []Step{StepReadCurrentMail},
		summaryLineTarget: DefaultSummaryLineTarget,
		dateFilter:        NoDateFilter(),
		missingSlots:      []Slot{},
	}
}

func (d Decomposition) OriginalQuery() string { return d.originalQuery }

func (d Decomposition) Steps() []Step {
	out := make([]Step, len(d.steps))
	copy(out, d.steps)
	return out
}

func (d Decomposition) HasStep(s Step) bool { return containsStep(d.steps, s) }

func (d Decomposition) SummaryLineTarget() int { return d.summaryLineTarget }

func (d Decomposition) DateFilter() DateFilter { return d.dateFilter }

func (d Decomposition) MissingSlots() []Slot {
	out := make([]Slot, len(d.missingSlots))
	copy(out, d.missingSlots)
	return out
}

// StepNames returns the wire tokens of the steps in execution order.
func (d Decomposition) StepNames() []string {
	out := make([]string, 0, len(d.steps))
	for _, s := range d.steps {
		out = append(out, s.String())
	}
	return out
}

// MissingSlotNames returns the wire tokens of the missing slots.
func (d Decomposition) MissingSlotNames() []string {
	out := make([]string, 0, len(d.missingSlots))
	for _, s := range d.missingSlots {
		out = append(out, string(s))
	}
	return out
}

type decompositionWire struct {
	OriginalQuery     string         `json:"original_query"`
	Steps             []string       `json:"steps"`
	SummaryLineTarget int            `json:"summary_line_target"`
	DateFilter        dateFilterWire `json:"date_filter"`
	MissingSlots      []string       `json:"missing_slots"`
}

func newDecompositionWire() decompositionWire {
	return decompositionWire{
		Steps:             []string{},
		SummaryLineTarget: DefaultSummaryLineTarget,
		DateFilter:        dateFilterWire{Mode: "none"},
		MissingSlots:      []string{},
	}
}

// build converts wire values. Unknown step tokens are an error in strict
// mode and silently dropped otherwise.
func (w decompositionWire) build(strictSteps bool) (Decomposition, error) {
	steps := make([]Step, 0, len(w.Steps))
	for _, name := range w.Steps {
		s, ok := ParseStep(strings.TrimSpace(name))
		if !ok {
			if strictSteps {
				return Decomposition{}, fmt.Errorf("%w: unknown step %q", ErrInvalidDecomposition, name)
			}
			continue
		}
		steps = append(steps, s)
	}

	df, err := w.DateFilter.build()
	if err != nil {
		return Decomposition{}, fmt.Errorf("%w: %v", ErrInvalidDecomposition, err)
	}

	slots := make([]Slot, 0, len(w.MissingSlots))
	for _, name := range w.MissingSlots {
		slots = append(slots, Slot(strings.TrimSpace(name)))
	}

	return NewDecomposition(Fields{
		OriginalQuery:     w.OriginalQuery,
		Steps:             steps,
		SummaryLineTarget: w.SummaryLineTarget,
		DateFilter:        df,
		MissingSlots:      slots,
	})
}

func (d Decomposition) MarshalJSON() ([]byte, error) {
	return json.Marshal(decompositionWire{
		OriginalQuery:     d.originalQuery,
		Steps:             d.StepNames(),
		SummaryLineTarget: d.summaryLineTarget,
		DateFilter: dateFilterWire{
			Mode:     d.dateFilter.mode.String(),
			Relative: d.dateFilter.relative,
			Start:    d.dateFilter.start,
			End:      d.dateFilter.end,
		},
		MissingSlots: d.MissingSlotNames(),
	})
}

// UnmarshalJSON decodes and revalidates; unknown steps are rejected.
func (d *Decomposition) UnmarshalJSON(b []byte) error {
	w := newDecompositionWire()
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	built, err := w.build(true)
	if err != nil {
		return err
	}
	*d = built
	return nil
}
