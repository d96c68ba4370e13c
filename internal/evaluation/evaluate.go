package evaluation

import (
	"context"
	"math"
	"slices"
	"time"

	"moldubot/internal/intent"
)

// ParseFunc is the parser under test.
type ParseFunc func(ctx context.Context, utterance string) intent.Decomposition

type Checks struct {
	Steps             bool `json:"steps"`
	SummaryLineTarget bool `json:"summary_line_target"`
	DateFilter        bool `json:"date_filter"`
	MissingSlots      bool `json:"missing_slots"`
}

func (c Checks) All() bool {
	return c.Steps && c.SummaryLineTarget && c.DateFilter && c.MissingSlots
}

type CaseResult struct {
	ID        int                  `json:"case_id"`
	Pattern   string               `json:"pattern"`
	Utterance string               `json:"utterance"`
	ElapsedMS float64              `json:"elapsed_ms"`
	Passed    bool                 `json:"passed"`
	Checks    Checks               `json:"checks"`
	Actual    intent.Decomposition `json:"actual"`
	Expected  Case                 `json:"expected"`
}

type Summary struct {
	Mode                      string  `json:"mode"`
	Total                     int     `json:"total"`
	PassedAllFields           int     `json:"passed_all_fields"`
	AccuracyAllFields         float64 `json:"accuracy_all_fields"`
	AccuracySteps             float64 `json:"accuracy_steps"`
	AccuracySummaryLineTarget float64 `json:"accuracy_summary_line_target"`
	AccuracyDateFilter        float64 `json:"accuracy_date_filter"`
	AccuracyMissingSlots      float64 `json:"accuracy_missing_slots"`
	AvgElapsedMS              float64 `json:"avg_elapsed_ms"`
	MaxElapsedMS              float64 `json:"max_elapsed_ms"`
	MinElapsedMS              float64 `json:"min_elapsed_ms"`
}

type Report struct {
	Summary Summary      `json:"summary"`
	Cases   []CaseResult `json:"cases"`
}

// Gate reports whether the run clears both thresholds.
func (r Report) Gate(minAccuracy, maxAvgLatencyMS float64) bool {
	return r.Summary.AccuracyAllFields >= minAccuracy && r.Summary.AvgElapsedMS <= maxAvgLatencyMS
}

// Run parses every case in order and scores the four structured fields.
func Run(ctx context.Context, mode string, parse ParseFunc, cases []Case) Report {
	report := Report{Summary: Summary{Mode: mode, Total: len(cases)}}
	var steps, summary, dates, missing int
	var elapsedTotal float64

	for _, c := range cases {
		start := time.Now()
		d := parse(ctx, c.Utterance)
		elapsed := round1(float64(time.Since(start).Microseconds()) / 1000)

		checks := Check(d, c)
		res := CaseResult{
			ID:        c.ID,
			Pattern:   c.Pattern,
			Utterance: c.Utterance,
			ElapsedMS: elapsed,
			Passed:    checks.All(),
			Checks:    checks,
			Actual:    d,
			Expected:  c,
		}
		report.Cases = append(report.Cases, res)

		steps += b2i(checks.Steps)
		summary += b2i(checks.SummaryLineTarget)
		dates += b2i(checks.DateFilter)
		missing += b2i(checks.MissingSlots)
		report.Summary.PassedAllFields += b2i(res.Passed)

		elapsedTotal += elapsed
		if len(report.Cases) == 1 || elapsed > report.Summary.MaxElapsedMS {
			report.Summary.MaxElapsedMS = elapsed
		}
		if len(report.Cases) == 1 || elapsed < report.Summary.MinElapsedMS {
			report.Summary.MinElapsedMS = elapsed
		}
	}

	if n := len(cases); n > 0 {
		s := &report.Summary
		s.AccuracyAllFields = percent(s.PassedAllFields, n)
		s.AccuracySteps = percent(steps, n)
		s.AccuracySummaryLineTarget = percent(summary, n)
		s.AccuracyDateFilter = percent(dates, n)
		s.AccuracyMissingSlots = percent(missing, n)
		s.AvgElapsedMS = round1(elapsedTotal / float64(n))
	}
	return report
}

// Check compares a decomposition against the expectations of one case.
func Check(d intent.Decomposition, c Case) Checks {
	return Checks{
		Steps:             slices.Equal(d.StepNames(), c.Steps),
		SummaryLineTarget: d.SummaryLineTarget() == c.SummaryLineTarget,
		DateFilter:        dateFilterMatches(d.DateFilter(), c.DateFilter),
		MissingSlots:      slices.Equal(d.MissingSlotNames(), c.MissingSlots),
	}
}

func dateFilterMatches(actual intent.DateFilter, want ExpectedDateFilter) bool {
	if actual.Mode().String() != want.Mode {
		return false
	}
	if want.Relative != "" && actual.Relative() != want.Relative {
		return false
	}
	if want.Start != "" && actual.Start() != want.Start {
		return false
	}
	if want.End != "" && actual.End() != want.End {
		return false
	}
	return true
}

func percent(n, total int) float64 {
	return round1(float64(n) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
