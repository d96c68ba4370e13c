package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moldubot/internal/intent"
)

func mustDecomposition(t *testing.T, f intent.Fields) intent.Decomposition {
	t.Helper()
	d, err := intent.NewDecomposition(f)
	require.NoError(t, err)
	return d
}

func casesByID(year int, ids ...int) []Case {
	all := EdgeCases(year)
	out := make([]Case, 0, len(ids))
	for _, id := range ids {
		for _, c := range all {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out
}

func TestEdgeCasesAreWellFormed(t *testing.T) {
	cases := EdgeCases(2026)
	require.Len(t, cases, 20)
	for i, c := range cases {
		assert.Equal(t, i+1, c.ID)
		assert.NotEmpty(t, c.Utterance)
		assert.NotEmpty(t, c.Steps, "case %d", c.ID)
		assert.GreaterOrEqual(t, c.SummaryLineTarget, intent.MinSummaryLineTarget)
		assert.LessOrEqual(t, c.SummaryLineTarget, intent.MaxSummaryLineTarget)
		for _, s := range c.Steps {
			_, ok := intent.ParseStep(s)
			assert.True(t, ok, "case %d step %s", c.ID, s)
		}
	}
	assert.Equal(t, "2026-03-01", cases[7].DateFilter.Start)
}

func TestRunRuleParser(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	p := intent.NewParser(nil, nil, intent.WithClock(clock))
	parse := func(_ context.Context, u string) intent.Decomposition { return p.RuleDecomposition(u) }

	report := Run(context.Background(), "offline-rule-only", parse, casesByID(2026, 1, 7, 8, 14, 17, 19))

	require.Len(t, report.Cases, 6)
	for _, c := range report.Cases {
		assert.True(t, c.Passed, "case %d (%s): %+v", c.ID, c.Pattern, c.Checks)
	}
	assert.Equal(t, "offline-rule-only", report.Summary.Mode)
	assert.Equal(t, 6, report.Summary.PassedAllFields)
	assert.Equal(t, 100.0, report.Summary.AccuracyAllFields)
	assert.LessOrEqual(t, report.Summary.MinElapsedMS, report.Summary.MaxElapsedMS)
}

func TestRunScoresEachField(t *testing.T) {
	cases := []Case{
		{ID: 1, Utterance: "a", Steps: []string{"read_current_mail"}, SummaryLineTarget: 5, DateFilter: none, MissingSlots: []string{}},
		{ID: 2, Utterance: "b", Steps: []string{"summarize_mail"}, SummaryLineTarget: 3, DateFilter: relative("today"), MissingSlots: []string{}},
	}
	read := mustDecomposition(t, intent.Fields{
		Steps:             []intent.Step{intent.StepReadCurrentMail},
		SummaryLineTarget: 5,
	})
	parse := func(context.Context, string) intent.Decomposition { return read }

	report := Run(context.Background(), "stub", parse, cases)
	s := report.Summary
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.PassedAllFields)
	assert.Equal(t, 50.0, s.AccuracyAllFields)
	assert.Equal(t, 50.0, s.AccuracySteps)
	assert.Equal(t, 50.0, s.AccuracySummaryLineTarget)
	assert.Equal(t, 50.0, s.AccuracyDateFilter)
	assert.Equal(t, 100.0, s.AccuracyMissingSlots)

	assert.True(t, report.Cases[0].Passed)
	assert.Equal(t, Checks{MissingSlots: true}, report.Cases[1].Checks)
}

func TestRunEmpty(t *testing.T) {
	report := Run(context.Background(), "stub", nil, nil)
	assert.Zero(t, report.Summary.Total)
	assert.Zero(t, report.Summary.AccuracyAllFields)
	assert.Empty(t, report.Cases)
}

func TestDateFilterMatches(t *testing.T) {
	abs, err := intent.NewDateFilter(intent.ModeAbsolute, "", "2026-03-01", "2026-03-07")
	require.NoError(t, err)

	assert.True(t, dateFilterMatches(abs, ExpectedDateFilter{Mode: "absolute"}), "empty fields are ignored")
	assert.True(t, dateFilterMatches(abs, ExpectedDateFilter{Mode: "absolute", Start: "2026-03-01", End: "2026-03-07"}))
	assert.False(t, dateFilterMatches(abs, ExpectedDateFilter{Mode: "absolute", End: "2026-03-08"}))
	assert.False(t, dateFilterMatches(abs, none))

	rel, err := intent.NewDateFilter(intent.ModeRelative, "recent", "", "")
	require.NoError(t, err)
	assert.True(t, dateFilterMatches(rel, relative("recent")))
	assert.False(t, dateFilterMatches(rel, relative("today")))
}

func TestGate(t *testing.T) {
	r := Report{Summary: Summary{AccuracyAllFields: 95, AvgElapsedMS: 3.2}}
	assert.True(t, r.Gate(95, 10))
	assert.False(t, r.Gate(96, 10))
	assert.False(t, r.Gate(90, 3))
}
