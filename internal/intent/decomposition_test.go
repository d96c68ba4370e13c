package intent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDateFilter(t *testing.T) {
	t.Run("foreign fields are blanked", func(t *testing.T) {
		df, err := NewDateFilter(ModeRelative, " today ", "2026-01-01", "2026-01-02")
		require.NoError(t, err)
		assert.Equal(t, RelativeToday, df.Relative())
		assert.Empty(t, df.Start())
		assert.Empty(t, df.End())

		none, err := NewDateFilter(ModeNone, "today", "2026-01-01", "")
		require.NoError(t, err)
		assert.Equal(t, NoDateFilter(), none)
	})

	t.Run("absolute keeps only its dates", func(t *testing.T) {
		df, err := NewDateFilter(ModeAbsolute, "recent", "2026-03-01", "2026-03-07")
		require.NoError(t, err)
		assert.Equal(t, "2026-03-01", df.Start())
		assert.Equal(t, "2026-03-07", df.End())
		assert.Empty(t, df.Relative())
	})

	t.Run("absolute dates must be zero padded", func(t *testing.T) {
		for _, bad := range [][2]string{
			{"2026-3-1", ""},
			{"2026-03-01", "2026-03-7"},
			{" 2026-03-01", ""},
			{"26-03-01", ""},
		} {
			_, err := NewDateFilter(ModeAbsolute, "", bad[0], bad[1])
			assert.ErrorIs(t, err, ErrInvalidDateFilter, "%q..%q", bad[0], bad[1])
		}
	})

	t.Run("calendar is not checked", func(t *testing.T) {
		df, err := NewDateFilter(ModeAbsolute, "", "2026-02-30", "")
		require.NoError(t, err)
		assert.Equal(t, "2026-02-30", df.Start())
	})

	t.Run("open ended absolute range", func(t *testing.T) {
		df, err := NewDateFilter(ModeAbsolute, "", "", "2026-12-31")
		require.NoError(t, err)
		assert.Empty(t, df.Start())
		assert.Equal(t, "2026-12-31", df.End())
	})

	t.Run("rejections", func(t *testing.T) {
		_, err := NewDateFilter(ModeRelative, "someday", "", "")
		assert.ErrorIs(t, err, ErrInvalidDateFilter)

		_, err = NewDateFilter(ModeRelative, "0_weeks_ago_to_last_week", "", "")
		assert.ErrorIs(t, err, ErrInvalidDateFilter)

		_, err = NewDateFilter(ModeAbsolute, "", "2026/03/01", "")
		assert.ErrorIs(t, err, ErrInvalidDateFilter)

		_, err = NewDateFilter(DateFilterMode(9), "", "", "")
		assert.ErrorIs(t, err, ErrInvalidDateFilter)
	})
}

func TestIsAllowedRelative(t *testing.T) {
	for _, tok := range []string{"today", "yesterday", "this_week", "last_week", "recent", "tomorrow", "2_weeks_ago_to_last_week", "12_weeks_ago_to_last_week"} {
		assert.True(t, IsAllowedRelative(tok), tok)
	}
	for _, tok := range []string{"", "next_week", "0_weeks_ago_to_last_week", "x_weeks_ago_to_last_week"} {
		assert.False(t, IsAllowedRelative(tok), tok)
	}
}

func TestDateFilterString(t *testing.T) {
	df, err := NewDateFilter(ModeRelative, RelativeToday, "", "")
	require.NoError(t, err)
	assert.Equal(t, "{'mode': 'relative', 'relative': 'today', 'start': '', 'end': ''}", df.String())
	assert.Equal(t, "{'mode': 'none', 'relative': '', 'start': '', 'end': ''}", NoDateFilter().String())
}

func TestDateFilterJSON(t *testing.T) {
	var df DateFilter
	require.NoError(t, json.Unmarshal([]byte(`{"relative":"today"}`), &df))
	assert.Equal(t, ModeNone, df.Mode())
	assert.Empty(t, df.Relative())

	require.NoError(t, json.Unmarshal([]byte(`{"mode":"absolute","start":"2026-01-02"}`), &df))
	assert.Equal(t, "2026-01-02", df.Start())

	err := json.Unmarshal([]byte(`{"mode":"absolute","start":"2026-1-2"}`), &df)
	assert.ErrorIs(t, err, ErrInvalidDateFilter)

	err = json.Unmarshal([]byte(`{"mode":"weird"}`), &df)
	assert.ErrorIs(t, err, ErrInvalidDateFilter)
}

func TestNewDecomposition(t *testing.T) {
	t.Run("canonicalizes", func(t *testing.T) {
		d, err := NewDecomposition(Fields{
			OriginalQuery:     "  회의 예약  ",
			Steps:             []Step{StepBookMeetingRoom, StepReadCurrentMail, StepBookMeetingRoom},
			SummaryLineTarget: 5,
			MissingSlots:      []Slot{SlotStartTime, SlotDate, SlotStartTime},
		})
		require.NoError(t, err)
		assert.Equal(t, "회의 예약", d.OriginalQuery())
		assert.Equal(t, []string{"book_meeting_room", "read_current_mail"}, d.StepNames())
		assert.Equal(t, []string{"date", "start_time"}, d.MissingSlotNames())
		assert.Equal(t, ModeNone, d.DateFilter().Mode())
	})

	t.Run("slots dropped without booking", func(t *testing.T) {
		d, err := NewDecomposition(Fields{
			Steps:             []Step{StepSummarizeMail},
			SummaryLineTarget: 3,
			MissingSlots:      []Slot{SlotDate},
		})
		require.NoError(t, err)
		assert.Empty(t, d.MissingSlots())
		assert.NotNil(t, d.MissingSlots())
	})

	t.Run("rejections", func(t *testing.T) {
		_, err := NewDecomposition(Fields{Steps: []Step{StepReadCurrentMail}, SummaryLineTarget: 0})
		assert.ErrorIs(t, err, ErrInvalidDecomposition)

		_, err = NewDecomposition(Fields{Steps: []Step{StepReadCurrentMail}, SummaryLineTarget: 21})
		assert.ErrorIs(t, err, ErrInvalidDecomposition)

		_, err = NewDecomposition(Fields{Steps: []Step{Step(99)}, SummaryLineTarget: 5})
		assert.ErrorIs(t, err, ErrInvalidDecomposition)

		_, err = NewDecomposition(Fields{
			Steps:             []Step{StepBookMeetingRoom},
			SummaryLineTarget: 5,
			MissingSlots:      []Slot{"room"},
		})
		assert.ErrorIs(t, err, ErrInvalidDecomposition)
	})
}

func TestDecompositionAccessorsReturnCopies(t *testing.T) {
	d, err := NewDecomposition(Fields{
		Steps:             []Step{StepBookMeetingRoom},
		SummaryLineTarget: 5,
		MissingSlots:      []Slot{SlotDate},
	})
	require.NoError(t, err)

	steps := d.Steps()
	steps[0] = StepReadCurrentMail
	slots := d.MissingSlots()
	slots[0] = SlotEndTime

	assert.True(t, d.HasStep(StepBookMeetingRoom))
	assert.False(t, d.HasStep(StepReadCurrentMail))
	assert.Equal(t, []Slot{SlotDate}, d.MissingSlots())
}

func TestDefaultDecomposition(t *testing.T) {
	d := DefaultDecomposition("  ")
	assert.Equal(t, "", d.OriginalQuery())
	assert.Equal(t, []Step{StepReadCurrentMail}, d.Steps())
	assert.Equal(t, DefaultSummaryLineTarget, d.SummaryLineTarget())
	assert.Equal(t, NoDateFilter(), d.DateFilter())
	assert.Empty(t, d.MissingSlots())
}

func TestDecompositionJSON(t *testing.T) {
	d, err := NewDecomposition(Fields{
		OriginalQuery:     "메일 요약",
		Steps:             []Step{StepReadCurrentMail, StepSummarizeMail},
		SummaryLineTarget: 3,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"original_query": "메일 요약",
		"steps": ["read_current_mail", "summarize_mail"],
		"summary_line_target": 3,
		"date_filter": {"mode": "none", "relative": "", "start": "", "end": ""},
		"missing_slots": []
	}`, string(raw))

	var back Decomposition
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back)
}

func TestDecompositionUnmarshal(t *testing.T) {
	t.Run("defaults for absent fields", func(t *testing.T) {
		var d Decomposition
		require.NoError(t, json.Unmarshal([]byte(`{"steps":["book_meeting_room"],"missing_slots":["start_time","date"]}`), &d))
		assert.Equal(t, DefaultSummaryLineTarget, d.SummaryLineTarget())
		assert.Equal(t, ModeNone, d.DateFilter().Mode())
		assert.Equal(t, []string{"date", "start_time"}, d.MissingSlotNames())
	})

	t.Run("unknown step rejected", func(t *testing.T) {
		var d Decomposition
		err := json.Unmarshal([]byte(`{"steps":["send_fax"]}`), &d)
		assert.True(t, errors.Is(err, ErrInvalidDecomposition))
	})

	t.Run("bad date filter rejected", func(t *testing.T) {
		var d Decomposition
		err := json.Unmarshal([]byte(`{"steps":[],"date_filter":{"mode":"relative","relative":"someday"}}`), &d)
		assert.ErrorIs(t, err, ErrInvalidDecomposition)
	})

	t.Run("out of range target rejected", func(t *testing.T) {
		var d Decomposition
		err := json.Unmarshal([]byte(`{"steps":[],"summary_line_target":0}`), &d)
		assert.ErrorIs(t, err, ErrInvalidDecomposition)
	})
}
