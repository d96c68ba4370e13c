package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DateFilterMode selects which DateFilter fields carry meaning.
type DateFilterMode int

const (
	ModeNone DateFilterMode = iota
	ModeRelative
	ModeAbsolute
)

var ErrInvalidDateFilter = errors.New("invalid date filter")

// Relative tokens accepted besides the "<N>_weeks_ago_to_last_week" range form.
const (
	RelativeToday     = "today"
	RelativeYesterday = "yesterday"
	RelativeThisWeek  = "this_week"
	RelativeLastWeek  = "last_week"
	RelativeRecent    = "recent"
	RelativeTomorrow  = "tomorrow"
)

var allowedRelative = map[string]struct{}{
	RelativeToday:     {},
	RelativeYesterday: {},
	RelativeThisWeek:  {},
	RelativeLastWeek:  {},
	RelativeRecent:    {},
	RelativeTomorrow:  {},
}

var (
	weeksAgoTokenPattern = regexp.MustCompile(`^([0-9]+)_weeks_ago_to_last_week$`)
	isoDayPattern        = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)
)

func (m DateFilterMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRelative:
		return "relative"
	case ModeAbsolute:
		return "absolute"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseDateFilterMode maps a wire token to a mode.
func ParseDateFilterMode(s string) (DateFilterMode, bool) {
	switch s {
	case "none":
		return ModeNone, true
	case "relative":
		return ModeRelative, true
	case "absolute":
		return ModeAbsolute, true
	}
	return ModeNone, false
}

func (m DateFilterMode) MarshalText() ([]byte, error) {
	if m < ModeNone || m > ModeAbsolute {
		return nil, fmt.Errorf("invalid date filter mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *DateFilterMode) UnmarshalText(b []byte) error {
	parsed, ok := ParseDateFilterMode(string(b))
	if !ok {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidDateFilter, string(b))
	}
	*m = parsed
	return nil
}

// IsAllowedRelative reports whether token is an accepted relative date token.
func IsAllowedRelative(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	if _, ok := allowedRelative[token]; ok {
		return true
	}
	m := weeksAgoTokenPattern.FindStringSubmatch(token)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	return err == nil && n > 0
}

// WeeksAgoToLastWeek renders the relative range token for n weeks.
func WeeksAgoToLastWeek(n int) string {
	return fmt.Sprintf("%d_weeks_ago_to_last_week", n)
}

// DateFilter is an immutable, canonical date restriction. Only the fields
// belonging to its mode are ever non-empty.
type DateFilter struct {
	mode     DateFilterMode
	relative string
	start    string
	end      string
}

// NoDateFilter is the canonical "no restriction" filter.
func NoDateFilter() DateFilter {
	return DateFilter{mode: ModeNone}
}

// NewDateFilter canonicalizes the proposed fields for mode and validates them.
// Fields foreign to the mode are blanked. Absolute dates must already be
// zero-padded YYYY-MM-DD; the calendar itself is not checked.
func NewDateFilter(mode DateFilterMode, relative, start, end string) (DateFilter, error) {
	switch mode {
	case ModeNone:
		return NoDateFilter(), nil
	case ModeRelative:
		relative = strings.TrimSpace(relative)
		if !IsAllowedRelative(relative) {
			return DateFilter{}, fmt.Errorf("%w: relative token %q", ErrInvalidDateFilter, relative)
		}
		return DateFilter{mode: ModeRelative, relative: relative}, nil
	case ModeAbsolute:
		if err := checkDay(start); err != nil {
			return DateFilter{}, err
		}
		if err := checkDay(end); err != nil {
			return DateFilter{}, err
		}
		return DateFilter{mode: ModeAbsolute, start: start, end: end}, nil
	}
	return DateFilter{}, fmt.Errorf("%w: unknown mode %d", ErrInvalidDateFilter, int(mode))
}

// checkDay accepts "" or YYYY-MM-DD.
func checkDay(day string) error {
	if day == "" || isoDayPattern.MatchString(day) {
		return nil
	}
	return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidDateFilter, day)
}

func (f DateFilter) Mode() DateFilterMode { return f.mode }
func (f DateFilter) Relative() string     { return f.relative }
func (f DateFilter) Start() string        { return f.start }
func (f DateFilter) End() string          { return f.end }

// String renders the filter the way it appears in the injected context block.
func (f DateFilter) String() string {
	return fmt.Sprintf("{'mode': '%s', 'relative': '%s', 'start': '%s', 'end': '%s'}",
		f.mode, f.relative, f.start, f.end)
}

type dateFilterWire struct {
	Mode     string `json:"mode"`
	Relative string `json:"relative"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

func (f DateFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateFilterWire{
		Mode:     f.mode.String(),
		Relative: f.relative,
		Start:    f.start,
		End:      f.end,
	})
}

func (f *DateFilter) UnmarshalJSON(b []byte) error {
	var w dateFilterWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	built, err := w.build()
	if err != nil {
		return err
	}
	*f = built
	return nil
}

func (w dateFilterWire) build() (DateFilter, error) {
	modeToken := w.Mode
	if modeToken == "" {
		modeToken = "none"
	}
	mode, ok := ParseDateFilterMode(modeToken)
	if !ok {
		return DateFilter{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidDateFilter, w.Mode)
	}
	return NewDateFilter(mode, w.Relative, w.Start, w.End)
}
