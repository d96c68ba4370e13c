package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	summaryLinePattern   = regexp.MustCompile(`(\d{1,2})\s*줄`)
	isoRangePattern      = regexp.MustCompile(`(?s)(\d{4}-\d{1,2}-\d{1,2}).*?(\d{4}-\d{1,2}-\d{1,2})`)
	isoDatePattern       = regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`)
	koreanRangePattern   = regexp.MustCompile(`(?s)(\d{1,2})\s*월\s*(\d{1,2})\s*일.*?(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
	koreanDatePattern    = regexp.MustCompile(`\d{1,2}\s*월\s*\d{1,2}\s*일`)
	weeksAgoRangePattern = regexp.MustCompile(`([1-9]\d?)\s*주\s*전\s*부터\s*지난\s*주\s*까지`)
	startTimePattern     = regexp.MustCompile(`(오전|오후)?\s*\d{1,2}\s*시`)
	attendeePattern      = regexp.MustCompile(`\d+\s*명`)
)

// stepTriggers is evaluated top to bottom; output order follows this table.
var stepTriggers = []struct {
	step    Step
	matches func(text string) bool
}{
	{StepReadCurrentMail, anyOf("메일")},
	{StepSummarizeMail, anyOf("요약", "정리", "보고서")},
	{StepExtractKeyFacts, anyOf("중요", "핵심", "할일", "액션아이템")},
	{StepExtractRecipients, anyOf("수신자", "받는")},
	{StepSearchMeetingSchedule, func(text string) bool {
		return strings.Contains(text, "회의 일정") ||
			(strings.Contains(text, "회의") && strings.Contains(text, "일정"))
	}},
	{StepBookMeetingRoom, anyOf("예약", "잡아")},
}

// relativeKeywords is checked in order; the first substring hit wins.
var relativeKeywords = []struct {
	needle string
	token  string
}{
	{"오늘", RelativeToday},
	{"어제", RelativeYesterday},
	{"이번 주", RelativeThisWeek},
	{"이번주", RelativeThisWeek},
	{"지난주", RelativeLastWeek},
	{"최근", RelativeRecent},
	{"내일", RelativeTomorrow},
}

func anyOf(needles ...string) func(string) bool {
	return func(text string) bool {
		for _, n := range needles {
			if strings.Contains(text, n) {
				return true
			}
		}
		return false
	}
}

func isQuoteRune(r rune) bool {
	switch r {
	case '"', '\'', '“', '”', '‘', '’':
		return true
	}
	return false
}

// Sanitize strips whitespace and straight or curly quotes from both ends
// until neither end starts with one. Inner characters are untouched.
func Sanitize(userMessage string) string {
	return strings.TrimFunc(userMessage, func(r rune) bool {
		return unicode.IsSpace(r) || isQuoteRune(r)
	})
}

// InferSteps maps keyword triggers to candidate steps. Every trigger is
// tested independently, so one utterance may yield several steps.
func InferSteps(text string) []Step {
	text = strings.TrimSpace(text)
	steps := make([]Step, 0, len(stepTriggers))
	for _, t := range stepTriggers {
		if t.matches(text) {
			steps = append(steps, t.step)
		}
	}
	return dedupeSteps(steps)
}

// ExtractSummaryLineTarget reads "<N>줄". Zero and missing values fall back
// to the default 5; values above 20 are clamped to 20.
func ExtractSummaryLineTarget(text string) int {
	m := summaryLinePattern.FindStringSubmatch(foldDigits(text))
	if m == nil {
		return DefaultSummaryLineTarget
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < MinSummaryLineTarget {
		return DefaultSummaryLineTarget
	}
	if n > MaxSummaryLineTarget {
		return MaxSummaryLineTarget
	}
	return n
}

// DateFilterFields is the raw rule-engine view of a date filter.
type DateFilterFields struct {
	Mode     DateFilterMode
	Relative string
	Start    string
	End      string
}

// ExtractDateFilterFields tries, in order and stopping at the first hit:
// an ISO date range, a Korean month/day range in now's year, an
// "<N>주 전부터 지난 주까지" range, then the single relative keyword table.
// ISO dates written as YYYY-M-D come back zero padded.
func ExtractDateFilterFields(text string, now time.Time) DateFilterFields {
	text = foldDigits(strings.TrimSpace(text))

	if m := isoRangePattern.FindStringSubmatch(text); m != nil {
		return DateFilterFields{Mode: ModeAbsolute, Start: padISODay(m[1]), End: padISODay(m[2])}
	}

	if m := koreanRangePattern.FindStringSubmatch(text); m != nil {
		year := now.Year()
		return DateFilterFields{
			Mode:  ModeAbsolute,
			Start: formatYMD(year, atoi(m[1]), atoi(m[2])),
			End:   formatYMD(year, atoi(m[3]), atoi(m[4])),
		}
	}

	if m := weeksAgoRangePattern.FindStringSubmatch(text); m != nil {
		return DateFilterFields{Mode: ModeRelative, Relative: WeeksAgoToLastWeek(atoi(m[1]))}
	}

	for _, kw := range relativeKeywords {
		if strings.Contains(text, kw.needle) {
			return DateFilterFields{Mode: ModeRelative, Relative: kw.token}
		}
	}

	return DateFilterFields{Mode: ModeNone}
}

// BuildDateFilter runs ExtractDateFilterFields through the DateFilter constructor.
func BuildDateFilter(text string, now time.Time) (DateFilter, error) {
	f := ExtractDateFilterFields(text, now)
	return NewDateFilter(f.Mode, f.Relative, f.Start, f.End)
}

// padISODay turns a matched YYYY-M-D into YYYY-MM-DD.
func padISODay(day string) string {
	parts := strings.SplitN(day, "-", 3)
	if len(parts) != 3 {
		return day
	}
	return fmt.Sprintf("%s-%02d-%02d", parts[0], atoi(parts[1]), atoi(parts[2]))
}

// foldDigits rewrites every Unicode decimal digit (full-width ３, Arabic-Indic
// and so on) as its ASCII digit; the patterns above only match 0-9.
func foldDigits(text string) string {
	if !strings.ContainsFunc(text, isNonASCIIDigit) {
		return text
	}
	return strings.Map(func(r rune) rune {
		if !isNonASCIIDigit(r) {
			return r
		}
		// Nd characters come in contiguous runs of ten starting at zero
		start := r
		for unicode.IsDigit(start - 1) {
			start--
		}
		return '0' + (r-start)%10
	}, text)
}

func isNonASCIIDigit(r rune) bool {
	return r > unicode.MaxASCII && unicode.IsDigit(r)
}

// BuildMissingSlots lists booking slots the text does not resolve, sorted
// alphabetically. Empty unless steps contains StepBookMeetingRoom. end_time
// is never resolved by inspection.
func BuildMissingSlots(steps []Step, text string) []Slot {
	if !containsStep(steps, StepBookMeetingRoom) {
		return []Slot{}
	}
	text = foldDigits(strings.TrimSpace(text))

	missing := map[Slot]bool{
		SlotDate:          true,
		SlotStartTime:     true,
		SlotEndTime:       true,
		SlotAttendeeCount: true,
	}
	if anyOf("오늘", "어제", "내일", "주")(text) ||
		isoDatePattern.MatchString(text) ||
		koreanDatePattern.MatchString(text) {
		delete(missing, SlotDate)
	}
	if startTimePattern.MatchString(text) {
		delete(missing, SlotStartTime)
	}
	if attendeePattern.MatchString(text) {
		delete(missing, SlotAttendeeCount)
	}

	out := make([]Slot, 0, len(missing))
	for _, s := range []Slot{SlotAttendeeCount, SlotDate, SlotEndTime, SlotStartTime} {
		if missing[s] {
			out = append(out, s)
		}
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func formatYMD(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
