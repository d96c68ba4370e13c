package intent

import (
	"fmt"
)

// Step is one atomic action the execution layer knows how to run.
// Wire form is the lowercase snake_case token returned by String.
type Step int

const (
	StepReadCurrentMail Step = iota + 1
	StepSummarizeMail
	StepExtractKeyFacts
	StepExtractRecipients
	StepSearchMeetingSchedule
	StepBookMeetingRoom
)

var stepNames = map[Step]string{
	StepReadCurrentMail:       "read_current_mail",
	StepSummarizeMail:         "summarize_mail",
	StepExtractKeyFacts:       "extract_key_facts",
	StepExtractRecipients:     "extract_recipients",
	StepSearchMeetingSchedule: "search_meeting_schedule",
	StepBookMeetingRoom:       "book_meeting_room",
}

var stepsByName = func() map[string]Step {
	m := make(map[string]Step, len(stepNames))
	for s, name := range stepNames {
		m[name] = s
	}
	return m
}()

// AllSteps returns the step vocabulary in canonical order.
func AllSteps() []Step {
	return []Step{
		StepReadCurrentMail,
		StepSummarizeMail,
		StepExtractKeyFacts,
		StepExtractRecipients,
		StepSearchMeetingSchedule,
		StepBookMeetingRoom,
	}
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s belongs to the closed vocabulary.
func (s Step) Valid() bool {
	_, ok := stepNames[s]
	return ok
}

// ParseStep maps a wire token to a Step.
func ParseStep(name string) (Step, bool) {
	s, ok := stepsByName[name]
	return s, ok
}

func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid step %d", int(s))
	}
	return []byte(stepNames[s]), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	parsed, ok := ParseStep(string(b))
	if !ok {
		return fmt.Errorf("unknown step %q", string(b))
	}
	*s = parsed
	return nil
}

// dedupeSteps keeps the first occurrence of every step.
func dedupeSteps(steps []Step) []Step {
	seen := make(map[Step]struct{}, len(steps))
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func containsStep(steps []Step, target Step) bool {
	for _, s := range steps {
		if s == target {
			return true
		}
	}
	return false
}

// Slot is a booking parameter that may have to be asked back to the user.
type Slot string

const (
	SlotAttendeeCount Slot = "attendee_count"
	SlotDate          Slot = "date"
	SlotEndTime       Slot = "end_time"
	SlotStartTime     Slot = "start_time"
)

// RequiredBookingSlots lists every slot a booking needs.
func RequiredBookingSlots() []Slot {
	return []Slot{SlotDate, SlotStartTime, SlotEndTime, SlotAttendeeCount}
}

func (s Slot) Valid() bool {
	switch s {
	case SlotDate, SlotStartTime, SlotEndTime, SlotAttendeeCount:
		return true
	}
	return false
}

func (s Slot) String() string { return string(s) }
