package intent

import (
	"fmt"
	"strings"
)

const (
	ContextHeader        = "구조분해 결과:"
	originalInputHeader  = "원본 사용자 입력:"
	noMissingSlotsMarker = "없음"
)

// ContextText renders d as the block injected ahead of the user message.
func ContextText(d Decomposition) string {
	missing := noMissingSlotsMarker
	if names := d.MissingSlotNames(); len(names) > 0 {
		missing = strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s\n- original_query: %s\n- steps: %s\n- summary_line_target: %d\n- date_filter: %s\n- missing_slots: %s",
		ContextHeader,
		d.OriginalQuery(),
		strings.Join(d.StepNames(), ", "),
		d.SummaryLineTarget(),
		d.DateFilter().String(),
		missing,
	)
}

// IsContextInjected reports whether text already starts with the block header.
func IsContextInjected(text string) bool {
	return strings.HasPrefix(text, ContextHeader)
}

// Augment returns the trimmed message with the context block produced by
// decompose in front. Empty messages and messages that already carry the
// block come back trimmed with injected false; decompose is not called.
func Augment(userMessage string, decompose func(text string) Decomposition) (augmented string, injected bool) {
	text := strings.TrimSpace(userMessage)
	if text == "" || IsContextInjected(text) {
		return text, false
	}
	return ComposeAugmented(decompose(text), text), true
}

// ComposeAugmented joins the context block and the original message.
func ComposeAugmented(d Decomposition, userMessage string) string {
	return ContextText(d) + "\n\n" + originalInputHeader + "\n" + strings.TrimSpace(userMessage)
}
