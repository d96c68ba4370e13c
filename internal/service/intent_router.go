package service

import "strings"

const (
	RouterVersion    = "bootstrap-v1"
	RouterConfidence = 0.7
)

// Top-level intents used by the client to pick a panel.
const (
	IntentRoomBooking = "room_booking"
	IntentHRApply     = "hr_apply"
	IntentFinance     = "finance"
	IntentPromise     = "promise"
	IntentChat        = "chat"
)

// RouteIntent is the keyword router; first matching rule wins.
func RouteIntent(message string) string {
	text := strings.ToLower(message)
	switch {
	case strings.Contains(text, "회의"):
		return IntentRoomBooking
	case strings.Contains(text, "근태"):
		return IntentHRApply
	case strings.Contains(text, "비용"), strings.Contains(text, "정산"):
		return IntentFinance
	case strings.Contains(text, "실행예산"), strings.Contains(text, "promise"):
		return IntentPromise
	default:
		return IntentChat
	}
}
