package mq

import (
	"encoding/json"
	"time"
)

// Routing keys on the events exchange.
const (
	RoutingKeyIntentDecomposed = "intent.decomposed"
	RoutingKeyMeetingBooked    = "meeting.booked"
)

// IntentDecomposedPayload is published after every decomposition served by
// the API, cache hits included. Decomposition holds the canonical JSON form.
type IntentDecomposedPayload struct {
	RequestID      string          `json:"request_id"`
	TraceID        string          `json:"trace_id,omitempty"`
	Message        string          `json:"message"`
	Source         string          `json:"source"`
	UnusableReason string          `json:"unusable_reason,omitempty"`
	Decomposition  json.RawMessage `json:"decomposition"`
	Cached         bool            `json:"cached,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
