package model

import "time"

// Notification is an in-app message created from domain events.
type Notification struct {
	ID        int64
	UserID    string
	Type      string
	Content   string
	EventID   string
	IsRead    bool
	CreatedAt time.Time
}

// DecompositionRecord is the audit row written for every served decomposition.
type DecompositionRecord struct {
	RequestID      string
	TraceID        string
	Message        string
	Source         string
	UnusableReason string
	Decomposition  []byte
	CreatedAt      time.Time
}
