package mq

import "time"

// MeetingBookedPayload is written to the outbox in the booking transaction.
type MeetingBookedPayload struct {
	BookingID     int64     `json:"booking_id"`
	TraceID       string    `json:"trace_id,omitempty"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Building      string    `json:"building"`
	Floor         int       `json:"floor"`
	RoomName      string    `json:"room_name"`
	AttendeeCount int       `json:"attendee_count"`
	Subject       string    `json:"subject"`
	BookedBy      string    `json:"booked_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
