package model

// Mail is the current mailbox message the assistant works on.
type Mail struct {
	MessageID    string
	Subject      string
	FromAddress  string
	ReceivedDate string
	BodyText     string
}
