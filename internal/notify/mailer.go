// Package notify delivers tickets to attendees
package notify

import (
	"context"
	"time"
)

// TicketEmail is everything an attendee needs to enter the event
type TicketEmail struct {
	To             string
	TicketID       int64
	OrderID        int64
	EventName      string
	EventStartsAt  time.Time
	Location       string
	TableName      string
	Restrictions   string
	ValidationCode string
	HasBus         bool
	DownloadURL    string
}

// TicketMailer sends one e-mail per ticket
type TicketMailer interface {
	SendTicketEmail(ctx context.Context, email TicketEmail) error
}
