package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScanDirection is the action a staff scanner performs on a validation code
type ScanDirection string

const (
	ScanCheckIn  ScanDirection = "check_in"
	ScanCheckOut ScanDirection = "check_out"
	ScanBusInfo  ScanDirection = "bus_info"
)

// IsValid returns true if the direction is known
func (d ScanDirection) IsValid() bool {
	return d == ScanCheckIn || d == ScanCheckOut || d == ScanBusInfo
}

const (
	validationCodePrefix = "TKT"
	validationCodeLength = 8
	validationAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Ticket is one admission owned by an order
type Ticket struct {
	ID                   int64           `json:"id"`
	OrderID              int64           `json:"order_id"`
	UserID               uuid.UUID       `json:"user_id"`
	EventID              int64           `json:"event_id"`
	TableID              int64           `json:"table_id"`
	BusGoID              *int64          `json:"bus_go_id,omitempty"`
	BusComeID            *int64          `json:"bus_come_id,omitempty"`
	TicketEmail          string          `json:"ticket_email"`
	Restrictions         string          `json:"restrictions,omitempty"`
	Price                decimal.Decimal `json:"price"`
	Status               OrderStatus     `json:"status"`
	ValidationCode       *string         `json:"validation_code,omitempty"`
	AvailableForDownload bool            `json:"available_for_download"`
	SentAt               *time.Time      `json:"sent_at,omitempty"`
	EmailedAt            *time.Time      `json:"emailed_at,omitempty"`
	CheckedInAt          *time.Time      `json:"checked_in_at,omitempty"`
	CheckedOutAt         *time.Time      `json:"checked_out_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// HasBus returns true if the ticket includes any shuttle bus
func (t *Ticket) HasBus() bool {
	return t.BusGoID != nil || t.BusComeID != nil
}

// HasCode returns true if a validation code was issued
func (t *Ticket) HasCode() bool {
	return t.ValidationCode != nil && *t.ValidationCode != ""
}

// NeedsEmail returns true if the ticket is coded but its e-mail was never delivered
func (t *Ticket) NeedsEmail() bool {
	return t.HasCode() && t.EmailedAt == nil
}

// CanRenderPDF returns true if the ticket may be downloaded as a PDF
func (t *Ticket) CanRenderPDF() bool {
	return t.AvailableForDownload && t.HasCode()
}

// CheckInRefusal explains why a check-in cannot happen, or returns nil if it can
func (t *Ticket) CheckInRefusal() error {
	if t.Status != OrderStatusConfirmed {
		return &TransitionError{From: string(t.Status), To: "checked_in", Reason: fmt.Sprintf("ticket is %s, not confirmed", t.Status)}
	}
	if t.CheckedInAt != nil {
		return &TransitionError{From: "checked_in", To: "checked_in", Reason: "ticket already checked in"}
	}
	return nil
}

// CheckOutRefusal explains why a check-out cannot happen, or returns nil if it can
func (t *Ticket) CheckOutRefusal() error {
	if t.CheckedInAt == nil {
		return &TransitionError{From: "not_checked_in", To: "checked_out", Reason: "ticket hasn't checked in"}
	}
	if t.CheckedOutAt != nil {
		return &TransitionError{From: "checked_out", To: "checked_out", Reason: "ticket already checked out"}
	}
	return nil
}

// NewValidationCode generates an opaque code bound to the ticket id: TKT-{id}-{RANDOM}
func NewValidationCode(ticketID int64) (string, error) {
	suffix, err := RandomString(validationAlphabet, validationCodeLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", validationCodePrefix, ticketID, suffix), nil
}

// CheckStats summarizes door activity over confirmed tickets
type CheckStats struct {
	TotalTickets int `json:"total_tickets"`
	CheckedIn    int `json:"checked_in"`
	CheckedOut   int `json:"checked_out"`
	Pending      int `json:"pending"`
}

// ComputeCheckStats counts check-in activity over a set of confirmed tickets
func ComputeCheckStats(tickets []*Ticket) CheckStats {
	stats := CheckStats{TotalTickets: len(tickets)}
	for _, t := range tickets {
		if t.CheckedInAt != nil {
			stats.CheckedIn++
		} else {
			stats.Pending++
		}
		if t.CheckedOutAt != nil {
			stats.CheckedOut++
		}
	}
	return stats
}
