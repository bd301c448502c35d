package dto

import (
	"fmt"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

// TicketRequest is one seat inside a purchase request
type TicketRequest struct {
	Email        string `json:"email" binding:"required,email,max=255"`
	TableID      int64  `json:"table_id" binding:"required,min=1"`
	BusGoID      *int64 `json:"bus_go_id" binding:"omitempty,min=1"`
	BusComeID    *int64 `json:"bus_come_id" binding:"omitempty,min=1"`
	Restrictions string `json:"restrictions" binding:"max=500"`
}

// HasBus returns true if the ticket requests any shuttle bus
func (t *TicketRequest) HasBus() bool {
	return t.BusGoID != nil || t.BusComeID != nil
}

// CreateOrderRequest represents a buyer's purchase of N tickets for one event
type CreateOrderRequest struct {
	EventID int64           `json:"event_id" binding:"required,min=1"`
	Tickets []TicketRequest `json:"tickets" binding:"required,min=1,max=10,dive"`
}

// Quantity returns the number of tickets requested
func (r *CreateOrderRequest) Quantity() int {
	return len(r.Tickets)
}

// TableCounts groups the requested tickets by table
func (r *CreateOrderRequest) TableCounts() map[int64]int {
	counts := make(map[int64]int)
	for _, t := range r.Tickets {
		counts[t.TableID]++
	}
	return counts
}

// BusCounts groups the requested tickets by bus for one direction
func (r *CreateOrderRequest) BusCounts(direction domain.BusDirection) map[int64]int {
	counts := make(map[int64]int)
	for _, t := range r.Tickets {
		id := t.BusGoID
		if direction == domain.BusReturn {
			id = t.BusComeID
		}
		if id != nil {
			counts[*id]++
		}
	}
	return counts
}

// Validate checks what binding tags cannot express
func (r *CreateOrderRequest) Validate() (bool, string) {
	if len(r.Tickets) == 0 {
		return false, "At least one ticket is required"
	}
	for i, t := range r.Tickets {
		if t.TableID <= 0 {
			return false, fmt.Sprintf("Ticket %d: table is required", i+1)
		}
		if t.Email == "" {
			return false, fmt.Sprintf("Ticket %d: email is required", i+1)
		}
	}
	return true, ""
}

// SendResult reports a batch of ticket e-mails; failures never abort the batch
type SendResult struct {
	EmailsSent int      `json:"emails_sent"`
	Errors     []string `json:"errors"`
}

// HasErrors returns true if any e-mail failed
func (r *SendResult) HasErrors() bool {
	return len(r.Errors) > 0
}
