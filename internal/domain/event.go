package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventStatus represents the moderation status of an event
type EventStatus string

const (
	EventStatusPending  EventStatus = "pending"
	EventStatusApproved EventStatus = "approved"
	EventStatusRejected EventStatus = "rejected"
)

// Event represents an event with a finite ticket capacity
type Event struct {
	ID               int64           `json:"id"`
	OwnerID          uuid.UUID       `json:"owner_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Location         string          `json:"location"`
	StartsAt         time.Time       `json:"starts_at"`
	ImageURL         string          `json:"image_url,omitempty"`
	TicketsNumber    int             `json:"tickets_number"`
	AvailableTickets int             `json:"available_tickets"`
	Status           EventStatus     `json:"status"`
	PriceBus         decimal.Decimal `json:"price_bus"`
	PriceNoBus       decimal.Decimal `json:"price_no_bus"`
	PaymentIBAN      string          `json:"payment_iban,omitempty"`
	PaymentMBWay     string          `json:"payment_mbway,omitempty"`
	PaymentName      string          `json:"payment_name,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Validate validates the event's capacity and pricing fields
func (e *Event) Validate() error {
	if e.Name == "" {
		return errors.New("event name is required")
	}
	if e.TicketsNumber <= 0 {
		return errors.New("tickets_number must be positive")
	}
	if e.AvailableTickets < 0 || e.AvailableTickets > e.TicketsNumber {
		return errors.New("available_tickets must be between 0 and tickets_number")
	}
	if e.PriceBus.IsNegative() || e.PriceNoBus.IsNegative() {
		return errors.New("prices cannot be negative")
	}
	return nil
}

// IsOnSale returns true if tickets can currently be bought
func (e *Event) IsOnSale(now time.Time) bool {
	return e.Status == EventStatusApproved && e.StartsAt.After(now) && e.AvailableTickets > 0
}

// CommittedTickets returns the number of tickets held by pending or confirmed orders
func (e *Event) CommittedTickets() int {
	return e.TicketsNumber - e.AvailableTickets
}

// TicketPrice returns the price of one ticket, with the bus tier applying when any bus is chosen
func (e *Event) TicketPrice(withBus bool) decimal.Decimal {
	if withBus && e.PriceBus.IsPositive() {
		return e.PriceBus
	}
	return e.PriceNoBus
}

// SalesStats summarizes ticket statuses for an event
type SalesStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
	Rejected  int `json:"rejected"`
	Expired   int `json:"expired"`
}
