package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

// CreateTableRequest describes one table of a new event
type CreateTableRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Capacity int    `json:"capacity" binding:"required,min=1,max=1000"`
}

// CreateBusRequest describes one shuttle bus of a new event
type CreateBusRequest struct {
	Direction string    `json:"direction" binding:"required,oneof=ida volta"`
	Capacity  int       `json:"capacity" binding:"required,min=1,max=500"`
	Location  string    `json:"location" binding:"required,max=255"`
	DepartsAt time.Time `json:"departs_at" binding:"required"`
}

// CreateEventRequest represents the request to create a new event
type CreateEventRequest struct {
	Name          string               `json:"name" binding:"required,min=1,max=200"`
	Description   string               `json:"description" binding:"max=5000"`
	Location      string               `json:"location" binding:"required,max=255"`
	StartsAt      time.Time            `json:"starts_at" binding:"required"`
	TicketsNumber int                  `json:"tickets_number" binding:"required,min=1,max=100000"`
	PriceBus      decimal.Decimal      `json:"price_bus"`
	PriceNoBus    decimal.Decimal      `json:"price_no_bus"`
	PaymentIBAN   string               `json:"payment_iban" binding:"max=64"`
	PaymentMBWay  string               `json:"payment_mbway" binding:"max=32"`
	PaymentName   string               `json:"payment_name" binding:"max=255"`
	Tables        []CreateTableRequest `json:"tables" binding:"required,min=1,dive"`
	Buses         []CreateBusRequest   `json:"buses" binding:"omitempty,dive"`
}

// Validate validates what the binding tags cannot express
func (r *CreateEventRequest) Validate(now time.Time) (bool, string) {
	if !r.StartsAt.After(now) {
		return false, "Event date must be in the future"
	}
	if r.PriceBus.IsNegative() || r.PriceNoBus.IsNegative() {
		return false, "Prices cannot be negative"
	}
	if len(r.Buses) > 0 && !r.PriceBus.IsPositive() {
		return false, "Events with buses need a bus price"
	}
	return true, ""
}

// ListEventsQuery represents query parameters for the public catalogue
type ListEventsQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// SetDefaults sets default values for query parameters
func (q *ListEventsQuery) SetDefaults() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
}

// EventDetail is an event with the live availability of its tables and buses
type EventDetail struct {
	*domain.Event
	Tables []domain.TableAvailability `json:"tables"`
	Buses  []domain.BusAvailability   `json:"buses"`
}

// AvailabilityQuery is the quantity a buyer wants to reserve
type AvailabilityQuery struct {
	Quantity int `form:"quantity" binding:"omitempty,min=1,max=100"`
}
