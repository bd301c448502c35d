package dto

import (
	"strconv"
	"time"
)

// Topic names for ticketing events
const (
	TopicOrderCreated     = "order.created"
	TopicOrderConfirmed   = "order.confirmed"
	TopicOrderReleased    = "order.released"
	TopicTicketCheckedIn  = "ticket.checked_in"
	TopicTicketCheckedOut = "ticket.checked_out"
)

// OrderCreatedEvent is published after a pending order has reserved capacity
type OrderCreatedEvent struct {
	EventType   string    `json:"event_type"`
	OrderID     int64     `json:"order_id"`
	EventID     int64     `json:"event_id"`
	UserID      string    `json:"user_id"`
	Quantity    int       `json:"quantity"`
	TotalAmount string    `json:"total_amount"`
	Remaining   int       `json:"remaining"`
	Timestamp   time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *OrderCreatedEvent) Key() string {
	return strconv.FormatInt(e.OrderID, 10)
}

// OrderConfirmedEvent is published when an organizer confirms a payment
type OrderConfirmedEvent struct {
	EventType   string    `json:"event_type"`
	OrderID     int64     `json:"order_id"`
	EventID     int64     `json:"event_id"`
	UserID      string    `json:"user_id"`
	ConfirmedBy string    `json:"confirmed_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *OrderConfirmedEvent) Key() string {
	return strconv.FormatInt(e.OrderID, 10)
}

// OrderReleasedEvent is published when a rejected, cancelled or expired order gives capacity back
type OrderReleasedEvent struct {
	EventType string    `json:"event_type"`
	OrderID   int64     `json:"order_id"`
	EventID   int64     `json:"event_id"`
	Status    string    `json:"status"`
	Released  int       `json:"released"`
	Remaining int       `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *OrderReleasedEvent) Key() string {
	return strconv.FormatInt(e.OrderID, 10)
}

// TicketScannedEvent is published for every successful check-in or check-out
type TicketScannedEvent struct {
	EventType    string    `json:"event_type"`
	TicketID     int64     `json:"ticket_id"`
	EventID      int64     `json:"event_id"`
	AccessCodeID int64     `json:"access_code_id"`
	Direction    string    `json:"direction"`
	Timestamp    time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *TicketScannedEvent) Key() string {
	return strconv.FormatInt(e.TicketID, 10)
}
