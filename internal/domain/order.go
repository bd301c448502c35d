package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order and its tickets
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

const (
	// MaxTicketsPerBuyer caps pending+confirmed tickets per account per event
	MaxTicketsPerBuyer = 10
	// PendingOrderTTL is how long a pending order without payment proof may hold capacity
	PendingOrderTTL = 48 * time.Hour
)

// validTransitions defines allowed order state transitions.
// Key is current state, value is list of allowed next states.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusRejected, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusConfirmed: {},
	OrderStatusRejected:  {},
	OrderStatusCancelled: {},
	OrderStatusExpired:   {},
}

// IsValid returns true if the status is a known order status
func (s OrderStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// IsTerminal returns true if no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(validTransitions[s]) == 0
}

// HoldsCapacity returns true if tickets in this status count as occupied
func (s OrderStatus) HoldsCapacity() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// ReleasesCapacity returns true if entering this status gives capacity back to the event
func (s OrderStatus) ReleasesCapacity() bool {
	return s == OrderStatusRejected || s == OrderStatusCancelled || s == OrderStatusExpired
}

// CanTransitionTo returns true if transition to the target status is allowed
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CheckTransition returns a TransitionError when the move is not allowed
func (s OrderStatus) CheckTransition(target OrderStatus) error {
	if s.CanTransitionTo(target) {
		return nil
	}
	return &TransitionError{
		From:   string(s),
		To:     string(target),
		Reason: fmt.Sprintf("order is %s and cannot become %s", s, target),
	}
}

// ActiveStatuses are the statuses whose tickets occupy capacity
var ActiveStatuses = []OrderStatus{OrderStatusPending, OrderStatusConfirmed}

// Order is a buyer's purchase of one or more tickets for an event
type Order struct {
	ID                 int64           `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	EventID            int64           `json:"event_id"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Status             OrderStatus     `json:"status"`
	PaymentProofURL    string          `json:"payment_proof_url,omitempty"`
	PaymentSubmittedAt *time.Time      `json:"payment_submitted_at,omitempty"`
	TicketsSent        bool            `json:"tickets_sent"`
	TicketsSentAt      *time.Time      `json:"tickets_sent_at,omitempty"`
	TicketsSentBy      *uuid.UUID      `json:"tickets_sent_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Tickets []*Ticket `json:"tickets,omitempty"`
}

// HasPaymentProof returns true if the buyer uploaded a payment proof
func (o *Order) HasPaymentProof() bool {
	return o.PaymentProofURL != ""
}

// IsExpirable returns true if the order is pending, has no proof and is older than ttl
func (o *Order) IsExpirable(now time.Time, ttl time.Duration) bool {
	return o.Status == OrderStatusPending && !o.HasPaymentProof() && !o.CreatedAt.Add(ttl).After(now)
}

// StatusTransition records one applied order transition
type StatusTransition struct {
	ID        uuid.UUID   `json:"id"`
	OrderID   int64       `json:"order_id"`
	FromState OrderStatus `json:"from_state"`
	ToState   OrderStatus `json:"to_state"`
	Reason    string      `json:"reason,omitempty"`
	ActorID   *uuid.UUID  `json:"actor_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
