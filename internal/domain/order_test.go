package domain

import (
	"errors"
	"testing"
	"time"
)

func TestOrderStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		expected bool
	}{
		{OrderStatusPending, false},
		{OrderStatusConfirmed, true},
		{OrderStatusRejected, true},
		{OrderStatusCancelled, true},
		{OrderStatusExpired, true},
		{OrderStatus("refunded"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestOrderStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     OrderStatus
		to       OrderStatus
		expected bool
	}{
		{"pending -> confirmed", OrderStatusPending, OrderStatusConfirmed, true},
		{"pending -> rejected", OrderStatusPending, OrderStatusRejected, true},
		{"pending -> cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"pending -> expired", OrderStatusPending, OrderStatusExpired, true},
		{"pending -> pending", OrderStatusPending, OrderStatusPending, false},

		{"confirmed -> cancelled", OrderStatusConfirmed, OrderStatusCancelled, false},
		{"confirmed -> rejected", OrderStatusConfirmed, OrderStatusRejected, false},
		{"confirmed -> pending", OrderStatusConfirmed, OrderStatusPending, false},
		{"rejected -> confirmed", OrderStatusRejected, OrderStatusConfirmed, false},
		{"cancelled -> pending", OrderStatusCancelled, OrderStatusPending, false},
		{"expired -> confirmed", OrderStatusExpired, OrderStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestOrderStatusCheckTransition(t *testing.T) {
	if err := OrderStatusPending.CheckTransition(OrderStatusCancelled); err != nil {
		t.Fatalf("expected pending -> cancelled to be allowed, got %v", err)
	}

	err := OrderStatusConfirmed.CheckTransition(OrderStatusCancelled)
	if err == nil {
		t.Fatal("expected confirmed -> cancelled to be refused")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if te.From != "confirmed" || te.To != "cancelled" {
		t.Errorf("unexpected transition error fields: %+v", te)
	}
}

func TestOrderStatusCapacity(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed} {
		if !s.HoldsCapacity() || s.ReleasesCapacity() {
			t.Errorf("%s should hold capacity", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusRejected, OrderStatusCancelled, OrderStatusExpired} {
		if s.HoldsCapacity() || !s.ReleasesCapacity() {
			t.Errorf("%s should release capacity", s)
		}
	}
}

func TestOrderIsExpirable(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		order    Order
		expected bool
	}{
		{
			name:     "pending older than ttl without proof",
			order:    Order{Status: OrderStatusPending, CreatedAt: now.Add(-49 * time.Hour)},
			expected: true,
		},
		{
			name:     "pending exactly at ttl",
			order:    Order{Status: OrderStatusPending, CreatedAt: now.Add(-PendingOrderTTL)},
			expected: true,
		},
		{
			name:     "pending younger than ttl",
			order:    Order{Status: OrderStatusPending, CreatedAt: now.Add(-47 * time.Hour)},
			expected: false,
		},
		{
			name:     "pending with proof",
			order:    Order{Status: OrderStatusPending, PaymentProofURL: "https://cdn/proof.png", CreatedAt: now.Add(-72 * time.Hour)},
			expected: false,
		},
		{
			name:     "confirmed",
			order:    Order{Status: OrderStatusConfirmed, CreatedAt: now.Add(-72 * time.Hour)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.IsExpirable(now, PendingOrderTTL); got != tt.expected {
				t.Errorf("IsExpirable() = %v, want %v", got, tt.expected)
			}
		})
	}
}
