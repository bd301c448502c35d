package dto

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCreateOrderRequest_Grouping(t *testing.T) {
	req := &CreateOrderRequest{
		EventID: 1,
		Tickets: []TicketRequest{
			{Email: "a@example.com", TableID: 10, BusGoID: int64Ptr(100)},
			{Email: "b@example.com", TableID: 10, BusGoID: int64Ptr(100), BusComeID: int64Ptr(200)},
			{Email: "c@example.com", TableID: 11},
		},
	}

	assert.Equal(t, 3, req.Quantity())
	assert.Equal(t, map[int64]int{10: 2, 11: 1}, req.TableCounts())
	assert.Equal(t, map[int64]int{100: 2}, req.BusCounts(domain.BusOutbound))
	assert.Equal(t, map[int64]int{200: 1}, req.BusCounts(domain.BusReturn))
	assert.True(t, req.Tickets[0].HasBus())
	assert.False(t, req.Tickets[2].HasBus())
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	ok, _ := (&CreateOrderRequest{EventID: 1}).Validate()
	assert.False(t, ok)

	ok, msg := (&CreateOrderRequest{EventID: 1, Tickets: []TicketRequest{{Email: "a@example.com"}}}).Validate()
	assert.False(t, ok)
	assert.Contains(t, msg, "table")

	ok, _ = (&CreateOrderRequest{EventID: 1, Tickets: []TicketRequest{{Email: "a@example.com", TableID: 2}}}).Validate()
	assert.True(t, ok)
}

func TestCreateEventRequest_Validate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	base := func() *CreateEventRequest {
		return &CreateEventRequest{
			Name:          "Gala",
			StartsAt:      now.Add(72 * time.Hour),
			TicketsNumber: 100,
			PriceBus:      decimal.NewFromInt(45),
			PriceNoBus:    decimal.NewFromInt(35),
			Tables:        []CreateTableRequest{{Name: "T1", Capacity: 10}},
		}
	}

	ok, _ := base().Validate(now)
	assert.True(t, ok)

	past := base()
	past.StartsAt = now.Add(-time.Hour)
	ok, _ = past.Validate(now)
	assert.False(t, ok)

	negative := base()
	negative.PriceNoBus = decimal.NewFromInt(-1)
	ok, _ = negative.Validate(now)
	assert.False(t, ok)

	busNoPrice := base()
	busNoPrice.PriceBus = decimal.Zero
	busNoPrice.Buses = []CreateBusRequest{{Direction: "ida", Capacity: 50, Location: "Station"}}
	ok, msg := busNoPrice.Validate(now)
	assert.False(t, ok)
	assert.Contains(t, msg, "bus price")
}

func TestEventKeys(t *testing.T) {
	assert.Equal(t, "7", (&OrderCreatedEvent{OrderID: 7}).Key())
	assert.Equal(t, "8", (&OrderConfirmedEvent{OrderID: 8}).Key())
	assert.Equal(t, "9", (&OrderReleasedEvent{OrderID: 9}).Key())
	assert.Equal(t, "10", (&TicketScannedEvent{TicketID: 10}).Key())
}

func TestSendResult_HasErrors(t *testing.T) {
	r := &SendResult{EmailsSent: 2}
	assert.False(t, r.HasErrors())
	r.Errors = append(r.Errors, "a@example.com: smtp timeout")
	assert.True(t, r.HasErrors())
}
