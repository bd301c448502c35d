package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/events"
	"github.com/upgrade-events/Upgrade-Events/internal/notify"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/internal/storage"
)

// harness wires every service over in-memory collaborators and a movable clock
type harness struct {
	t   *testing.T
	ctx context.Context
	now time.Time

	store     *repository.MemoryStore
	publisher *events.MemoryPublisher
	mailer    *notify.MockMailer
	objects   *storage.MemoryStorage
	sessions  *repository.MemoryStaffSessionStore

	ledger  LedgerService
	orders  OrderService
	tickets TicketService
	checkin CheckinService
	staff   StaffAccessService
	events  EventService

	owner domain.Actor
	admin domain.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		now:       time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC),
		store:     repository.NewMemoryStore(),
		publisher: events.NewMemoryPublisher(),
		mailer:    notify.NewMockMailer(),
		objects:   storage.NewMemoryStorage(),
		owner:     domain.Actor{UserID: uuid.New(), Email: "owner@example.com", Role: domain.RoleOwner},
		admin:     domain.Actor{UserID: uuid.New(), Email: "admin@example.com", Role: domain.RoleAdmin},
	}
	clock := Clock(func() time.Time { return h.now })
	h.sessions = repository.NewMemoryStaffSessionStore(clock)

	h.ledger = NewLedgerService(h.store, nil, nil)
	h.tickets = NewTicketService(&TicketServiceConfig{
		Store:     h.store,
		Mailer:    h.mailer,
		PublicURL: "https://tickets.example.com/",
	})
	h.orders = NewOrderService(&OrderServiceConfig{
		Store:     h.store,
		Tickets:   h.tickets,
		Storage:   h.objects,
		Publisher: h.publisher,
		Clock:     clock,
	})
	h.checkin = NewCheckinService(&CheckinServiceConfig{
		Store:     h.store,
		Publisher: h.publisher,
		Clock:     clock,
	})
	h.staff = NewStaffAccessService(&StaffAccessServiceConfig{
		Store:    h.store,
		Sessions: h.sessions,
		Clock:    clock,
	})
	h.events = NewEventService(&EventServiceConfig{
		Store:   h.store,
		Storage: h.objects,
		Clock:   clock,
	})
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) buyer() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Email: "buyer@example.com", Role: domain.RoleUser}
}

type fixture struct {
	event *domain.Event
	table *domain.Table
	busGo *domain.Bus
	back  *domain.Bus
}

// seed creates an approved event a week ahead with one table and a bus each way
func (h *harness) seed(tickets, tableCapacity, busCapacity int) *fixture {
	h.t.Helper()
	r := h.store.Repositories()

	event := &domain.Event{
		OwnerID:          h.owner.UserID,
		Name:             "Winter Gala",
		Location:         "Porto",
		StartsAt:         h.now.Add(7 * 24 * time.Hour),
		TicketsNumber:    tickets,
		AvailableTickets: tickets,
		Status:           domain.EventStatusApproved,
		PriceBus:         decimal.NewFromInt(45),
		PriceNoBus:       decimal.NewFromInt(35),
		CreatedAt:        h.now,
		UpdatedAt:        h.now,
	}
	require.NoError(h.t, r.Events.Create(h.ctx, event))

	f := &fixture{event: event}
	f.table = &domain.Table{EventID: event.ID, Name: "Mesa 1", Capacity: tableCapacity}
	require.NoError(h.t, r.Tables.Create(h.ctx, f.table))

	f.busGo = &domain.Bus{EventID: event.ID, Direction: domain.BusOutbound, Capacity: busCapacity, Location: "Aliados", DepartsAt: event.StartsAt.Add(-time.Hour)}
	require.NoError(h.t, r.Buses.Create(h.ctx, f.busGo))
	f.back = &domain.Bus{EventID: event.ID, Direction: domain.BusReturn, Capacity: busCapacity, Location: "Aliados", DepartsAt: event.StartsAt.Add(6 * time.Hour)}
	require.NoError(h.t, r.Buses.Create(h.ctx, f.back))
	return f
}

func (f *fixture) request(n int) *dto.CreateOrderRequest {
	req := &dto.CreateOrderRequest{EventID: f.event.ID}
	for i := 0; i < n; i++ {
		req.Tickets = append(req.Tickets, dto.TicketRequest{
			Email:   fmt.Sprintf("guest%d@example.com", i+1),
			TableID: f.table.ID,
		})
	}
	return req
}

func (h *harness) available(eventID int64) int {
	h.t.Helper()
	e, err := h.store.Repositories().Events.GetByID(h.ctx, eventID)
	require.NoError(h.t, err)
	return e.AvailableTickets
}

// order creates a pending order of n tickets for a fresh buyer
func (h *harness) order(f *fixture, n int) (*domain.Order, domain.Actor) {
	h.t.Helper()
	buyer := h.buyer()
	o, err := h.orders.CreateOrder(h.ctx, buyer, f.request(n))
	require.NoError(h.t, err)
	return o, buyer
}

// confirmedWithCodes confirms an order and issues its validation codes
func (h *harness) confirmedWithCodes(f *fixture, n int) []*domain.Ticket {
	h.t.Helper()
	o, _ := h.order(f, n)
	_, err := h.orders.ConfirmOrder(h.ctx, h.owner, o.ID)
	require.NoError(h.t, err)
	coded, err := h.tickets.IssueCodes(h.ctx, o.ID)
	require.NoError(h.t, err)
	require.Len(h.t, coded, n)
	return coded
}
