package service

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/storage"
)

func TestOrderService_CreateOrder(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)

	req := f.request(2)
	req.Tickets[0].BusGoID = &f.busGo.ID
	req.Tickets[0].BusComeID = &f.back.ID

	order, err := h.orders.CreateOrder(h.ctx, h.buyer(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Len(t, order.Tickets, 2)
	assert.True(t, order.TotalAmount.Equal(f.event.PriceBus.Add(f.event.PriceNoBus)), "bus tier applies per ticket")
	assert.Equal(t, 8, h.available(f.event.ID))

	for _, ticket := range order.Tickets {
		assert.Equal(t, domain.OrderStatusPending, ticket.Status)
		assert.False(t, ticket.HasCode())
	}

	published := h.publisher.ByTopic(dto.TopicOrderCreated)
	require.Len(t, published, 1)
	assert.Equal(t, 8, published[0].Msg.(*dto.OrderCreatedEvent).Remaining)
}

func TestOrderService_ConcurrentLastTicket(t *testing.T) {
	h := newHarness(t)
	f := h.seed(1, 50, 10)

	const buyers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refusals  []*domain.CapacityError
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orders.CreateOrder(h.ctx, h.buyer(), f.request(1))

			mu.Lock()
			defer mu.Unlock()
			var capErr *domain.CapacityError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &capErr):
				refusals = append(refusals, capErr)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, refusals, buyers-1)
	for _, r := range refusals {
		assert.Equal(t, domain.ResourceEvent, r.Kind)
		assert.Equal(t, 0, r.SpotsLeft)
	}
	assert.Equal(t, 0, h.available(f.event.ID))
}

func TestOrderService_PerBuyerLimit(t *testing.T) {
	h := newHarness(t)
	f := h.seed(100, 100, 10)
	buyer := h.buyer()

	_, err := h.orders.CreateOrder(h.ctx, buyer, f.request(9))
	require.NoError(t, err)

	_, err = h.orders.CreateOrder(h.ctx, buyer, f.request(2))
	var limitErr *domain.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 9, limitErr.Existing)
	assert.Equal(t, 2, limitErr.Requested)
	assert.Equal(t, 10, limitErr.Max)
	assert.Equal(t, 91, h.available(f.event.ID), "the refused request reserves nothing")

	_, err = h.orders.CreateOrder(h.ctx, buyer, f.request(1))
	assert.NoError(t, err, "exactly reaching the cap is allowed")
}

func TestOrderService_CreateOrderRefusals(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *harness, f *fixture, req *dto.CreateOrderRequest)
		wantErr error
	}{
		{
			name: "event capacity",
			mutate: func(h *harness, f *fixture, req *dto.CreateOrderRequest) {
				_, _, err := h.store.Repositories().Events.DecrementAvailable(h.ctx, f.event.ID, 4)
				require.NoError(h.t, err)
			},
			wantErr: domain.ErrCapacityExceeded,
		},
		{
			name: "table capacity",
			mutate: func(h *harness, f *fixture, req *dto.CreateOrderRequest) {
				other := &domain.Table{EventID: f.event.ID, Name: "Mesa 2", Capacity: 1}
				require.NoError(h.t, h.store.Repositories().Tables.Create(h.ctx, other))
				req.Tickets[0].TableID = other.ID
				req.Tickets[1].TableID = other.ID
			},
			wantErr: domain.ErrCapacityExceeded,
		},
		{
			name: "bus in the wrong direction",
			mutate: func(h *harness, f *fixture, req *dto.CreateOrderRequest) {
				req.Tickets[0].BusGoID = &f.back.ID
			},
			wantErr: domain.ErrBusNotFound,
		},
		{
			name: "unknown table",
			mutate: func(h *harness, f *fixture, req *dto.CreateOrderRequest) {
				req.Tickets[1].TableID = 999
			},
			wantErr: domain.ErrTableNotFound,
		},
		{
			name: "event not approved",
			mutate: func(h *harness, f *fixture, req *dto.CreateOrderRequest) {
				_, err := h.store.Repositories().Events.UpdateStatus(h.ctx, f.event.ID, domain.EventStatusApproved, domain.EventStatusRejected)
				require.NoError(h.t, err)
			},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name: "event already started",
			mutate: func(h *harness, f *fixture, req *dto.CreateOrderRequest) {
				h.advance(8 * 24 * time.Hour)
			},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name: "unknown event",
			mutate: func(h *harness, f *fixture, req *dto.CreateOrderRequest) {
				req.EventID = 999
			},
			wantErr: domain.ErrEventNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			f := h.seed(5, 10, 10)
			req := f.request(2)
			tt.mutate(h, f, req)
			before := h.available(f.event.ID)

			_, err := h.orders.CreateOrder(h.ctx, h.buyer(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, h.available(f.event.ID), "a refused order leaves the counter untouched")
		})
	}
}

func TestOrderService_RejectReleasesCapacity(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	order, _ := h.order(f, 2)
	require.Equal(t, 8, h.available(f.event.ID))

	rejected, err := h.orders.RejectOrder(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, rejected.Status)
	assert.Equal(t, 10, h.available(f.event.ID))

	_, err = h.tickets.IssueCodes(h.ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	tickets, err := h.store.Repositories().Tickets.ListByOrder(h.ctx, order.ID)
	require.NoError(t, err)
	for _, ticket := range tickets {
		assert.Equal(t, domain.OrderStatusRejected, ticket.Status)
		assert.False(t, ticket.HasCode())
	}

	released := h.publisher.ByTopic(dto.TopicOrderReleased)
	require.Len(t, released, 1)
	assert.Equal(t, 2, released[0].Msg.(*dto.OrderReleasedEvent).Released)

	history := h.store.StatusHistory()
	require.Len(t, history, 1)
	assert.Equal(t, domain.OrderStatusPending, history[0].FromState)
	assert.Equal(t, domain.OrderStatusRejected, history[0].ToState)
	require.NotNil(t, history[0].ActorID)
	assert.Equal(t, h.owner.UserID, *history[0].ActorID)
}

func TestOrderService_TerminalStatesAreFinal(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	order, buyer := h.order(f, 1)

	_, err := h.orders.ConfirmOrder(h.ctx, h.owner, order.ID)
	require.NoError(t, err)

	_, err = h.orders.CancelOrder(h.ctx, buyer, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = h.orders.RejectOrder(h.ctx, h.owner, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = h.orders.ExpireOrder(h.ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, 9, h.available(f.event.ID), "confirmed tickets keep their capacity")
}

func TestOrderService_Authorization(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	order, buyer := h.order(f, 1)
	stranger := h.buyer()

	_, err := h.orders.CancelOrder(h.ctx, stranger, order.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.orders.ConfirmOrder(h.ctx, buyer, order.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.orders.GetOrder(h.ctx, stranger, order.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := h.orders.GetOrder(h.ctx, h.admin, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tickets, 1)

	cancelled, err := h.orders.CancelOrder(h.ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, h.available(f.event.ID))
}

func TestOrderService_CapacityInvariant(t *testing.T) {
	h := newHarness(t)
	f := h.seed(20, 20, 10)

	a, _ := h.order(f, 3)
	b, _ := h.order(f, 4)
	c, _ := h.order(f, 2)
	h.order(f, 5)

	_, err := h.orders.ConfirmOrder(h.ctx, h.owner, a.ID)
	require.NoError(t, err)
	_, err = h.orders.RejectOrder(h.ctx, h.owner, b.ID)
	require.NoError(t, err)
	_, err = h.orders.ExpireOrder(h.ctx, c.ID)
	require.NoError(t, err)

	stats, err := h.store.Repositories().Tickets.CountByStatus(h.ctx, f.event.ID)
	require.NoError(t, err)
	held := stats.Pending + stats.Confirmed
	assert.Equal(t, 8, held)
	assert.Equal(t, f.event.TicketsNumber-held, h.available(f.event.ID))
}

func TestOrderService_ExpireStale(t *testing.T) {
	h := newHarness(t)
	f := h.seed(20, 20, 10)

	stale, _ := h.order(f, 2)
	withProof, proofBuyer := h.order(f, 3)
	_, err := h.orders.SubmitPaymentProof(h.ctx, proofBuyer, withProof.ID, "proof.pdf", bytes.NewBufferString("pdf"))
	require.NoError(t, err)

	h.advance(24 * time.Hour)
	fresh, _ := h.order(f, 1)
	h.advance(25 * time.Hour)
	require.Equal(t, 14, h.available(f.event.ID))

	expired, err := h.orders.ExpireStale(h.ctx, h.now.Add(-domain.PendingOrderTTL), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 16, h.available(f.event.ID))

	for _, tc := range []struct {
		id   int64
		want domain.OrderStatus
	}{
		{stale.ID, domain.OrderStatusExpired},
		{withProof.ID, domain.OrderStatusPending},
		{fresh.ID, domain.OrderStatusPending},
	} {
		o, err := h.store.Repositories().Orders.GetByID(h.ctx, tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, o.Status, "order %d", tc.id)
	}

	again, err := h.orders.ExpireStale(h.ctx, h.now.Add(-domain.PendingOrderTTL), 100)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestOrderService_SubmitPaymentProofReplacesPrevious(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	order, buyer := h.order(f, 1)

	first, err := h.orders.SubmitPaymentProof(h.ctx, buyer, order.ID, "proof.PNG", bytes.NewBufferString("first"))
	require.NoError(t, err)
	firstURL := first.PaymentProofURL
	assert.Contains(t, firstURL, "payment-proofs/")
	assert.Contains(t, firstURL, ".png")

	h.advance(time.Minute)
	second, err := h.orders.SubmitPaymentProof(h.ctx, buyer, order.ID, "proof.png", bytes.NewBufferString("second"))
	require.NoError(t, err)
	assert.NotEqual(t, firstURL, second.PaymentProofURL)

	_, ok := h.objects.Content(storage.PublicIDFromURL(firstURL))
	assert.False(t, ok, "the previous proof is deleted")
	content, ok := h.objects.Content(storage.PublicIDFromURL(second.PaymentProofURL))
	require.True(t, ok)
	assert.Equal(t, "second", string(content))

	pending, err := h.orders.ListPendingForOwner(h.ctx, h.owner)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, order.ID, pending[0].ID)

	_, err = h.orders.SubmitPaymentProof(h.ctx, h.buyer(), order.ID, "x.png", bytes.NewBufferString("x"))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestOrderService_ConfirmAndSend(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	order, _ := h.order(f, 3)
	h.mailer.FailFor["guest2@example.com"] = errors.New("mailbox unavailable")

	result, err := h.orders.ConfirmAndSend(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EmailsSent)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "guest2@example.com")

	got, err := h.orders.GetOrder(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	assert.True(t, got.TicketsSent)
	for _, ticket := range got.Tickets {
		assert.True(t, ticket.HasCode())
		assert.True(t, ticket.CanRenderPDF())
	}

	sent := h.mailer.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].DownloadURL, "https://tickets.example.com/api/v1/tickets/")

	delete(h.mailer.FailFor, "guest2@example.com")
	retry, err := h.orders.ConfirmAndSend(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.EmailsSent, "only the failed ticket is mailed again")
	assert.Empty(t, retry.Errors)

	sent = h.mailer.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "guest2@example.com", sent[2].To)

	again, err := h.orders.ConfirmAndSend(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	assert.Zero(t, again.EmailsSent, "delivered tickets are never mailed twice")
	assert.Empty(t, again.Errors)
	assert.Len(t, h.mailer.Sent(), 3)

	got, err = h.orders.GetOrder(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	for _, ticket := range got.Tickets {
		assert.NotNil(t, ticket.EmailedAt)
		assert.False(t, ticket.NeedsEmail())
	}
}

func TestOrderService_ConfirmAndSendAfterMarkSent(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	order, _ := h.order(f, 2)

	_, err := h.orders.ConfirmOrder(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	_, err = h.orders.SendOrderTickets(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	assert.Empty(t, h.mailer.Sent(), "releasing for download does not e-mail")

	result, err := h.orders.ConfirmAndSend(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EmailsSent)
	assert.Empty(t, result.Errors)
}

func TestOrderService_SendOrderTickets(t *testing.T) {
	h := newHarness(t)
	f := h.seed(10, 10, 10)
	order, buyer := h.order(f, 2)

	_, err := h.orders.SendOrderTickets(h.ctx, h.owner, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pending orders cannot be sent")

	_, err = h.orders.ConfirmOrder(h.ctx, h.owner, order.ID)
	require.NoError(t, err)

	sent, err := h.orders.SendOrderTickets(h.ctx, h.owner, order.ID)
	require.NoError(t, err)
	assert.True(t, sent.TicketsSent)
	require.Len(t, sent.Tickets, 2)

	pdf, err := h.tickets.RenderPDF(h.ctx, buyer, sent.Tickets[0].ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}
