package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/events"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/internal/storage"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
	"go.uber.org/zap"
)

// ErrStorageDisabled is returned by uploads when no object storage is configured
var ErrStorageDisabled = errors.New("object storage is not configured")

var errNotExpirable = errors.New("order is no longer expirable")

// OrderServiceConfig contains the collaborators of the order service
type OrderServiceConfig struct {
	Store              repository.Store
	Tickets            TicketService
	Storage            storage.ObjectStorage
	Publisher          events.Publisher
	Cache              repository.AvailabilityCache
	Metrics            *telemetry.TicketingMetrics
	MaxTicketsPerBuyer int
	Clock              Clock
}

// orderService implements the OrderService interface
type orderService struct {
	store       repository.Store
	ledger      *ledger
	tickets     TicketService
	objects     storage.ObjectStorage
	publisher   events.Publisher
	metrics     *telemetry.TicketingMetrics
	maxPerBuyer int
	clock       Clock
}

// NewOrderService creates a new OrderService
func NewOrderService(cfg *OrderServiceConfig) OrderService {
	l := newLedger(cfg.Cache, cfg.Metrics)
	maxPerBuyer := cfg.MaxTicketsPerBuyer
	if maxPerBuyer <= 0 {
		maxPerBuyer = domain.MaxTicketsPerBuyer
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &orderService{
		store:       cfg.Store,
		ledger:      l,
		tickets:     cfg.Tickets,
		objects:     cfg.Storage,
		publisher:   publisher,
		metrics:     l.metrics,
		maxPerBuyer: maxPerBuyer,
		clock:       cfg.Clock,
	}
}

func sortedIDs(counts map[int64]int) []int64 {
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *orderService) refuse(ctx context.Context, kind domain.ResourceKind, id int64, requested int, a domain.Availability) error {
	s.metrics.CapacityRefusals.Inc(ctx, telemetry.ResourceKindAttr(string(kind)))
	return &domain.CapacityError{
		Kind:       kind,
		ResourceID: id,
		Requested:  requested,
		SpotsLeft:  a.SpotsLeft,
		Capacity:   a.Capacity,
	}
}

func (s *orderService) checkTables(ctx context.Context, r *repository.Repositories, eventID int64, counts map[int64]int) error {
	for _, id := range sortedIDs(counts) {
		table, err := r.Tables.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if table == nil || table.EventID != eventID {
			return fmt.Errorf("%w: %d", domain.ErrTableNotFound, id)
		}
		occupied, err := r.Tables.CountOccupied(ctx, id)
		if err != nil {
			return err
		}
		if a := domain.NewAvailability(table.Capacity, occupied, counts[id]); !a.Available {
			return s.refuse(ctx, domain.ResourceTable, id, counts[id], a)
		}
	}
	return nil
}

func (s *orderService) checkBuses(ctx context.Context, r *repository.Repositories, eventID int64, direction domain.BusDirection, counts map[int64]int) error {
	for _, id := range sortedIDs(counts) {
		bus, err := r.Buses.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if bus == nil || bus.EventID != eventID || bus.Direction != direction {
			return fmt.Errorf("%w: %d", domain.ErrBusNotFound, id)
		}
		occupied, err := r.Buses.CountOccupied(ctx, id, direction)
		if err != nil {
			return err
		}
		if a := domain.NewAvailability(bus.Capacity, occupied, counts[id]); !a.Available {
			return s.refuse(ctx, direction.ResourceKind(), id, counts[id], a)
		}
	}
	return nil
}

// CreateOrder reserves every requested ticket in one transaction under the event row lock
func (s *orderService) CreateOrder(ctx context.Context, buyer domain.Actor, req *dto.CreateOrderRequest) (order *domain.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.order.create")
	defer func() { telemetry.EndSpan(span, err) }()
	start := time.Now()

	if valid, msg := req.Validate(); !valid {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
	}
	quantity := req.Quantity()
	if quantity > s.maxPerBuyer {
		return nil, &domain.LimitError{Requested: quantity, Max: s.maxPerBuyer}
	}

	now := s.clock.now()
	var (
		remaining int
		capacity  int
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		event, err := r.Events.GetForUpdate(ctx, req.EventID)
		if err != nil {
			return err
		}
		if event == nil {
			return domain.ErrEventNotFound
		}
		if event.Status != domain.EventStatusApproved {
			return &domain.TransitionError{From: string(event.Status), To: "on_sale", Reason: "event is not open for sales"}
		}
		if !event.StartsAt.After(now) {
			return &domain.TransitionError{From: "started", To: "on_sale", Reason: "event has already started"}
		}
		capacity = event.TicketsNumber

		existing, err := r.Tickets.CountActiveByBuyer(ctx, buyer.UserID, event.ID)
		if err != nil {
			return err
		}
		if existing+quantity > s.maxPerBuyer {
			return &domain.LimitError{Existing: existing, Requested: quantity, Max: s.maxPerBuyer}
		}

		if err := s.checkTables(ctx, r, event.ID, req.TableCounts()); err != nil {
			return err
		}
		for _, direction := range []domain.BusDirection{domain.BusOutbound, domain.BusReturn} {
			if err := s.checkBuses(ctx, r, event.ID, direction, req.BusCounts(direction)); err != nil {
				return err
			}
		}

		if remaining, err = s.ledger.commit(ctx, r, event, quantity); err != nil {
			return err
		}

		total := decimal.Zero
		tickets := make([]*domain.Ticket, 0, quantity)
		for _, t := range req.Tickets {
			price := event.TicketPrice(t.HasBus())
			total = total.Add(price)
			tickets = append(tickets, &domain.Ticket{
				UserID:       buyer.UserID,
				EventID:      event.ID,
				TableID:      t.TableID,
				BusGoID:      t.BusGoID,
				BusComeID:    t.BusComeID,
				TicketEmail:  strings.TrimSpace(t.Email),
				Restrictions: strings.TrimSpace(t.Restrictions),
				Price:        price,
				Status:       domain.OrderStatusPending,
				CreatedAt:    now,
			})
		}

		order = &domain.Order{
			UserID:      buyer.UserID,
			EventID:     event.ID,
			TotalAmount: total,
			Status:      domain.OrderStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := r.Orders.Create(ctx, order); err != nil {
			return err
		}
		for _, t := range tickets {
			t.OrderID = order.ID
		}
		if err := r.Tickets.CreateBatch(ctx, tickets); err != nil {
			return err
		}
		order.Tickets = tickets
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrdersCreated.Inc(ctx, telemetry.EventIDAttr(order.EventID))
	s.metrics.TicketsCommitted.Add(ctx, int64(quantity), telemetry.EventIDAttr(order.EventID))
	s.metrics.OrderLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	s.ledger.observe(ctx, order.EventID, remaining, capacity)

	publish(ctx, s.publisher, dto.TopicOrderCreated, &dto.OrderCreatedEvent{
		EventType:   dto.TopicOrderCreated,
		OrderID:     order.ID,
		EventID:     order.EventID,
		UserID:      buyer.UserID.String(),
		Quantity:    quantity,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Remaining:   remaining,
		Timestamp:   now,
	})

	logger.Get().InfoContext(ctx, "order created",
		logger.OrderID(order.ID), logger.EventID(order.EventID),
		zap.Int("quantity", quantity), zap.Int("remaining", remaining))
	return order, nil
}

func (s *orderService) loadOrder(ctx context.Context, r *repository.Repositories, orderID int64) (*domain.Order, error) {
	order, err := r.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetOrder returns an order with its tickets
func (s *orderService) GetOrder(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error) {
	r := s.store.Repositories()
	order, err := s.loadOrder(ctx, r, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID {
		if _, err := requireManager(ctx, r, actor, order.EventID); err != nil {
			return nil, err
		}
	}

	order.Tickets, err = r.Tickets.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListMyOrders lists the caller's orders, newest first
func (s *orderService) ListMyOrders(ctx context.Context, buyer domain.Actor) ([]*domain.Order, error) {
	return s.store.Repositories().Orders.ListByUser(ctx, buyer.UserID)
}

// ListPendingForOwner lists orders awaiting payment validation on the caller's events
func (s *orderService) ListPendingForOwner(ctx context.Context, owner domain.Actor) ([]*domain.Order, error) {
	return s.store.Repositories().Orders.ListPendingWithProof(ctx, owner.UserID)
}

type transitionResult struct {
	order     *domain.Order
	from      domain.OrderStatus
	released  int
	available int
	capacity  int
}

// transition applies one order state change, moving its tickets in lockstep and
// releasing capacity when the target state gives it back
func (s *orderService) transition(
	ctx context.Context,
	orderID int64,
	to domain.OrderStatus,
	actor *domain.Actor,
	reason string,
	authorize func(ctx context.Context, r *repository.Repositories, o *domain.Order) error,
) (*domain.Order, error) {
	now := s.clock.now()
	var res transitionResult

	err := s.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		order, err := s.loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(ctx, r, order); err != nil {
				return err
			}
		}
		if err := order.Status.CheckTransition(to); err != nil {
			return err
		}

		ok, err := r.Orders.UpdateStatus(ctx, orderID, order.Status, to, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.loadOrder(ctx, r, orderID)
			if err != nil {
				return err
			}
			if err := current.Status.CheckTransition(to); err != nil {
				return err
			}
			return &domain.TransitionError{From: string(order.Status), To: string(to), Reason: "order was modified concurrently"}
		}

		moved, err := r.Tickets.UpdateStatusByOrder(ctx, orderID, to)
		if err != nil {
			return err
		}

		if to.ReleasesCapacity() {
			event, err := getEvent(ctx, r, order.EventID)
			if err != nil {
				return err
			}
			res.capacity = event.TicketsNumber
			if res.available, err = s.ledger.release(ctx, r, order.EventID, moved); err != nil {
				return err
			}
			res.released = moved
		}

		tr := &domain.StatusTransition{
			ID:        uuid.New(),
			OrderID:   orderID,
			FromState: order.Status,
			ToState:   to,
			Reason:    reason,
			CreatedAt: now,
		}
		if actor != nil {
			tr.ActorID = actorID(*actor)
		}
		if err := r.Orders.RecordTransition(ctx, tr); err != nil {
			return err
		}

		res.from = order.Status
		order.Status = to
		order.UpdatedAt = now
		res.order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	order := res.order
	s.metrics.OrderTransitions.Inc(ctx, telemetry.OrderStatusAttr(string(to)))

	if to.ReleasesCapacity() {
		s.metrics.TicketsCommitted.Add(ctx, -int64(res.released), telemetry.EventIDAttr(order.EventID))
		s.ledger.observe(ctx, order.EventID, res.available, res.capacity)
		publish(ctx, s.publisher, dto.TopicOrderReleased, &dto.OrderReleasedEvent{
			EventType: dto.TopicOrderReleased,
			OrderID:   order.ID,
			EventID:   order.EventID,
			Status:    string(to),
			Released:  res.released,
			Remaining: res.available,
			Timestamp: now,
		})
	}
	if to == domain.OrderStatusConfirmed {
		confirmedBy := ""
		if actor != nil {
			confirmedBy = actor.UserID.String()
		}
		publish(ctx, s.publisher, dto.TopicOrderConfirmed, &dto.OrderConfirmedEvent{
			EventType:   dto.TopicOrderConfirmed,
			OrderID:     order.ID,
			EventID:     order.EventID,
			UserID:      order.UserID.String(),
			ConfirmedBy: confirmedBy,
			Timestamp:   now,
		})
	}

	logger.Get().InfoContext(ctx, "order transitioned",
		logger.OrderID(order.ID), logger.EventID(order.EventID),
		zap.String("from", string(res.from)), logger.Status(string(to)),
		zap.Int("released", res.released))
	return order, nil
}

func (s *orderService) managerOnly(actor domain.Actor) func(ctx context.Context, r *repository.Repositories, o *domain.Order) error {
	return func(ctx context.Context, r *repository.Repositories, o *domain.Order) error {
		_, err := requireManager(ctx, r, actor, o.EventID)
		return err
	}
}

// ConfirmOrder accepts a pending order; capacity was already committed at creation
func (s *orderService) ConfirmOrder(ctx context.Context, actor domain.Actor, orderID int64) (order *domain.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.order.confirm")
	defer func() { telemetry.EndSpan(span, err) }()

	return s.transition(ctx, orderID, domain.OrderStatusConfirmed, &actor, "payment confirmed", s.managerOnly(actor))
}

// RejectOrder refuses a pending order and releases its tickets
func (s *orderService) RejectOrder(ctx context.Context, actor domain.Actor, orderID int64) (order *domain.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.order.reject")
	defer func() { telemetry.EndSpan(span, err) }()

	return s.transition(ctx, orderID, domain.OrderStatusRejected, &actor, "payment rejected", s.managerOnly(actor))
}

// CancelOrder lets the buyer withdraw a pending order
func (s *orderService) CancelOrder(ctx context.Context, buyer domain.Actor, orderID int64) (order *domain.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.order.cancel")
	defer func() { telemetry.EndSpan(span, err) }()

	return s.transition(ctx, orderID, domain.OrderStatusCancelled, &buyer, "cancelled by buyer",
		func(_ context.Context, _ *repository.Repositories, o *domain.Order) error {
			if o.UserID != buyer.UserID {
				return domain.ErrForbidden
			}
			return nil
		})
}

// ExpireOrder expires a pending order regardless of its age
func (s *orderService) ExpireOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.transition(ctx, orderID, domain.OrderStatusExpired, nil, "payment window elapsed", nil)
}

// ExpireStale expires pending orders without payment proof created before cutoff
func (s *orderService) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	orders, err := s.store.Repositories().Orders.ListExpirable(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	stillExpirable := func(_ context.Context, _ *repository.Repositories, o *domain.Order) error {
		if o.HasPaymentProof() || o.CreatedAt.After(cutoff) {
			return errNotExpirable
		}
		return nil
	}

	expired := 0
	for _, o := range orders {
		_, err := s.transition(ctx, o.ID, domain.OrderStatusExpired, nil, "payment window elapsed", stillExpirable)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, errNotExpirable), errors.Is(err, domain.ErrInvalidTransition):
			// confirmed, cancelled or paid since it was listed
		default:
			logger.Get().ErrorContext(ctx, "failed to expire order", logger.OrderID(o.ID), zap.Error(err))
		}
	}
	if expired > 0 {
		s.metrics.ExpiredOrders.Add(ctx, int64(expired))
	}
	return expired, nil
}

// SubmitPaymentProof uploads a proof for a pending order, replacing any previous one
func (s *orderService) SubmitPaymentProof(ctx context.Context, buyer domain.Actor, orderID int64, filename string, r io.Reader) (*domain.Order, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}

	repos := s.store.Repositories()
	order, err := s.loadOrder(ctx, repos, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != buyer.UserID {
		return nil, domain.ErrForbidden
	}
	if order.Status != domain.OrderStatusPending {
		return nil, &domain.TransitionError{
			From:   string(order.Status),
			To:     "payment_submitted",
			Reason: fmt.Sprintf("payment proof can only be submitted for pending orders, order is %s", order.Status),
		}
	}

	now := s.clock.now()
	objectPath := fmt.Sprintf("payment-proofs/%d/proof-%d%s", orderID, now.Unix(), strings.ToLower(path.Ext(filename)))
	url, err := s.objects.Upload(ctx, objectPath, r)
	if err != nil {
		return nil, fmt.Errorf("upload payment proof: %w", err)
	}

	ok, err := repos.Orders.SetPaymentProof(ctx, orderID, url, now)
	if err != nil || !ok {
		if delErr := s.objects.Delete(ctx, url); delErr != nil {
			logger.Get().WarnContext(ctx, "failed to remove orphan payment proof", logger.OrderID(orderID), zap.Error(delErr))
		}
		if err != nil {
			return nil, err
		}
		return nil, &domain.TransitionError{From: "changed", To: "payment_submitted", Reason: "order is no longer pending"}
	}

	if order.HasPaymentProof() && order.PaymentProofURL != url {
		if err := s.objects.Delete(ctx, order.PaymentProofURL); err != nil {
			logger.Get().WarnContext(ctx, "failed to delete previous payment proof", logger.OrderID(orderID), zap.Error(err))
		}
	}

	order.PaymentProofURL = url
	order.PaymentSubmittedAt = &now
	order.UpdatedAt = now
	logger.Get().InfoContext(ctx, "payment proof submitted", logger.OrderID(orderID))
	return order, nil
}

// markSent flags a confirmed order as delivered and makes its tickets downloadable
func (s *orderService) markSent(ctx context.Context, actor domain.Actor, order *domain.Order) error {
	now := s.clock.now()
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		ok, err := r.Orders.MarkTicketsSent(ctx, order.ID, actor.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.TransitionError{From: "changed", To: "sent", Reason: "tickets can only be sent for confirmed orders"}
		}
		_, err = r.Tickets.MarkSent(ctx, order.ID, now)
		return err
	})
	if err != nil {
		return err
	}

	order.TicketsSent = true
	order.TicketsSentAt = &now
	order.TicketsSentBy = actorID(actor)
	return nil
}

// SendOrderTickets releases the tickets of a confirmed order for download
func (s *orderService) SendOrderTickets(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error) {
	r := s.store.Repositories()
	order, err := s.loadOrder(ctx, r, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := requireManager(ctx, r, actor, order.EventID); err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusConfirmed {
		return nil, &domain.TransitionError{
			From:   string(order.Status),
			To:     "sent",
			Reason: fmt.Sprintf("tickets can only be sent for confirmed orders, order is %s", order.Status),
		}
	}

	if _, err := s.tickets.IssueCodes(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.markSent(ctx, actor, order); err != nil {
		return nil, err
	}

	order.Tickets, err = r.Tickets.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	logger.Get().InfoContext(ctx, "order tickets released for download", logger.OrderID(orderID))
	return order, nil
}

// ConfirmAndSend confirms a pending order, issues its codes and e-mails every coded ticket
// without a recorded delivery. On an already confirmed order it only issues and sends what is missing,
// which retries earlier failures and reaches tickets coded by SendOrderTickets.
func (s *orderService) ConfirmAndSend(ctx context.Context, actor domain.Actor, orderID int64) (result *dto.SendResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.order.confirm_and_send")
	defer func() { telemetry.EndSpan(span, err) }()

	r := s.store.Repositories()
	order, err := s.loadOrder(ctx, r, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := requireManager(ctx, r, actor, order.EventID); err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusPending:
		if order, err = s.ConfirmOrder(ctx, actor, orderID); err != nil {
			return nil, err
		}
	case domain.OrderStatusConfirmed:
	default:
		return nil, order.Status.CheckTransition(domain.OrderStatusConfirmed)
	}

	if _, err := s.tickets.IssueCodes(ctx, orderID); err != nil {
		return nil, err
	}
	if result, err = s.tickets.EmailPending(ctx, orderID); err != nil {
		return nil, err
	}

	if err := s.markSent(ctx, actor, order); err != nil {
		return nil, err
	}

	logger.Get().InfoContext(ctx, "order confirmed and sent",
		logger.OrderID(orderID), zap.Int("emails_sent", result.EmailsSent), zap.Int("email_errors", len(result.Errors)))
	return result, nil
}
