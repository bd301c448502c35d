package service

import (
	"context"
	"fmt"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
	"go.uber.org/zap"
)

// ledger holds the capacity rules. Its methods take the repositories of the
// caller so they can run inside an order transaction.
type ledger struct {
	cache   repository.AvailabilityCache
	metrics *telemetry.TicketingMetrics
}

func newLedger(cache repository.AvailabilityCache, metrics *telemetry.TicketingMetrics) *ledger {
	if cache == nil {
		cache = repository.NoopAvailabilityCache{}
	}
	if metrics == nil {
		metrics = telemetry.MustTicketingMetrics()
	}
	return &ledger{cache: cache, metrics: metrics}
}

func (l *ledger) availability(ctx context.Context, r *repository.Repositories, kind domain.ResourceKind, id int64, requested int) (*domain.Availability, error) {
	switch kind {
	case domain.ResourceEvent:
		event, err := r.Events.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if event == nil {
			return nil, domain.ErrEventNotFound
		}
		a := domain.NewAvailability(event.TicketsNumber, event.CommittedTickets(), requested)
		return &a, nil

	case domain.ResourceTable:
		table, err := r.Tables.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if table == nil {
			return nil, domain.ErrTableNotFound
		}
		occupied, err := r.Tables.CountOccupied(ctx, id)
		if err != nil {
			return nil, err
		}
		a := domain.NewAvailability(table.Capacity, occupied, requested)
		return &a, nil

	case domain.ResourceBusIda, domain.ResourceBusVolta:
		bus, err := r.Buses.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if bus == nil || bus.Direction.ResourceKind() != kind {
			return nil, domain.ErrBusNotFound
		}
		occupied, err := r.Buses.CountOccupied(ctx, id, bus.Direction)
		if err != nil {
			return nil, err
		}
		a := domain.NewAvailability(bus.Capacity, occupied, requested)
		return &a, nil
	}
	return nil, fmt.Errorf("%w: unknown resource kind %q", domain.ErrInvalidInput, kind)
}

// commit takes n tickets with one conditional decrement
func (l *ledger) commit(ctx context.Context, r *repository.Repositories, event *domain.Event, n int) (int, error) {
	remaining, ok, err := r.Events.DecrementAvailable(ctx, event.ID, n)
	if err != nil {
		return 0, err
	}
	if !ok {
		l.metrics.CapacityRefusals.Inc(ctx, telemetry.ResourceKindAttr(string(domain.ResourceEvent)))
		return remaining, &domain.CapacityError{
			Kind:       domain.ResourceEvent,
			ResourceID: event.ID,
			Requested:  n,
			SpotsLeft:  remaining,
			Capacity:   event.TicketsNumber,
		}
	}
	return remaining, nil
}

func (l *ledger) release(ctx context.Context, r *repository.Repositories, eventID int64, n int) (int, error) {
	if n <= 0 {
		event, err := r.Events.GetByID(ctx, eventID)
		if err != nil {
			return 0, err
		}
		if event == nil {
			return 0, domain.ErrEventNotFound
		}
		return event.AvailableTickets, nil
	}
	return r.Events.IncrementAvailable(ctx, eventID, n)
}

// observe publishes a committed counter value. Call it after the transaction commits.
func (l *ledger) observe(ctx context.Context, eventID int64, available, capacity int) {
	telemetry.SetEventAvailability(eventID, available)
	if err := l.cache.Set(ctx, eventID, available, capacity); err != nil {
		logger.Get().WarnContext(ctx, "failed to cache availability", logger.EventID(eventID), zap.Error(err))
	}
}

// ledgerService implements the LedgerService interface
type ledgerService struct {
	store  repository.Store
	ledger *ledger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(store repository.Store, cache repository.AvailabilityCache, metrics *telemetry.TicketingMetrics) LedgerService {
	return &ledgerService{
		store:  store,
		ledger: newLedger(cache, metrics),
	}
}

// CheckAvailability reports spots left; a refusal is a result, not an error.
// Event counters may be served from the cache.
func (s *ledgerService) CheckAvailability(ctx context.Context, kind domain.ResourceKind, resourceID int64, requested int) (*domain.Availability, error) {
	if requested <= 0 {
		requested = 1
	}

	if kind == domain.ResourceEvent {
		cached, err := s.ledger.cache.Get(ctx, resourceID)
		if err != nil {
			logger.Get().WarnContext(ctx, "availability cache read failed", logger.EventID(resourceID), zap.Error(err))
		} else if cached != nil {
			a := domain.NewAvailability(cached.Capacity, cached.Capacity-cached.Available, requested)
			return &a, nil
		}
	}

	a, err := s.ledger.availability(ctx, s.store.Repositories(), kind, resourceID, requested)
	if err != nil {
		return nil, err
	}
	if kind == domain.ResourceEvent {
		s.ledger.observe(ctx, resourceID, a.SpotsLeft, a.Capacity)
	}
	return a, nil
}

// CommitReservation takes n tickets from an event
func (s *ledgerService) CommitReservation(ctx context.Context, eventID int64, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}

	var (
		remaining int
		capacity  int
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		event, err := r.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return domain.ErrEventNotFound
		}
		capacity = event.TicketsNumber
		remaining, err = s.ledger.commit(ctx, r, event, n)
		return err
	})
	if err != nil {
		return remaining, err
	}

	s.ledger.metrics.TicketsCommitted.Add(ctx, int64(n), telemetry.EventIDAttr(eventID))
	s.ledger.observe(ctx, eventID, remaining, capacity)
	return remaining, nil
}

// ReleaseReservation gives n tickets back to an event
func (s *ledgerService) ReleaseReservation(ctx context.Context, eventID int64, n int) (int, error) {
	var (
		available int
		capacity  int
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		event, err := r.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return domain.ErrEventNotFound
		}
		capacity = event.TicketsNumber
		available, err = s.ledger.release(ctx, r, eventID, n)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.ledger.metrics.TicketsCommitted.Add(ctx, -int64(n), telemetry.EventIDAttr(eventID))
	s.ledger.observe(ctx, eventID, available, capacity)
	return available, nil
}
