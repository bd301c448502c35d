package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/internal/storage"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
	"go.uber.org/zap"
)

// EventServiceConfig contains the collaborators of the event service
type EventServiceConfig struct {
	Store   repository.Store
	Storage storage.ObjectStorage
	Cache   repository.AvailabilityCache
	Metrics *telemetry.TicketingMetrics
	Clock   Clock
}

// eventService implements the EventService interface
type eventService struct {
	store    repository.Store
	storage  storage.ObjectStorage
	ledger   *ledger
	validate *validator.Validate
	clock    Clock
}

// NewEventService creates a new EventService
func NewEventService(cfg *EventServiceConfig) EventService {
	v := validator.New()
	v.SetTagName("binding")
	return &eventService{
		store:    cfg.Store,
		storage:  cfg.Storage,
		ledger:   newLedger(cfg.Cache, cfg.Metrics),
		validate: v,
		clock:    cfg.Clock,
	}
}

// CreateEvent stores a pending event with all of its tickets available
func (s *eventService) CreateEvent(ctx context.Context, owner domain.Actor, req *dto.CreateEventRequest) (detail *dto.EventDetail, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.create")
	defer func() { telemetry.EndSpan(span, err) }()

	if owner.Role != domain.RoleOwner && !owner.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	now := s.clock.now()
	if ok, msg := req.Validate(now); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
	}

	event := &domain.Event{
		OwnerID:          owner.UserID,
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		Location:         req.Location,
		StartsAt:         req.StartsAt,
		TicketsNumber:    req.TicketsNumber,
		AvailableTickets: req.TicketsNumber,
		Status:           domain.EventStatusPending,
		PriceBus:         req.PriceBus,
		PriceNoBus:       req.PriceNoBus,
		PaymentIBAN:      req.PaymentIBAN,
		PaymentMBWay:     req.PaymentMBWay,
		PaymentName:      req.PaymentName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
		if err := r.Events.Create(ctx, event); err != nil {
			return err
		}
		for _, t := range req.Tables {
			table := &domain.Table{EventID: event.ID, Name: strings.TrimSpace(t.Name), Capacity: t.Capacity}
			if err := r.Tables.Create(ctx, table); err != nil {
				return err
			}
		}
		for _, b := range req.Buses {
			bus := &domain.Bus{
				EventID:   event.ID,
				Direction: domain.BusDirection(b.Direction),
				Capacity:  b.Capacity,
				Location:  b.Location,
				DepartsAt: b.DepartsAt,
			}
			if !bus.Direction.IsValid() {
				return fmt.Errorf("%w: unknown bus direction %q", domain.ErrInvalidInput, b.Direction)
			}
			if err := r.Buses.Create(ctx, bus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.observe(ctx, event.ID, event.AvailableTickets, event.TicketsNumber)
	logger.Get().InfoContext(ctx, "event created",
		logger.EventID(event.ID), zap.String("name", event.Name), zap.Int("tickets", event.TicketsNumber))
	return s.detail(ctx, s.store.Repositories(), event)
}

func (s *eventService) detail(ctx context.Context, r *repository.Repositories, event *domain.Event) (*dto.EventDetail, error) {
	tables, err := r.Tables.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	buses, err := r.Buses.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	return &dto.EventDetail{Event: event, Tables: tables, Buses: buses}, nil
}

// GetEvent returns an event with the live occupancy of its tables and buses
func (s *eventService) GetEvent(ctx context.Context, eventID int64) (*dto.EventDetail, error) {
	r := s.store.Repositories()
	event, err := getEvent(ctx, r, eventID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, r, event)
}

// ListAvailable lists approved future events with tickets left
func (s *eventService) ListAvailable(ctx context.Context, query *dto.ListEventsQuery) ([]*domain.Event, int, error) {
	query.SetDefaults()
	return s.store.Repositories().Events.ListAvailable(ctx, s.clock.now(), query.Page, query.Limit)
}

// ListMine lists the events of an organizer
func (s *eventService) ListMine(ctx context.Context, owner domain.Actor) ([]*domain.Event, error) {
	return s.store.Repositories().Events.ListByOwner(ctx, owner.UserID)
}

// Approve opens a pending event for sales
func (s *eventService) Approve(ctx context.Context, admin domain.Actor, eventID int64) (*domain.Event, error) {
	return s.moderate(ctx, admin, eventID, domain.EventStatusApproved)
}

// Reject refuses a pending event
func (s *eventService) Reject(ctx context.Context, admin domain.Actor, eventID int64) (*domain.Event, error) {
	return s.moderate(ctx, admin, eventID, domain.EventStatusRejected)
}

func (s *eventService) moderate(ctx context.Context, admin domain.Actor, eventID int64, to domain.EventStatus) (*domain.Event, error) {
	if !admin.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	r := s.store.Repositories()
	event, err := getEvent(ctx, r, eventID)
	if err != nil {
		return nil, err
	}
	ok, err := r.Events.UpdateStatus(ctx, eventID, domain.EventStatusPending, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.TransitionError{
			From:   string(event.Status),
			To:     string(to),
			Reason: fmt.Sprintf("event is already %s", event.Status),
		}
	}

	logger.Get().InfoContext(ctx, "event moderated", logger.EventID(eventID), logger.Status(string(to)))
	return getEvent(ctx, r, eventID)
}

// Stats counts the tickets of an event by status
func (s *eventService) Stats(ctx context.Context, actor domain.Actor, eventID int64) (*domain.SalesStats, error) {
	r := s.store.Repositories()
	if _, err := requireManager(ctx, r, actor, eventID); err != nil {
		return nil, err
	}
	return r.Tickets.CountByStatus(ctx, eventID)
}

// UploadImage replaces the cover image of an event
func (s *eventService) UploadImage(ctx context.Context, actor domain.Actor, eventID int64, filename string, body io.Reader) (*domain.Event, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	r := s.store.Repositories()
	event, err := requireManager(ctx, r, actor, eventID)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("events/%s-%d/cover%s", slug.Make(event.Name), event.ID, strings.ToLower(filepath.Ext(filename)))
	url, err := s.storage.Upload(ctx, path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to upload event image: %w", err)
	}
	if err := r.Events.UpdateImage(ctx, eventID, url); err != nil {
		return nil, err
	}

	if event.ImageURL != "" && event.ImageURL != url {
		if err := s.storage.Delete(ctx, event.ImageURL); err != nil {
			logger.Get().WarnContext(ctx, "failed to delete old event image", logger.EventID(eventID), zap.Error(err))
		}
	}
	event.ImageURL = url
	return event, nil
}
