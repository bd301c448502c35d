package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/events"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
	"go.uber.org/zap"
)

// ActionLogLimit is how many door scans the action log shows
const ActionLogLimit = 50

// CheckinServiceConfig contains the collaborators of the check-in service
type CheckinServiceConfig struct {
	Store     repository.Store
	Publisher events.Publisher
	Metrics   *telemetry.TicketingMetrics
	Clock     Clock
}

// checkinService implements the CheckinService interface
type checkinService struct {
	store     repository.Store
	publisher events.Publisher
	metrics   *telemetry.TicketingMetrics
	clock     Clock
}

// NewCheckinService creates a new CheckinService
func NewCheckinService(cfg *CheckinServiceConfig) CheckinService {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.MustTicketingMetrics()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &checkinService{
		store:     cfg.Store,
		publisher: publisher,
		metrics:   metrics,
		clock:     cfg.Clock,
	}
}

// Scan applies one door scan. Check-in and check-out are single conditional
// updates; on refusal the ticket is re-read to explain why.
func (s *checkinService) Scan(ctx context.Context, code string, cred domain.StaffCredential, direction domain.ScanDirection) (result *dto.ScanResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkin.scan")
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "refused"
		}
		telemetry.TrackScan(string(direction), outcome)
		s.metrics.Scans.Inc(ctx, telemetry.ScanDirectionAttr(string(direction)), telemetry.OutcomeAttr(outcome))
		telemetry.EndSpan(span, err)
	}()

	if !direction.IsValid() {
		return nil, fmt.Errorf("%w: unknown scan direction %q", domain.ErrInvalidInput, direction)
	}
	code = strings.TrimSpace(code)

	r := s.store.Repositories()
	ticket, err := r.Tickets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrTicketNotFound
	}
	if ticket.EventID != cred.EventID {
		return nil, &domain.TransitionError{From: "foreign", To: string(direction), Reason: "ticket belongs to another event"}
	}

	now := s.clock.now()
	var message string
	switch direction {
	case domain.ScanCheckIn:
		updated, err := r.Tickets.MarkCheckedIn(ctx, code, cred.EventID, now)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, s.refusal(ctx, r, code, direction)
		}
		ticket, message = updated, "Check-in successful"

	case domain.ScanCheckOut:
		updated, err := r.Tickets.MarkCheckedOut(ctx, code, cred.EventID, now)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, s.refusal(ctx, r, code, direction)
		}
		ticket, message = updated, "Check-out successful"

	case domain.ScanBusInfo:
		if ticket.Status != domain.OrderStatusConfirmed {
			return nil, &domain.TransitionError{
				From:   string(ticket.Status),
				To:     string(direction),
				Reason: fmt.Sprintf("ticket is %s, not confirmed", ticket.Status),
			}
		}
		message = "No bus booked"
		if ticket.HasBus() {
			message = "Bus information"
		}
	}

	result, err = s.describe(ctx, r, ticket, direction, message)
	if err != nil {
		return nil, err
	}

	if direction != domain.ScanBusInfo {
		s.recordAction(ctx, r, ticket, cred, direction, now)
	}
	return result, nil
}

func (s *checkinService) refusal(ctx context.Context, r *repository.Repositories, code string, direction domain.ScanDirection) error {
	current, err := r.Tickets.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if current == nil {
		return domain.ErrTicketNotFound
	}

	var refusal error
	if direction == domain.ScanCheckIn {
		refusal = current.CheckInRefusal()
	} else {
		refusal = current.CheckOutRefusal()
	}
	if refusal == nil {
		refusal = &domain.TransitionError{From: string(current.Status), To: string(direction), Reason: "ticket was scanned concurrently, try again"}
	}
	return refusal
}

func scanTopic(direction domain.ScanDirection) string {
	if direction == domain.ScanCheckOut {
		return dto.TopicTicketCheckedOut
	}
	return dto.TopicTicketCheckedIn
}

// recordAction appends to the door log; the scan itself has already been applied
func (s *checkinService) recordAction(ctx context.Context, r *repository.Repositories, t *domain.Ticket,
	cred domain.StaffCredential, direction domain.ScanDirection, now time.Time) {
	action := &domain.StaffAction{
		AccessCodeID: cred.AccessCodeID,
		TicketID:     t.ID,
		EventID:      t.EventID,
		Action:       direction,
		StaffName:    cred.StaffName,
		TicketEmail:  t.TicketEmail,
		CreatedAt:    now,
	}
	if err := r.StaffActions.Create(ctx, action); err != nil {
		logger.Get().ErrorContext(ctx, "failed to record staff action",
			logger.TicketID(t.ID), logger.StaffCode(cred.AccessCodeID), zap.Error(err))
	}

	publish(ctx, s.publisher, scanTopic(direction), &dto.TicketScannedEvent{
		EventType:    string(direction),
		TicketID:     t.ID,
		EventID:      t.EventID,
		AccessCodeID: cred.AccessCodeID,
		Direction:    string(direction),
		Timestamp:    now,
	})

	logger.Get().InfoContext(ctx, "ticket scanned",
		logger.TicketID(t.ID), logger.EventID(t.EventID), logger.StaffCode(cred.AccessCodeID),
		zap.String("direction", string(direction)))
}

func (s *checkinService) describe(ctx context.Context, r *repository.Repositories, t *domain.Ticket,
	direction domain.ScanDirection, message string) (*dto.ScanResult, error) {
	result := &dto.ScanResult{
		TicketID:     t.ID,
		Direction:    string(direction),
		Message:      message,
		Email:        t.TicketEmail,
		Restrictions: t.Restrictions,
		CheckedInAt:  t.CheckedInAt,
		CheckedOutAt: t.CheckedOutAt,
	}

	table, err := r.Tables.GetByID(ctx, t.TableID)
	if err != nil {
		return nil, err
	}
	if table != nil {
		result.TableName = table.Name
	}

	if result.BusGo, err = busInfo(ctx, r, t.BusGoID); err != nil {
		return nil, err
	}
	if result.BusCome, err = busInfo(ctx, r, t.BusComeID); err != nil {
		return nil, err
	}
	return result, nil
}

func busInfo(ctx context.Context, r *repository.Repositories, busID *int64) (*dto.BusInfo, error) {
	if busID == nil {
		return nil, nil
	}
	bus, err := r.Buses.GetByID(ctx, *busID)
	if err != nil || bus == nil {
		return nil, err
	}
	return &dto.BusInfo{
		BusID:     bus.ID,
		Direction: string(bus.Direction),
		Location:  bus.Location,
		DepartsAt: bus.DepartsAt,
	}, nil
}

// Stats summarizes door activity over the confirmed tickets of an event
func (s *checkinService) Stats(ctx context.Context, actor domain.Actor, eventID int64) (*domain.CheckStats, error) {
	r := s.store.Repositories()
	if _, err := requireManager(ctx, r, actor, eventID); err != nil {
		return nil, err
	}
	return s.stats(ctx, r, eventID)
}

// StaffStats is Stats for the door team of the credential's event
func (s *checkinService) StaffStats(ctx context.Context, cred domain.StaffCredential) (*domain.CheckStats, error) {
	return s.stats(ctx, s.store.Repositories(), cred.EventID)
}

func (s *checkinService) stats(ctx context.Context, r *repository.Repositories, eventID int64) (*domain.CheckStats, error) {
	tickets, err := r.Tickets.ListConfirmedByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	stats := domain.ComputeCheckStats(tickets)
	return &stats, nil
}

// ListActions lists the latest door scans of an event
func (s *checkinService) ListActions(ctx context.Context, actor domain.Actor, eventID int64) ([]*domain.StaffAction, error) {
	r := s.store.Repositories()
	if _, err := requireManager(ctx, r, actor, eventID); err != nil {
		return nil, err
	}
	return r.StaffActions.ListByEvent(ctx, eventID, ActionLogLimit)
}

// ListAttendees lists the confirmed tickets of an event with their door status
func (s *checkinService) ListAttendees(ctx context.Context, actor domain.Actor, eventID int64) ([]*dto.Attendee, error) {
	r := s.store.Repositories()
	if _, err := requireManager(ctx, r, actor, eventID); err != nil {
		return nil, err
	}

	tickets, err := r.Tickets.ListConfirmedByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	tables, err := r.Tables.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	tableNames := make(map[int64]string, len(tables))
	for _, t := range tables {
		tableNames[t.ID] = t.Name
	}

	attendees := make([]*dto.Attendee, 0, len(tickets))
	for _, t := range tickets {
		attendees = append(attendees, &dto.Attendee{
			TicketID:     t.ID,
			OrderID:      t.OrderID,
			Email:        t.TicketEmail,
			TableName:    tableNames[t.TableID],
			Restrictions: t.Restrictions,
			HasBus:       t.HasBus(),
			CheckedInAt:  t.CheckedInAt,
			CheckedOutAt: t.CheckedOutAt,
		})
	}
	return attendees, nil
}
