package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/notify"
	"github.com/upgrade-events/Upgrade-Events/internal/render"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
	"go.uber.org/zap"
)

const codeMaxAttempts = 5

// ErrMailDisabled is reported per ticket when no mailer is configured
var ErrMailDisabled = errors.New("email delivery is not configured")

// TicketServiceConfig contains the collaborators of the ticket service
type TicketServiceConfig struct {
	Store    repository.Store
	Mailer   notify.TicketMailer
	Renderer render.TicketRenderer
	Metrics  *telemetry.TicketingMetrics
	Clock    Clock

	// PublicURL prefixes download links in e-mails; empty omits them
	PublicURL string
}

// ticketService implements the TicketService interface
type ticketService struct {
	store     repository.Store
	mailer    notify.TicketMailer
	renderer  render.TicketRenderer
	metrics   *telemetry.TicketingMetrics
	clock     Clock
	publicURL string
}

// NewTicketService creates a new TicketService
func NewTicketService(cfg *TicketServiceConfig) TicketService {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.MustTicketingMetrics()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = render.NewPDFRenderer()
	}
	return &ticketService{
		store:     cfg.Store,
		mailer:    cfg.Mailer,
		renderer:  renderer,
		metrics:   metrics,
		clock:     cfg.Clock,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

// IssueCodes codes every ticket of a confirmed order that has none yet and returns only those.
// Existing codes are never overwritten, so calling it twice sends nothing twice.
func (s *ticketService) IssueCodes(ctx context.Context, orderID int64) (coded []*domain.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.issue_codes")
	defer func() { telemetry.EndSpan(span, err) }()

	r := s.store.Repositories()
	order, err := r.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusConfirmed {
		return nil, &domain.TransitionError{
			From:   string(order.Status),
			To:     "coded",
			Reason: fmt.Sprintf("validation codes are only issued for confirmed orders, order is %s", order.Status),
		}
	}

	tickets, err := r.Tickets.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	for _, t := range tickets {
		if t.HasCode() {
			continue
		}
		assigned, err := s.assignCode(ctx, r, t)
		if err != nil {
			return nil, err
		}
		if assigned {
			coded = append(coded, t)
		}
	}

	logger.Get().InfoContext(ctx, "validation codes issued", logger.OrderID(orderID), zap.Int("count", len(coded)))
	return coded, nil
}

// assignCode retries on collision; false means another caller coded the ticket first
func (s *ticketService) assignCode(ctx context.Context, r *repository.Repositories, t *domain.Ticket) (bool, error) {
	for attempt := 0; attempt < codeMaxAttempts; attempt++ {
		code, err := domain.NewValidationCode(t.ID)
		if err != nil {
			return false, err
		}
		ok, err := r.Tickets.AssignValidationCode(ctx, t.ID, code)
		if errors.Is(err, domain.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return false, err
		}
		if ok {
			t.ValidationCode = &code
		}
		return ok, nil
	}
	return false, fmt.Errorf("could not generate a unique validation code for ticket %d", t.ID)
}

// EmailPending e-mails the coded tickets of an order that have no recorded delivery
func (s *ticketService) EmailPending(ctx context.Context, orderID int64) (*dto.SendResult, error) {
	tickets, err := s.store.Repositories().Tickets.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	pending := make([]*domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.NeedsEmail() {
			pending = append(pending, t)
		}
	}
	return s.EmailTickets(ctx, pending), nil
}

// EmailTickets sends one e-mail per ticket; a failure is recorded and the batch goes on.
// Delivery is claimed before sending and released on failure, so a ticket is mailed at most
// once and a failed one is picked up again by the next call.
func (s *ticketService) EmailTickets(ctx context.Context, tickets []*domain.Ticket) *dto.SendResult {
	result := &dto.SendResult{Errors: []string{}}
	if len(tickets) == 0 {
		return result
	}

	r := s.store.Repositories()
	eventCache := make(map[int64]*domain.Event)
	tables := make(map[int64]*domain.Table)

	for _, t := range tickets {
		if !t.HasCode() {
			s.emailFailed(ctx, result, t, errors.New("ticket has no validation code"))
			continue
		}

		at := s.clock.now().Truncate(time.Microsecond)
		claimed, err := r.Tickets.ClaimEmail(ctx, t.ID, at)
		if err != nil {
			s.emailFailed(ctx, result, t, err)
			continue
		}
		if !claimed {
			continue
		}

		email, err := s.buildEmail(ctx, r, t, eventCache, tables)
		if err == nil {
			if s.mailer == nil {
				err = ErrMailDisabled
			} else {
				err = s.mailer.SendTicketEmail(ctx, *email)
			}
		}

		if err != nil {
			if relErr := r.Tickets.ReleaseEmail(ctx, t.ID, at); relErr != nil {
				logger.Get().ErrorContext(ctx, "failed to release ticket email claim", logger.TicketID(t.ID), zap.Error(relErr))
			}
			s.emailFailed(ctx, result, t, err)
			continue
		}
		t.EmailedAt = &at
		s.metrics.EmailsSent.Inc(ctx, telemetry.OutcomeAttr("sent"))
		result.EmailsSent++
	}
	return result
}

func (s *ticketService) emailFailed(ctx context.Context, result *dto.SendResult, t *domain.Ticket, err error) {
	s.metrics.EmailsSent.Inc(ctx, telemetry.OutcomeAttr("failed"))
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", t.TicketEmail, err))
	logger.Get().WarnContext(ctx, "ticket email failed", logger.TicketID(t.ID), zap.Error(err))
}

func (s *ticketService) buildEmail(ctx context.Context, r *repository.Repositories, t *domain.Ticket,
	eventCache map[int64]*domain.Event, tables map[int64]*domain.Table) (*notify.TicketEmail, error) {
	event, ok := eventCache[t.EventID]
	if !ok {
		var err error
		if event, err = getEvent(ctx, r, t.EventID); err != nil {
			return nil, err
		}
		eventCache[t.EventID] = event
	}

	table, ok := tables[t.TableID]
	if !ok {
		var err error
		if table, err = r.Tables.GetByID(ctx, t.TableID); err != nil {
			return nil, err
		}
		tables[t.TableID] = table
	}

	email := &notify.TicketEmail{
		To:             t.TicketEmail,
		TicketID:       t.ID,
		OrderID:        t.OrderID,
		EventName:      event.Name,
		EventStartsAt:  event.StartsAt,
		Location:       event.Location,
		Restrictions:   t.Restrictions,
		ValidationCode: *t.ValidationCode,
		HasBus:         t.HasBus(),
	}
	if table != nil {
		email.TableName = table.Name
	}
	if s.publicURL != "" {
		email.DownloadURL = fmt.Sprintf("%s/api/v1/tickets/%d/pdf", s.publicURL, t.ID)
	}
	return email, nil
}

// RenderPDF renders a ticket that has been released for download
func (s *ticketService) RenderPDF(ctx context.Context, actor domain.Actor, ticketID int64) ([]byte, error) {
	r := s.store.Repositories()
	ticket, err := r.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrTicketNotFound
	}

	event, err := getEvent(ctx, r, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actor.UserID && !actor.CanManage(event.OwnerID) {
		return nil, domain.ErrForbidden
	}
	if !ticket.CanRenderPDF() {
		return nil, &domain.TransitionError{From: string(ticket.Status), To: "downloaded", Reason: "ticket is not available for download yet"}
	}

	doc := render.TicketDocument{
		TicketID:       ticket.ID,
		EventName:      event.Name,
		EventStartsAt:  event.StartsAt,
		Location:       event.Location,
		Email:          ticket.TicketEmail,
		Restrictions:   ticket.Restrictions,
		ValidationCode: *ticket.ValidationCode,
		Price:          ticket.Price,
	}
	if table, err := r.Tables.GetByID(ctx, ticket.TableID); err != nil {
		return nil, err
	} else if table != nil {
		doc.TableName = table.Name
	}
	if doc.BusGo, err = busLeg(ctx, r, ticket.BusGoID); err != nil {
		return nil, err
	}
	if doc.BusCome, err = busLeg(ctx, r, ticket.BusComeID); err != nil {
		return nil, err
	}

	return s.renderer.RenderTicketPDF(doc)
}

func busLeg(ctx context.Context, r *repository.Repositories, busID *int64) (*render.BusLeg, error) {
	if busID == nil {
		return nil, nil
	}
	bus, err := r.Buses.GetByID(ctx, *busID)
	if err != nil || bus == nil {
		return nil, err
	}
	return &render.BusLeg{Location: bus.Location, DepartsAt: bus.DepartsAt}, nil
}
