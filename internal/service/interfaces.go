package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
)

// LedgerService defines the capacity ledger
type LedgerService interface {
	// CheckAvailability answers whether requested units of a resource can be reserved
	CheckAvailability(ctx context.Context, kind domain.ResourceKind, resourceID int64, requested int) (*domain.Availability, error)
	// CommitReservation takes n tickets from an event or fails with a CapacityError
	CommitReservation(ctx context.Context, eventID int64, n int) (int, error)
	// ReleaseReservation gives n tickets back to an event
	ReleaseReservation(ctx context.Context, eventID int64, n int) (int, error)
}

// OrderService defines the order lifecycle
type OrderService interface {
	// CreateOrder places a pending order and reserves its tickets atomically
	CreateOrder(ctx context.Context, buyer domain.Actor, req *dto.CreateOrderRequest) (*domain.Order, error)
	// GetOrder returns an order with its tickets to its buyer or the event's managers
	GetOrder(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error)
	// ListMyOrders lists the caller's orders
	ListMyOrders(ctx context.Context, buyer domain.Actor) ([]*domain.Order, error)
	// ListPendingForOwner lists pending orders with payment proof on the caller's events
	ListPendingForOwner(ctx context.Context, owner domain.Actor) ([]*domain.Order, error)
	// ConfirmOrder accepts a pending order
	ConfirmOrder(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error)
	// RejectOrder refuses a pending order and releases its tickets
	RejectOrder(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error)
	// CancelOrder lets the buyer withdraw a pending order
	CancelOrder(ctx context.Context, buyer domain.Actor, orderID int64) (*domain.Order, error)
	// ExpireOrder expires a pending order
	ExpireOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	// ExpireStale expires pending orders without proof created before cutoff
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
	// SubmitPaymentProof uploads the buyer's payment proof
	SubmitPaymentProof(ctx context.Context, buyer domain.Actor, orderID int64, filename string, r io.Reader) (*domain.Order, error)
	// SendOrderTickets makes the tickets of a confirmed order downloadable
	SendOrderTickets(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error)
	// ConfirmAndSend confirms an order, issues codes and e-mails the tickets
	ConfirmAndSend(ctx context.Context, actor domain.Actor, orderID int64) (*dto.SendResult, error)
}

// TicketService defines validation code issuance and ticket delivery
type TicketService interface {
	// IssueCodes assigns validation codes to the uncoded tickets of a confirmed order
	IssueCodes(ctx context.Context, orderID int64) ([]*domain.Ticket, error)
	// EmailTickets sends one e-mail per undelivered ticket and collects failures
	EmailTickets(ctx context.Context, tickets []*domain.Ticket) *dto.SendResult
	// EmailPending e-mails every coded ticket of an order whose delivery is not recorded
	EmailPending(ctx context.Context, orderID int64) (*dto.SendResult, error)
	// RenderPDF renders a downloadable ticket for its buyer or the event's managers
	RenderPDF(ctx context.Context, actor domain.Actor, ticketID int64) ([]byte, error)
}

// CheckinService defines the door scanning engine
type CheckinService interface {
	// Scan checks a ticket in, out, or reports its bus details
	Scan(ctx context.Context, code string, cred domain.StaffCredential, direction domain.ScanDirection) (*dto.ScanResult, error)
	// Stats summarizes check-in activity for an event's managers
	Stats(ctx context.Context, actor domain.Actor, eventID int64) (*domain.CheckStats, error)
	// StaffStats summarizes check-in activity for the credential's event
	StaffStats(ctx context.Context, cred domain.StaffCredential) (*domain.CheckStats, error)
	// ListActions lists the latest door scans of an event
	ListActions(ctx context.Context, actor domain.Actor, eventID int64) ([]*domain.StaffAction, error)
	// ListAttendees lists confirmed tickets of an event
	ListAttendees(ctx context.Context, actor domain.Actor, eventID int64) ([]*dto.Attendee, error)
}

// StaffAccessService defines the staff access credential manager
type StaffAccessService interface {
	// Issue creates a new staff code for an event
	Issue(ctx context.Context, actor domain.Actor, eventID int64, holderName string) (*domain.StaffCodeView, error)
	// ListByEvent lists the staff codes of an event with their validity
	ListByEvent(ctx context.Context, actor domain.Actor, eventID int64) ([]*domain.StaffCodeView, error)
	// Validate checks a staff code and returns the credential it grants
	Validate(ctx context.Context, code string) (*domain.StaffCredential, error)
	// OpenSession validates a code and opens a scan session
	OpenSession(ctx context.Context, code string) (*dto.StaffSessionResponse, error)
	// ResolveSession returns the credential bound to a session token
	ResolveSession(ctx context.Context, token string) (*domain.StaffCredential, error)
	// Deactivate disables a code
	Deactivate(ctx context.Context, actor domain.Actor, codeID int64) error
	// Reactivate enables a code again
	Reactivate(ctx context.Context, actor domain.Actor, codeID int64) error
	// Delete permanently removes a code
	Delete(ctx context.Context, actor domain.Actor, codeID int64) error
}

// EventService defines the event catalogue
type EventService interface {
	// CreateEvent creates a pending event with its tables and buses
	CreateEvent(ctx context.Context, owner domain.Actor, req *dto.CreateEventRequest) (*dto.EventDetail, error)
	// GetEvent returns an event with live table and bus availability
	GetEvent(ctx context.Context, eventID int64) (*dto.EventDetail, error)
	// ListAvailable lists events currently on sale
	ListAvailable(ctx context.Context, query *dto.ListEventsQuery) ([]*domain.Event, int, error)
	// ListMine lists the caller's events
	ListMine(ctx context.Context, owner domain.Actor) ([]*domain.Event, error)
	// Approve publishes a pending event
	Approve(ctx context.Context, admin domain.Actor, eventID int64) (*domain.Event, error)
	// Reject refuses a pending event
	Reject(ctx context.Context, admin domain.Actor, eventID int64) (*domain.Event, error)
	// Stats summarizes ticket sales of an event
	Stats(ctx context.Context, actor domain.Actor, eventID int64) (*domain.SalesStats, error)
	// UploadImage stores the event cover image
	UploadImage(ctx context.Context, actor domain.Actor, eventID int64, filename string, r io.Reader) (*domain.Event, error)
}

// Clock returns the current time; tests replace it
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

func actorID(a domain.Actor) *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
