package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

// EventRepository defines the interface for event data access
type EventRepository interface {
	// Create inserts an event and sets its ID
	Create(ctx context.Context, event *domain.Event) error
	// GetByID retrieves an event by ID
	GetByID(ctx context.Context, id int64) (*domain.Event, error)
	// GetForUpdate retrieves an event and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, id int64) (*domain.Event, error)
	// ListAvailable lists approved future events with tickets left
	ListAvailable(ctx context.Context, now time.Time, page, limit int) ([]*domain.Event, int, error)
	// ListByOwner lists events created by an organizer
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Event, error)
	// UpdateStatus moves an event from one moderation status to another
	UpdateStatus(ctx context.Context, id int64, from, to domain.EventStatus) (bool, error)
	// UpdateImage stores the cover image URL
	UpdateImage(ctx context.Context, id int64, url string) error
	// DecrementAvailable takes n tickets if at least n are left.
	// It returns the remaining count, or the current count when refused.
	DecrementAvailable(ctx context.Context, id int64, n int) (remaining int, ok bool, err error)
	// IncrementAvailable gives n tickets back, capped at tickets_number
	IncrementAvailable(ctx context.Context, id int64, n int) (int, error)
}

// TableRepository defines the interface for table data access
type TableRepository interface {
	// Create inserts a table and sets its ID
	Create(ctx context.Context, table *domain.Table) error
	// GetByID retrieves a table by ID
	GetByID(ctx context.Context, id int64) (*domain.Table, error)
	// ListByEvent lists the tables of an event with live occupancy
	ListByEvent(ctx context.Context, eventID int64) ([]domain.TableAvailability, error)
	// CountOccupied counts pending and confirmed tickets seated at a table
	CountOccupied(ctx context.Context, tableID int64) (int, error)
}

// BusRepository defines the interface for shuttle bus data access
type BusRepository interface {
	// Create inserts a bus and sets its ID
	Create(ctx context.Context, bus *domain.Bus) error
	// GetByID retrieves a bus by ID
	GetByID(ctx context.Context, id int64) (*domain.Bus, error)
	// ListByEvent lists the buses of an event with live occupancy
	ListByEvent(ctx context.Context, eventID int64) ([]domain.BusAvailability, error)
	// CountOccupied counts pending and confirmed tickets riding a bus
	CountOccupied(ctx context.Context, busID int64, direction domain.BusDirection) (int, error)
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Create inserts an order and sets its ID
	Create(ctx context.Context, order *domain.Order) error
	// GetByID retrieves an order by ID
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// ListByUser lists a buyer's orders, newest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	// ListPendingWithProof lists pending orders with a payment proof on events owned by ownerID
	ListPendingWithProof(ctx context.Context, ownerID uuid.UUID) ([]*domain.Order, error)
	// ListExpirable lists pending orders without proof created before cutoff
	ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)
	// UpdateStatus applies from->to only if the order is still in from
	UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus, at time.Time) (bool, error)
	// SetPaymentProof stores the proof URL on a pending order
	SetPaymentProof(ctx context.Context, id int64, url string, at time.Time) (bool, error)
	// MarkTicketsSent flags a confirmed order as delivered
	MarkTicketsSent(ctx context.Context, id int64, by uuid.UUID, at time.Time) (bool, error)
	// RecordTransition appends to the order status history
	RecordTransition(ctx context.Context, tr *domain.StatusTransition) error
}

// TicketRepository defines the interface for ticket data access
type TicketRepository interface {
	// CreateBatch inserts tickets and sets their IDs
	CreateBatch(ctx context.Context, tickets []*domain.Ticket) error
	// GetByID retrieves a ticket by ID
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetByCode retrieves a ticket by validation code
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	// ListByOrder lists the tickets of an order
	ListByOrder(ctx context.Context, orderID int64) ([]*domain.Ticket, error)
	// ListConfirmedByEvent lists confirmed tickets of an event
	ListConfirmedByEvent(ctx context.Context, eventID int64) ([]*domain.Ticket, error)
	// CountActiveByBuyer counts a buyer's pending and confirmed tickets for an event
	CountActiveByBuyer(ctx context.Context, userID uuid.UUID, eventID int64) (int, error)
	// CountByStatus summarizes ticket statuses for an event
	CountByStatus(ctx context.Context, eventID int64) (*domain.SalesStats, error)
	// UpdateStatusByOrder moves every ticket of an order to status and returns how many moved
	UpdateStatusByOrder(ctx context.Context, orderID int64, status domain.OrderStatus) (int, error)
	// AssignValidationCode sets a code only if the ticket has none.
	// Returns domain.ErrDuplicateCode if the code is taken.
	AssignValidationCode(ctx context.Context, ticketID int64, code string) (bool, error)
	// MarkSent makes the tickets of an order downloadable
	MarkSent(ctx context.Context, orderID int64, at time.Time) (int, error)
	// ClaimEmail sets emailed_at on a coded ticket that has none; false when already claimed
	ClaimEmail(ctx context.Context, ticketID int64, at time.Time) (bool, error)
	// ReleaseEmail clears a claim made at at
	ReleaseEmail(ctx context.Context, ticketID int64, at time.Time) error
	// MarkCheckedIn checks a confirmed, not yet checked-in ticket in; nil when the precondition fails
	MarkCheckedIn(ctx context.Context, code string, eventID int64, at time.Time) (*domain.Ticket, error)
	// MarkCheckedOut checks a checked-in ticket out; nil when the precondition fails
	MarkCheckedOut(ctx context.Context, code string, eventID int64, at time.Time) (*domain.Ticket, error)
}

// StaffCodeRepository defines the interface for staff access code data access
type StaffCodeRepository interface {
	// Create inserts a code; returns domain.ErrDuplicateCode on collision
	Create(ctx context.Context, code *domain.StaffAccessCode) error
	// GetByID retrieves a code by ID
	GetByID(ctx context.Context, id int64) (*domain.StaffAccessCode, error)
	// GetByCode retrieves a code by its value
	GetByCode(ctx context.Context, code string) (*domain.StaffAccessCode, error)
	// ListByEvent lists the codes of an event, newest first
	ListByEvent(ctx context.Context, eventID int64) ([]*domain.StaffAccessCode, error)
	// SetActive activates or deactivates a code
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
	// TouchLastUsed stores the time of the last successful validation
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
	// Delete permanently removes a code
	Delete(ctx context.Context, id int64) (bool, error)
}

// StaffActionRepository defines the interface for the door activity log
type StaffActionRepository interface {
	// Create appends an action and sets its ID
	Create(ctx context.Context, action *domain.StaffAction) error
	// ListByEvent lists the latest actions of an event
	ListByEvent(ctx context.Context, eventID int64, limit int) ([]*domain.StaffAction, error)
}

// Repositories groups every repository bound to one connection or transaction
type Repositories struct {
	Events       EventRepository
	Tables       TableRepository
	Buses        BusRepository
	Orders       OrderRepository
	Tickets      TicketRepository
	StaffCodes   StaffCodeRepository
	StaffActions StaffActionRepository
}

// Store hands out repositories and runs units of work atomically
type Store interface {
	// Repositories returns repositories outside any transaction
	Repositories() *Repositories
	// WithTx runs fn in one transaction; an error from fn rolls everything back
	WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error
}
