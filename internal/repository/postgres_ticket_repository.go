package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/pkg/database"
)

const ticketColumns = `
	id, order_id, user_id, event_id, table_id, bus_go_id, bus_come_id, ticket_email,
	COALESCE(restrictions, ''), price, status, validation_code, available_for_download,
	sent_at, emailed_at, checked_in_at, checked_out_at, created_at`

// PostgresTicketRepository implements TicketRepository using PostgreSQL
type PostgresTicketRepository struct {
	db DBTX
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(db DBTX) *PostgresTicketRepository {
	return &PostgresTicketRepository{db: db}
}

func scanTicket(row interface{ Scan(...any) error }) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	err := row.Scan(
		&t.ID,
		&t.OrderID,
		&t.UserID,
		&t.EventID,
		&t.TableID,
		&t.BusGoID,
		&t.BusComeID,
		&t.TicketEmail,
		&t.Restrictions,
		&t.Price,
		&t.Status,
		&t.ValidationCode,
		&t.AvailableForDownload,
		&t.SentAt,
		&t.EmailedAt,
		&t.CheckedInAt,
		&t.CheckedOutAt,
		&t.CreatedAt,
	)
	return t, err
}

func (r *PostgresTicketRepository) queryTickets(ctx context.Context, query string, args ...any) ([]*domain.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *PostgresTicketRepository) queryTicket(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// CreateBatch inserts tickets and sets their IDs
func (r *PostgresTicketRepository) CreateBatch(ctx context.Context, tickets []*domain.Ticket) error {
	query := `
		INSERT INTO tickets (
			order_id, user_id, event_id, table_id, bus_go_id, bus_come_id, ticket_email,
			restrictions, price, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(query,
			t.OrderID,
			t.UserID,
			t.EventID,
			t.TableID,
			t.BusGoID,
			t.BusComeID,
			t.TicketEmail,
			t.Restrictions,
			t.Price,
			t.Status,
			t.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for _, t := range tickets {
		if err := results.QueryRow().Scan(&t.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a ticket by ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.queryTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

// GetByCode retrieves a ticket by validation code
func (r *PostgresTicketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	return r.queryTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE validation_code = $1`, code)
}

// ListByOrder lists the tickets of an order
func (r *PostgresTicketRepository) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Ticket, error) {
	return r.queryTickets(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY id`, orderID)
}

// ListConfirmedByEvent lists confirmed tickets of an event
func (r *PostgresTicketRepository) ListConfirmedByEvent(ctx context.Context, eventID int64) ([]*domain.Ticket, error) {
	return r.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE event_id = $1 AND status = 'confirmed' ORDER BY id`, eventID)
}

// CountActiveByBuyer counts a buyer's pending and confirmed tickets for an event
func (r *PostgresTicketRepository) CountActiveByBuyer(ctx context.Context, userID uuid.UUID, eventID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE user_id = $1 AND event_id = $2 AND status IN `+activeTicketStatuses,
		userID, eventID,
	).Scan(&n)
	return n, err
}

// CountByStatus summarizes ticket statuses for an event
func (r *PostgresTicketRepository) CountByStatus(ctx context.Context, eventID int64) (*domain.SalesStats, error) {
	s := &domain.SalesStats{}
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'expired')
		FROM tickets WHERE event_id = $1
	`, eventID).Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Cancelled, &s.Rejected, &s.Expired)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateStatusByOrder moves every ticket of an order to status and returns how many moved
func (r *PostgresTicketRepository) UpdateStatusByOrder(ctx context.Context, orderID int64, status domain.OrderStatus) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET status = $2 WHERE order_id = $1 AND status <> $2`, orderID, status)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// AssignValidationCode sets a code only if the ticket has none
func (r *PostgresTicketRepository) AssignValidationCode(ctx context.Context, ticketID int64, code string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET validation_code = $2 WHERE id = $1 AND validation_code IS NULL`, ticketID, code)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, domain.ErrDuplicateCode
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSent makes the tickets of an order downloadable
func (r *PostgresTicketRepository) MarkSent(ctx context.Context, orderID int64, at time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tickets SET available_for_download = TRUE, sent_at = $2
		WHERE order_id = $1 AND status = 'confirmed'
	`, orderID, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ClaimEmail records delivery of a coded ticket's e-mail unless one is already recorded
func (r *PostgresTicketRepository) ClaimEmail(ctx context.Context, ticketID int64, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tickets SET emailed_at = $2
		WHERE id = $1 AND emailed_at IS NULL AND validation_code IS NOT NULL
	`, ticketID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseEmail drops the claim taken at at, so a failed send can be retried
func (r *PostgresTicketRepository) ReleaseEmail(ctx context.Context, ticketID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE tickets SET emailed_at = NULL WHERE id = $1 AND emailed_at = $2`, ticketID, at)
	return err
}

// MarkCheckedIn checks a confirmed, not yet checked-in ticket in
func (r *PostgresTicketRepository) MarkCheckedIn(ctx context.Context, code string, eventID int64, at time.Time) (*domain.Ticket, error) {
	return r.queryTicket(ctx, `
		UPDATE tickets SET checked_in_at = $3
		WHERE validation_code = $1 AND event_id = $2 AND status = 'confirmed' AND checked_in_at IS NULL
		RETURNING `+ticketColumns, code, eventID, at)
}

// MarkCheckedOut checks a checked-in ticket out
func (r *PostgresTicketRepository) MarkCheckedOut(ctx context.Context, code string, eventID int64, at time.Time) (*domain.Ticket, error) {
	return r.queryTicket(ctx, `
		UPDATE tickets SET checked_out_at = $3
		WHERE validation_code = $1 AND event_id = $2 AND checked_in_at IS NOT NULL AND checked_out_at IS NULL
		RETURNING `+ticketColumns, code, eventID, at)
}
