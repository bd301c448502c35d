package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

const eventColumns = `
	id, owner_id, name, COALESCE(description, ''), COALESCE(location, ''), starts_at,
	COALESCE(image_url, ''), tickets_number, available_tickets, status, price_bus, price_no_bus,
	COALESCE(payment_iban, ''), COALESCE(payment_mbway, ''), COALESCE(payment_name, ''),
	created_at, updated_at`

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	db DBTX
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(db DBTX) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.Name,
		&e.Description,
		&e.Location,
		&e.StartsAt,
		&e.ImageURL,
		&e.TicketsNumber,
		&e.AvailableTickets,
		&e.Status,
		&e.PriceBus,
		&e.PriceNoBus,
		&e.PaymentIBAN,
		&e.PaymentMBWay,
		&e.PaymentName,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}

// Create inserts an event and sets its ID
func (r *PostgresEventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (
			owner_id, name, description, location, starts_at, image_url, tickets_number,
			available_tickets, status, price_bus, price_no_bus, payment_iban, payment_mbway,
			payment_name, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query,
		e.OwnerID,
		e.Name,
		e.Description,
		e.Location,
		e.StartsAt,
		e.ImageURL,
		e.TicketsNumber,
		e.AvailableTickets,
		e.Status,
		e.PriceBus,
		e.PriceNoBus,
		e.PaymentIBAN,
		e.PaymentMBWay,
		e.PaymentName,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&e.ID)
}

// GetByID retrieves an event by ID
func (r *PostgresEventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// GetForUpdate retrieves an event and locks its row until the transaction ends
func (r *PostgresEventRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// ListAvailable lists approved future events with tickets left
func (r *PostgresEventRepository) ListAvailable(ctx context.Context, now time.Time, page, limit int) ([]*domain.Event, int, error) {
	where := `WHERE status = 'approved' AND starts_at > $1 AND available_tickets > 0`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events `+where, now).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events `+where+` ORDER BY starts_at ASC LIMIT $2 OFFSET $3`,
		now, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// ListByOwner lists events created by an organizer
func (r *PostgresEventRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE owner_id = $1 ORDER BY starts_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateStatus moves an event from one moderation status to another
func (r *PostgresEventRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.EventStatus) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateImage stores the cover image URL
func (r *PostgresEventRepository) UpdateImage(ctx context.Context, id int64, url string) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET image_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// DecrementAvailable takes n tickets in one conditional update
func (r *PostgresEventRepository) DecrementAvailable(ctx context.Context, id int64, n int) (int, bool, error) {
	var remaining int
	err := r.db.QueryRow(ctx, `
		UPDATE events
		SET available_tickets = available_tickets - $2, updated_at = NOW()
		WHERE id = $1 AND available_tickets >= $2
		RETURNING available_tickets
	`, id, n).Scan(&remaining)
	if err == nil {
		return remaining, true, nil
	}
	if !isNoRows(err) {
		return 0, false, err
	}

	// Refused: report what is left so the caller can show it
	var current int
	if err := r.db.QueryRow(ctx, `SELECT available_tickets FROM events WHERE id = $1`, id).Scan(&current); err != nil {
		if isNoRows(err) {
			return 0, false, domain.ErrEventNotFound
		}
		return 0, false, err
	}
	return current, false, nil
}

// IncrementAvailable gives n tickets back, capped at tickets_number
func (r *PostgresEventRepository) IncrementAvailable(ctx context.Context, id int64, n int) (int, error) {
	var available int
	err := r.db.QueryRow(ctx, `
		UPDATE events
		SET available_tickets = LEAST(available_tickets + $2, tickets_number), updated_at = NOW()
		WHERE id = $1
		RETURNING available_tickets
	`, id, n).Scan(&available)
	if err != nil {
		if isNoRows(err) {
			return 0, domain.ErrEventNotFound
		}
		return 0, err
	}
	return available, nil
}
