package repository

import (
	"context"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

// activeTicketStatuses is the SQL list of statuses that occupy a seat
const activeTicketStatuses = `('pending', 'confirmed')`

// PostgresTableRepository implements TableRepository using PostgreSQL
type PostgresTableRepository struct {
	db DBTX
}

// NewPostgresTableRepository creates a new PostgresTableRepository
func NewPostgresTableRepository(db DBTX) *PostgresTableRepository {
	return &PostgresTableRepository{db: db}
}

// Create inserts a table and sets its ID
func (r *PostgresTableRepository) Create(ctx context.Context, t *domain.Table) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO event_tables (event_id, name, capacity) VALUES ($1, $2, $3) RETURNING id`,
		t.EventID, t.Name, t.Capacity,
	).Scan(&t.ID)
}

// GetByID retrieves a table by ID
func (r *PostgresTableRepository) GetByID(ctx context.Context, id int64) (*domain.Table, error) {
	t := &domain.Table{}
	err := r.db.QueryRow(ctx,
		`SELECT id, event_id, name, capacity FROM event_tables WHERE id = $1`, id,
	).Scan(&t.ID, &t.EventID, &t.Name, &t.Capacity)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// ListByEvent lists the tables of an event with live occupancy
func (r *PostgresTableRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.TableAvailability, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.event_id, t.name, t.capacity, COUNT(tk.id) AS occupied
		FROM event_tables t
		LEFT JOIN tickets tk ON tk.table_id = t.id AND tk.status IN `+activeTicketStatuses+`
		WHERE t.event_id = $1
		GROUP BY t.id
		ORDER BY t.id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []domain.TableAvailability
	for rows.Next() {
		var ta domain.TableAvailability
		if err := rows.Scan(&ta.ID, &ta.EventID, &ta.Name, &ta.Capacity, &ta.Occupied); err != nil {
			return nil, err
		}
		ta.Available = domain.NewAvailability(ta.Capacity, ta.Occupied, 0).SpotsLeft
		tables = append(tables, ta)
	}
	return tables, rows.Err()
}

// CountOccupied counts pending and confirmed tickets seated at a table
func (r *PostgresTableRepository) CountOccupied(ctx context.Context, tableID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE table_id = $1 AND status IN `+activeTicketStatuses, tableID,
	).Scan(&n)
	return n, err
}

// PostgresBusRepository implements BusRepository using PostgreSQL
type PostgresBusRepository struct {
	db DBTX
}

// NewPostgresBusRepository creates a new PostgresBusRepository
func NewPostgresBusRepository(db DBTX) *PostgresBusRepository {
	return &PostgresBusRepository{db: db}
}

// Create inserts a bus and sets its ID
func (r *PostgresBusRepository) Create(ctx context.Context, b *domain.Bus) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO buses (event_id, direction, capacity, location, departs_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, b.EventID, b.Direction, b.Capacity, b.Location, b.DepartsAt).Scan(&b.ID)
}

// GetByID retrieves a bus by ID
func (r *PostgresBusRepository) GetByID(ctx context.Context, id int64) (*domain.Bus, error) {
	b := &domain.Bus{}
	err := r.db.QueryRow(ctx,
		`SELECT id, event_id, direction, capacity, COALESCE(location, ''), departs_at FROM buses WHERE id = $1`, id,
	).Scan(&b.ID, &b.EventID, &b.Direction, &b.Capacity, &b.Location, &b.DepartsAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// ListByEvent lists the buses of an event with occupancy scoped by direction
func (r *PostgresBusRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.BusAvailability, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.event_id, b.direction, b.capacity, COALESCE(b.location, ''), b.departs_at,
		       COUNT(tk.id) AS occupied
		FROM buses b
		LEFT JOIN tickets tk ON tk.status IN `+activeTicketStatuses+` AND (
			(b.direction = 'ida' AND tk.bus_go_id = b.id) OR
			(b.direction = 'volta' AND tk.bus_come_id = b.id)
		)
		WHERE b.event_id = $1
		GROUP BY b.id
		ORDER BY b.direction, b.departs_at
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buses []domain.BusAvailability
	for rows.Next() {
		var ba domain.BusAvailability
		if err := rows.Scan(&ba.ID, &ba.EventID, &ba.Direction, &ba.Capacity, &ba.Location, &ba.DepartsAt, &ba.Occupied); err != nil {
			return nil, err
		}
		ba.Available = domain.NewAvailability(ba.Capacity, ba.Occupied, 0).SpotsLeft
		buses = append(buses, ba)
	}
	return buses, rows.Err()
}

// CountOccupied counts pending and confirmed tickets riding a bus in one direction
func (r *PostgresBusRepository) CountOccupied(ctx context.Context, busID int64, direction domain.BusDirection) (int, error) {
	column := "bus_go_id"
	if direction == domain.BusReturn {
		column = "bus_come_id"
	}
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE `+column+` = $1 AND status IN `+activeTicketStatuses, busID,
	).Scan(&n)
	return n, err
}
