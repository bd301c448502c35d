package repository

import (
	"context"
	"time"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/pkg/database"
)

// PostgresStaffCodeRepository implements StaffCodeRepository using PostgreSQL
type PostgresStaffCodeRepository struct {
	db DBTX
}

// NewPostgresStaffCodeRepository creates a new PostgresStaffCodeRepository
func NewPostgresStaffCodeRepository(db DBTX) *PostgresStaffCodeRepository {
	return &PostgresStaffCodeRepository{db: db}
}

const staffCodeColumns = `id, event_id, code, name, is_active, created_at, last_used_at`

func scanStaffCode(row interface{ Scan(...any) error }) (*domain.StaffAccessCode, error) {
	c := &domain.StaffAccessCode{}
	err := row.Scan(&c.ID, &c.EventID, &c.Code, &c.Name, &c.IsActive, &c.CreatedAt, &c.LastUsedAt)
	return c, err
}

// Create inserts a code and relies on the unique index to reject collisions
func (r *PostgresStaffCodeRepository) Create(ctx context.Context, c *domain.StaffAccessCode) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO staff_access_codes (event_id, code, name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.EventID, c.Code, c.Name, c.IsActive, c.CreatedAt).Scan(&c.ID)
	if database.IsUniqueViolation(err) {
		return domain.ErrDuplicateCode
	}
	return err
}

// GetByID retrieves a code by ID
func (r *PostgresStaffCodeRepository) GetByID(ctx context.Context, id int64) (*domain.StaffAccessCode, error) {
	c, err := scanStaffCode(r.db.QueryRow(ctx,
		`SELECT `+staffCodeColumns+` FROM staff_access_codes WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// GetByCode retrieves a code by its value
func (r *PostgresStaffCodeRepository) GetByCode(ctx context.Context, code string) (*domain.StaffAccessCode, error) {
	c, err := scanStaffCode(r.db.QueryRow(ctx,
		`SELECT `+staffCodeColumns+` FROM staff_access_codes WHERE code = $1`, code))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListByEvent lists the codes of an event, newest first
func (r *PostgresStaffCodeRepository) ListByEvent(ctx context.Context, eventID int64) ([]*domain.StaffAccessCode, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+staffCodeColumns+` FROM staff_access_codes WHERE event_id = $1 ORDER BY created_at DESC, id DESC`,
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*domain.StaffAccessCode
	for rows.Next() {
		c, err := scanStaffCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// SetActive activates or deactivates a code
func (r *PostgresStaffCodeRepository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE staff_access_codes SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TouchLastUsed stores the time of the last successful validation
func (r *PostgresStaffCodeRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE staff_access_codes SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

// Delete permanently removes a code
func (r *PostgresStaffCodeRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM staff_access_codes WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// PostgresStaffActionRepository implements StaffActionRepository using PostgreSQL
type PostgresStaffActionRepository struct {
	db DBTX
}

// NewPostgresStaffActionRepository creates a new PostgresStaffActionRepository
func NewPostgresStaffActionRepository(db DBTX) *PostgresStaffActionRepository {
	return &PostgresStaffActionRepository{db: db}
}

// Create appends an action and sets its ID
func (r *PostgresStaffActionRepository) Create(ctx context.Context, a *domain.StaffAction) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO staff_actions (access_code_id, ticket_id, event_id, action, staff_name, ticket_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, a.AccessCodeID, a.TicketID, a.EventID, a.Action, a.StaffName, a.TicketEmail, a.CreatedAt).Scan(&a.ID)
}

// ListByEvent lists the latest actions of an event
func (r *PostgresStaffActionRepository) ListByEvent(ctx context.Context, eventID int64, limit int) ([]*domain.StaffAction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(access_code_id, 0), ticket_id, event_id, action, staff_name, ticket_email, created_at
		FROM staff_actions
		WHERE event_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*domain.StaffAction
	for rows.Next() {
		a := &domain.StaffAction{}
		if err := rows.Scan(&a.ID, &a.AccessCodeID, &a.TicketID, &a.EventID, &a.Action,
			&a.StaffName, &a.TicketEmail, &a.CreatedAt); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
