package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

const orderColumns = `
	o.id, o.user_id, o.event_id, o.total_amount, o.status, COALESCE(o.payment_proof_url, ''),
	o.payment_submitted_at, o.tickets_sent, o.tickets_sent_at, o.tickets_sent_by,
	o.created_at, o.updated_at`

// PostgresOrderRepository implements OrderRepository using PostgreSQL
type PostgresOrderRepository struct {
	db DBTX
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository
func NewPostgresOrderRepository(db DBTX) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.EventID,
		&o.TotalAmount,
		&o.Status,
		&o.PaymentProofURL,
		&o.PaymentSubmittedAt,
		&o.TicketsSent,
		&o.TicketsSentAt,
		&o.TicketsSentBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func (r *PostgresOrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Create inserts an order and sets its ID
func (r *PostgresOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (user_id, event_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query,
		o.UserID,
		o.EventID,
		o.TotalAmount,
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
	).Scan(&o.ID)
}

// GetByID retrieves an order by ID
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// ListByUser lists a buyer's orders, newest first
func (r *PostgresOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.user_id = $1 ORDER BY o.created_at DESC`, userID)
}

// ListPendingWithProof lists pending orders with a payment proof on events owned by ownerID
func (r *PostgresOrderRepository) ListPendingWithProof(ctx context.Context, ownerID uuid.UUID) ([]*domain.Order, error) {
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN events e ON e.id = o.event_id
		WHERE e.owner_id = $1 AND o.status = 'pending' AND o.payment_proof_url IS NOT NULL
		ORDER BY o.payment_submitted_at ASC
	`, ownerID)
}

// ListExpirable lists pending orders without proof created before cutoff
func (r *PostgresOrderRepository) ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.status = 'pending' AND o.payment_proof_url IS NULL AND o.created_at <= $1
		ORDER BY o.created_at ASC
		LIMIT $2
	`, cutoff, limit)
}

// UpdateStatus applies from->to only if the order is still in from
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetPaymentProof stores the proof URL on a pending order
func (r *PostgresOrderRepository) SetPaymentProof(ctx context.Context, id int64, url string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET payment_proof_url = $2, payment_submitted_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, url, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkTicketsSent flags a confirmed order as delivered
func (r *PostgresOrderRepository) MarkTicketsSent(ctx context.Context, id int64, by uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET tickets_sent = TRUE, tickets_sent_at = $3, tickets_sent_by = $2, updated_at = $3
		WHERE id = $1 AND status = 'confirmed'
	`, id, by, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordTransition appends to the order status history
func (r *PostgresOrderRepository) RecordTransition(ctx context.Context, tr *domain.StatusTransition) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, from_state, to_state, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tr.ID, tr.OrderID, tr.FromState, tr.ToState, tr.Reason, tr.ActorID, tr.CreatedAt)
	return err
}
