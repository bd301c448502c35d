package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
	repo *Repositories
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, repo: newPostgresRepositories(pool)}
}

func newPostgresRepositories(db DBTX) *Repositories {
	return &Repositories{
		Events:       NewPostgresEventRepository(db),
		Tables:       NewPostgresTableRepository(db),
		Buses:        NewPostgresBusRepository(db),
		Orders:       NewPostgresOrderRepository(db),
		Tickets:      NewPostgresTicketRepository(db),
		StaffCodes:   NewPostgresStaffCodeRepository(db),
		StaffActions: NewPostgresStaffActionRepository(db),
	}
}

// Repositories returns repositories bound to the pool
func (s *PostgresStore) Repositories() *Repositories {
	return s.repo
}

// WithTx runs fn inside a READ COMMITTED transaction
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, newPostgresRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

var (
	_ Store                 = (*PostgresStore)(nil)
	_ EventRepository       = (*PostgresEventRepository)(nil)
	_ TableRepository       = (*PostgresTableRepository)(nil)
	_ BusRepository         = (*PostgresBusRepository)(nil)
	_ OrderRepository       = (*PostgresOrderRepository)(nil)
	_ TicketRepository      = (*PostgresTicketRepository)(nil)
	_ StaffCodeRepository   = (*PostgresStaffCodeRepository)(nil)
	_ StaffActionRepository = (*PostgresStaffActionRepository)(nil)
)
