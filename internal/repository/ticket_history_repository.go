package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

const historyColumns = `id, ticket_id, changed_by_id, old_status, new_status, created_at`

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository returns the append-only status log on Postgres.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// Create appends an entry. A ticket_id that does not exist maps to ErrNotFound.
func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, changed_by_id, old_status, new_status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.ChangedByID,
		history.OldStatus,
		history.NewStatus,
	).Scan(&history.ID, &history.CreatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

// ListByTicket returns entries oldest first; never nil.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM ticket_history
        WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	entries, err := pgx.CollectRows(rows, scanHistory)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

func scanHistory(row pgx.CollectableRow) (domain.TicketHistory, error) {
	var (
		entry     domain.TicketHistory
		oldStatus string
		newStatus string
	)
	err := row.Scan(&entry.ID, &entry.TicketID, &entry.ChangedByID, &oldStatus, &newStatus, &entry.CreatedAt)
	entry.OldStatus = domain.TicketStatus(oldStatus)
	entry.NewStatus = domain.TicketStatus(newStatus)
	return entry, err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
