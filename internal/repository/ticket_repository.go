package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// TicketsChannel is the NOTIFY channel fired by the tickets trigger. The
// payload is the client_id of the changed row.
const TicketsChannel = "tickets_changed"

const ticketColumns = `id, title, description, type, status, client_id, client_name, client_email, created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, type, status, client_id, client_name, client_email)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Status,
		ticket.ClientID,
		ticket.ClientName,
		ticket.ClientEmail,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, id string, patch TicketPatch) error {
	if patch.Status == nil {
		return nil
	}
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, *patch.Status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	return &tickets[0], nil
}

// Subscribe holds a dedicated pooled connection that LISTENs on
// TicketsChannel and re-runs the query whenever a relevant row changes.
func (r *ticketRepository) Subscribe(ctx context.Context, query TicketQuery, onData SnapshotFunc, onError ErrorFunc) (func(), error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+TicketsChannel); err != nil {
		conn.Release()
		return nil, err
	}

	feedCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN "+TicketsChannel)
			conn.Release()
		}()
		runTicketFeed(feedCtx, conn.Conn(), query, onData, onError)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func runTicketFeed(ctx context.Context, conn *pgx.Conn, query TicketQuery, onData SnapshotFunc, onError ErrorFunc) {
	deliver := func() bool {
		tickets, err := listTickets(ctx, conn, query)
		if err != nil {
			if ctx.Err() == nil && onError != nil {
				onError(err)
			}
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		onData(tickets)
		return true
	}

	if !deliver() {
		return
	}
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) && onError != nil {
				onError(err)
			}
			return
		}
		if notification.Channel != TicketsChannel {
			continue
		}
		if query.ClientID != nil && notification.Payload != *query.ClientID {
			continue
		}
		if !deliver() {
			return
		}
	}
}

func listTickets(ctx context.Context, conn *pgx.Conn, query TicketQuery) ([]domain.Ticket, error) {
	sql := `SELECT ` + ticketColumns + ` FROM tickets`
	args := []any{}
	if query.ClientID != nil {
		sql += ` WHERE client_id=$1`
		args = append(args, *query.ClientID)
	}
	sql += ` ORDER BY created_at DESC, id DESC`

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Type,
			&ticket.Status,
			&ticket.ClientID,
			&ticket.ClientName,
			&ticket.ClientEmail,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
