package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

var (
	// ErrNotFound is returned by point reads when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique attribute is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// TicketQuery is the filter of a live ticket subscription. A nil ClientID
// selects every ticket. Results are always ordered by creation time, newest first.
type TicketQuery struct {
	ClientID *string
}

// Matches reports whether ticket belongs to the query result set.
func (q TicketQuery) Matches(ticket *domain.Ticket) bool {
	return q.ClientID == nil || ticket.ClientID == *q.ClientID
}

// TicketPatch describes a partial ticket update. The store stamps UpdatedAt.
type TicketPatch struct {
	Status *domain.TicketStatus
}

// SnapshotFunc receives the full ordered result set on every change.
type SnapshotFunc func(tickets []domain.Ticket)

// ErrorFunc receives subscription failures. A subscription delivers nothing after an error.
type ErrorFunc func(err error)

// SortNewestFirst orders tickets by creation time descending, ties by ID.
func SortNewestFirst(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID > tickets[j].ID
		}
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IdentityRepository stores credentials for session identities.
type IdentityRepository interface {
	Create(ctx context.Context, cred *domain.Credential) error
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
}

// ProfileRepository is the directory of user profiles. Point reads only.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (*domain.UserProfile, error)
	Put(ctx context.Context, profile *domain.UserProfile) error
}

// TicketRepository persists tickets and serves live, ordered result sets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, id string, patch TicketPatch) error
	// Subscribe delivers the current result set once, then again after every
	// change, until the returned cancel func is called or ctx ends. Cancel is
	// idempotent.
	Subscribe(ctx context.Context, query TicketQuery, onData SnapshotFunc, onError ErrorFunc) (func(), error)
}

// TicketHistoryRepository stores status change audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}
