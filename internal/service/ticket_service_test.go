package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/errorutil"
)

func TestSubmitTicketRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.SubmitTicket(context.Background(), "Crash", "App crashes", domain.TicketTypeBug)
	requireCode(t, err, apperrors.CodeNotAuthenticated)
}

func TestSubmitTicketValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@example.com", "Alice", domain.RoleClient)
	ctx := context.Background()

	cases := []struct {
		name, title, description string
		ticketType               domain.TicketType
	}{
		{"blank title", "   ", "desc", domain.TicketTypeBug},
		{"blank description", "title", "\n\t", domain.TicketTypeBug},
		{"long title", strings.Repeat("x", 101), "desc", domain.TicketTypeFeature},
		{"unknown type", "title", "desc", domain.TicketType("question")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.SubmitTicket(ctx, tc.title, tc.description, tc.ticketType)
			requireCode(t, err, apperrors.CodeValidation)
		})
	}

	own := &lastList{}
	unsubscribe, err := env.svc.WatchOwnTickets(ctx, own.onData, own.onError)
	require.NoError(t, err)
	defer unsubscribe()
	require.Empty(t, own.latest())
}

func TestSubmitTicketStoresOpenTicket(t *testing.T) {
	env := newTestEnv(t)
	identity := env.register(t, "a@example.com", "Alice", domain.RoleClient)
	ctx := context.Background()

	id, err := env.svc.SubmitTicket(ctx, "  Crash on start  ", " It crashes ", domain.TicketTypeBug)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ticket, err := env.svc.GetTicket(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Crash on start", ticket.Title)
	require.Equal(t, "It crashes", ticket.Description)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, identity.ID, ticket.ClientID)
	require.Equal(t, "Alice", ticket.ClientName)
	require.Equal(t, "a@example.com", ticket.ClientEmail)
	require.Nil(t, ticket.UpdatedAt)
	require.False(t, ticket.CreatedAt.IsZero())
}

func TestSubmitTicketTitleAtLimit(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@example.com", "Alice", domain.RoleClient)

	_, err := env.svc.SubmitTicket(context.Background(), strings.Repeat("é", 100), "desc", domain.TicketTypeFeature)
	require.NoError(t, err)
}

func TestSubmitTicketFallsBackToEmail(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.putErr = errors.New("directory unavailable")
	_, err := env.auth.Register(context.Background(), "nameless@example.com", "secret123", "Nameless", domain.RoleClient)
	requireCode(t, err, apperrors.CodeProfileCreation)

	id, err := env.svc.SubmitTicket(context.Background(), "Title", "Desc", domain.TicketTypeBug)
	require.NoError(t, err)
	ticket, err := env.svc.GetTicket(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "nameless@example.com", ticket.ClientName)
}

func TestSubmitTicketPublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	var got []events.Event
	env.dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, event events.Event) error {
		got = append(got, event)
		return nil
	})
	env.register(t, "a@example.com", "Alice", domain.RoleClient)

	id, err := env.svc.SubmitTicket(context.Background(), "Title", "Desc", domain.TicketTypeFeature)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, id, got[0].TicketID)
	require.NotEmpty(t, got[0].ID)
}

func TestOwnAndAllTicketLists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "a@example.com", "A", domain.RoleClient)
	firstA, err := env.svc.SubmitTicket(ctx, "A1", "first", domain.TicketTypeBug)
	require.NoError(t, err)
	secondA, err := env.svc.SubmitTicket(ctx, "A2", "second", domain.TicketTypeFeature)
	require.NoError(t, err)
	require.NoError(t, env.auth.EndSession(ctx))

	env.register(t, "b@example.com", "B", domain.RoleClient)
	onlyB, err := env.svc.SubmitTicket(ctx, "B1", "only", domain.TicketTypeBug)
	require.NoError(t, err)

	own := &lastList{}
	unsubscribe, err := env.svc.WatchOwnTickets(ctx, own.onData, own.onError)
	require.NoError(t, err)
	defer unsubscribe()
	require.Equal(t, []string{onlyB}, ticketIDs(own.latest()))
	require.NoError(t, env.auth.EndSession(ctx))

	env.register(t, "admin@example.com", "Admin", domain.RoleAdmin)
	all := &lastList{}
	unsubscribeAll, err := env.svc.WatchAllTickets(ctx, all.onData, all.onError)
	require.NoError(t, err)
	defer unsubscribeAll()
	require.Equal(t, []string{onlyB, secondA, firstA}, ticketIDs(all.latest()))
}

func TestStatusChangeReachesClientSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "a@example.com", "A", domain.RoleClient)
	id, err := env.svc.SubmitTicket(ctx, "Broken", "Broken", domain.TicketTypeBug)
	require.NoError(t, err)

	own := &lastList{}
	unsubscribe, err := env.svc.WatchOwnTickets(ctx, own.onData, own.onError)
	require.NoError(t, err)
	defer unsubscribe()
	require.Equal(t, domain.TicketStatusOpen, own.latest()[0].Status)

	require.NoError(t, env.svc.SetTicketStatus(ctx, id, domain.TicketStatusResolved))

	latest := own.latest()
	require.Len(t, latest, 1)
	require.Equal(t, domain.TicketStatusResolved, latest[0].Status)
	require.NotNil(t, latest[0].UpdatedAt)
	require.False(t, latest[0].UpdatedAt.Before(latest[0].CreatedAt))
	require.Empty(t, own.errs)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@example.com", "A", domain.RoleClient)

	own := &lastList{}
	unsubscribe, err := env.svc.WatchOwnTickets(ctx, own.onData, own.onError)
	require.NoError(t, err)
	require.Equal(t, 1, own.deliveries())
	require.Equal(t, 1, env.tickets.Subscribers())

	unsubscribe()
	unsubscribe()
	require.Zero(t, env.tickets.Subscribers())

	_, err = env.svc.SubmitTicket(ctx, "After", "After", domain.TicketTypeBug)
	require.NoError(t, err)
	require.Equal(t, 1, own.deliveries())
}

func TestWatchWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	own := &lastList{}

	unsubscribe, err := env.svc.WatchOwnTickets(context.Background(), own.onData, own.onError)
	requireCode(t, err, apperrors.CodeNotAuthenticated)
	require.Nil(t, unsubscribe)
	require.Len(t, own.errs, 1)

	_, err = env.svc.WatchAllTickets(context.Background(), own.onData, own.onError)
	requireCode(t, err, apperrors.CodeNotAuthenticated)
	require.Zero(t, own.deliveries())
}

func TestSetTicketStatusRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@example.com", "A", domain.RoleClient)
	id, err := env.svc.SubmitTicket(ctx, "T", "D", domain.TicketTypeBug)
	require.NoError(t, err)

	err = env.svc.SetTicketStatus(ctx, id, domain.TicketStatus("archived"))
	requireCode(t, err, apperrors.CodeInvalidStatus)
	require.Equal(t, "Invalid status. Must be one of: open, in-progress, resolved, closed", apperrors.ToDomainError(err).Message)

	ticket, err := env.svc.GetTicket(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Nil(t, ticket.UpdatedAt)

	history, err := env.svc.TicketHistory(ctx, id)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSetTicketStatusRecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@example.com", "A", domain.RoleClient)
	id, err := env.svc.SubmitTicket(ctx, "T", "D", domain.TicketTypeBug)
	require.NoError(t, err)
	require.NoError(t, env.auth.EndSession(ctx))
	admin := env.register(t, "admin@example.com", "Admin", domain.RoleAdmin)

	var changed []events.Event
	env.dispatcher.Subscribe(events.EventTicketStatusChanged, func(_ context.Context, event events.Event) error {
		changed = append(changed, event)
		return nil
	})

	require.NoError(t, env.svc.SetTicketStatus(ctx, id, domain.TicketStatusInProgress))
	require.NoError(t, env.svc.SetTicketStatus(ctx, id, domain.TicketStatusClosed))

	history, err := env.svc.TicketHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.TicketStatusOpen, history[0].OldStatus)
	require.Equal(t, domain.TicketStatusInProgress, history[0].NewStatus)
	require.Equal(t, domain.TicketStatusClosed, history[1].NewStatus)
	require.Equal(t, admin.ID, *history[1].ChangedByID)

	require.Len(t, changed, 2)
	payload, ok := changed[1].Payload.(events.TicketStatusChangedPayload)
	require.True(t, ok)
	require.Equal(t, domain.TicketStatusInProgress, payload.OldStatus)
	require.Equal(t, domain.TicketStatusClosed, payload.NewStatus)
}

func TestSetTicketStatusUnknownTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.svc.SetTicketStatus(ctx, "nope", domain.TicketStatusClosed)
	requireCode(t, err, apperrors.CodeTicketNotFound)

	err = env.svc.SetTicketStatus(ctx, "", domain.TicketStatusClosed)
	requireCode(t, err, apperrors.CodeValidation)

	_, err = env.svc.GetTicket(ctx, "nope")
	requireCode(t, err, apperrors.CodeTicketNotFound)
}

func TestTicketStreamYieldsLatestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env.register(t, "a@example.com", "A", domain.RoleClient)

	stream, err := env.svc.StreamOwnTickets(ctx)
	require.NoError(t, err)
	defer stream.Close()

	_, err = env.svc.SubmitTicket(ctx, "One", "D", domain.TicketTypeBug)
	require.NoError(t, err)
	_, err = env.svc.SubmitTicket(ctx, "Two", "D", domain.TicketTypeBug)
	require.NoError(t, err)

	tickets, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	require.Equal(t, "Two", tickets[0].Title)

	// A snapshot still buffered at Close is not handed out.
	_, err = env.svc.SubmitTicket(ctx, "Three", "D", domain.TicketTypeBug)
	require.NoError(t, err)
	stream.Close()
	stream.Close()
	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, ErrStreamClosed)
	require.Zero(t, env.tickets.Subscribers())
}

func ticketIDs(tickets []domain.Ticket) []string {
	ids := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		ids = append(ids, ticket.ID)
	}
	return ids
}
