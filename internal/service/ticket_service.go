package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/errorutil"
)

// Unsubscribe cancels a live subscription. Calling it again is a no-op.
type Unsubscribe func()

// TicketsHandler receives the full, newest-first ticket list on every change.
type TicketsHandler func(tickets []domain.Ticket)

// ErrorHandler receives normalized subscription errors.
type ErrorHandler func(err error)

// TicketService coordinates ticket workflows.
type TicketService struct {
	session    IdentitySource
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	profiles   repository.ProfileRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	Session     IdentitySource
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	ProfileRepo repository.ProfileRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		session:    deps.Session,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		profiles:   deps.ProfileRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// SubmitTicket files a new open ticket for the signed-in identity and returns its ID.
func (s *TicketService) SubmitTicket(ctx context.Context, title, description string, ticketType domain.TicketType) (string, error) {
	identity := s.session.Current()
	if identity == nil {
		return "", apperrors.NewNotAuthenticated()
	}

	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return "", apperrors.NewValidationError("Title and description are required", nil)
	}
	if utf8.RuneCountInString(title) > domain.MaxTitleLength {
		return "", apperrors.NewValidationError("Title must not exceed 100 characters", map[string]any{"max": domain.MaxTitleLength})
	}
	if !ticketType.Valid() {
		return "", apperrors.NewValidationError("Type must be bug or feature", map[string]any{"type": ticketType})
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Type:        ticketType,
		Status:      domain.TicketStatusOpen,
		ClientID:    identity.ID,
		ClientName:  s.displayName(ctx, identity),
		ClientEmail: identity.Email,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return "", apperrors.NewInternal("Failed to create ticket", err)
	}

	s.publishEvent(ctx, events.NewTicketCreated(*ticket))
	return ticket.ID, nil
}

// displayName never fails: a missing profile or name falls back to the email.
func (s *TicketService) displayName(ctx context.Context, identity *domain.Identity) string {
	if s.profiles == nil {
		return identity.Email
	}
	profile, err := s.profiles.Get(ctx, identity.ID)
	if err != nil {
		s.logger.Warn("profile lookup failed, using email as name",
			zap.String("identity_id", identity.ID), zap.Error(err))
		return identity.Email
	}
	if strings.TrimSpace(profile.Name) == "" {
		return identity.Email
	}
	return profile.Name
}

// WatchOwnTickets subscribes to the signed-in identity's tickets.
func (s *TicketService) WatchOwnTickets(ctx context.Context, onData TicketsHandler, onError ErrorHandler) (Unsubscribe, error) {
	identity := s.session.Current()
	if identity == nil {
		err := apperrors.NewNotAuthenticated()
		if onError != nil {
			onError(err)
		}
		return nil, err
	}
	clientID := identity.ID
	return s.watch(ctx, repository.TicketQuery{ClientID: &clientID}, onData, onError)
}

// WatchAllTickets subscribes to every ticket. Admin screens only; the
// router gate decides who reaches it.
func (s *TicketService) WatchAllTickets(ctx context.Context, onData TicketsHandler, onError ErrorHandler) (Unsubscribe, error) {
	if s.session.Current() == nil {
		err := apperrors.NewNotAuthenticated()
		if onError != nil {
			onError(err)
		}
		return nil, err
	}
	return s.watch(ctx, repository.TicketQuery{}, onData, onError)
}

func (s *TicketService) watch(ctx context.Context, query repository.TicketQuery, onData TicketsHandler, onError ErrorHandler) (Unsubscribe, error) {
	if onData == nil {
		return nil, apperrors.NewValidationError("A data handler is required", nil)
	}

	var closed atomic.Bool
	deliver := func(tickets []domain.Ticket) {
		if closed.Load() {
			return
		}
		onData(tickets)
	}
	fail := func(err error) {
		if closed.Load() {
			return
		}
		s.logger.Warn("ticket subscription failed", zap.Error(err))
		if onError != nil {
			onError(apperrors.NewInternal("Failed to load tickets", err))
		}
	}

	cancel, err := s.tickets.Subscribe(ctx, query, deliver, fail)
	if err != nil {
		normalized := apperrors.NewInternal("Failed to load tickets", err)
		if onError != nil {
			onError(normalized)
		}
		return nil, normalized
	}
	s.metrics.SubscriptionOpened()

	var once sync.Once
	return func() {
		once.Do(func() {
			closed.Store(true)
			cancel()
			s.metrics.SubscriptionClosed()
		})
	}, nil
}

// SetTicketStatus moves a ticket to status and stamps the update time.
func (s *TicketService) SetTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return apperrors.NewValidationError("Ticket ID is required", nil)
	}
	if !status.Valid() {
		return apperrors.NewInvalidStatus(statusNames())
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return ticketLookupError(ticketID, err)
	}
	if err := s.tickets.Update(ctx, ticketID, repository.TicketPatch{Status: &status}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewTicketNotFound(ticketID)
		}
		return apperrors.NewInternal("Failed to update ticket status", err)
	}

	var actorID string
	if identity := s.session.Current(); identity != nil {
		actorID = identity.ID
	}
	s.recordStatusChange(ctx, ticket, status, actorID)
	s.publishEvent(ctx, events.NewTicketStatusChanged(*ticket, status, actorID))
	return nil
}

// GetTicket is a point lookup.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.NewValidationError("Ticket ID is required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketLookupError(ticketID, err)
	}
	return ticket, nil
}

// TicketHistory lists status changes of a ticket, oldest first.
func (s *TicketService) TicketHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		return nil, apperrors.NewInternal("Failed to load ticket history", err)
	}
	return entries, nil
}

func (s *TicketService) recordStatusChange(ctx context.Context, ticket *domain.Ticket, newStatus domain.TicketStatus, actorID string) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticket.ID,
		ChangedByID: optionalID(actorID),
		OldStatus:   ticket.Status,
		NewStatus:   newStatus,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record status change", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func ticketLookupError(ticketID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewTicketNotFound(ticketID)
	}
	return apperrors.NewInternal("Failed to load ticket", err)
}

func statusNames() []string {
	names := make([]string, 0, len(domain.TicketStatuses))
	for _, status := range domain.TicketStatuses {
		names = append(names, string(status))
	}
	return names
}
