package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/events"
)

// Email is a rendered message to a ticket's client.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer sends rendered emails.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// logMailer records emails in the log instead of sending them.
type logMailer struct {
	logger *zap.Logger
}

func (m logMailer) Send(_ context.Context, email Email) error {
	m.logger.Info("email notification",
		zap.String("from", email.From),
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}

// NotificationService turns ticket events into webhook calls and client emails.
type NotificationService struct {
	logger  *zap.Logger
	cfg     config.NotificationConfig
	webhook *resty.Client
	mailer  Mailer
}

// NewNotificationService creates the service. A nil mailer logs emails.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig, mailer Mailer) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = logMailer{logger: logger}
	}
	client := resty.New().
		SetTimeout(cfg.WebhookTimeout()).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "ticket-tracker-notifier")
	return &NotificationService{
		logger:  logger,
		cfg:     cfg,
		webhook: client,
		mailer:  mailer,
	}
}

// EventTypes lists the events the service reacts to.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{events.EventTicketCreated, events.EventTicketStatusChanged}
}

// Handle delivers one event. Every ticket event goes to the webhook; a status
// change is also mailed to the ticket's client.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	n.logger.Debug("notification", zap.String("event_type", string(event.Type)), zap.String("ticket_id", event.TicketID))

	if err := n.postWebhook(ctx, event); err != nil {
		return err
	}
	if event.Type != events.EventTicketStatusChanged {
		return nil
	}
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return n.mailClient(ctx, payload)
}

func (n *NotificationService) postWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	resp, err := n.webhook.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", string(event.Type)).
		SetBody(event).
		Post(url)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", event.Type, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook %s: status %d", event.Type, resp.StatusCode())
	}
	return nil
}

func (n *NotificationService) mailClient(ctx context.Context, payload events.TicketStatusChangedPayload) error {
	from := strings.TrimSpace(n.cfg.EmailFrom)
	if from == "" || payload.ClientEmail == "" {
		return nil
	}
	return n.mailer.Send(ctx, Email{
		From:    from,
		To:      payload.ClientEmail,
		Subject: fmt.Sprintf("Your ticket %q is now %s", payload.Title, payload.NewStatus),
		Body: fmt.Sprintf("The status of %q changed from %s to %s.",
			payload.Title, payload.OldStatus, payload.NewStatus),
	})
}
