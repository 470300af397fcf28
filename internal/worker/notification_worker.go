// Package worker runs background consumers of ticket events.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/events"
)

const defaultQueueSize = 64

// EventConsumer handles the events it lists.
type EventConsumer interface {
	EventTypes() []events.EventType
	Handle(ctx context.Context, event events.Event) error
}

// NotificationWorker moves event handling off the publishing goroutine.
// Events are queued on publish and handled one at a time; when the queue is
// full new events are dropped and logged.
type NotificationWorker struct {
	dispatcher events.Dispatcher
	consumer   EventConsumer
	logger     *zap.Logger

	mu          sync.Mutex
	queue       chan events.Event
	started     bool
	closed      bool
	unsubscribe []func()
	done        chan struct{}
}

// NewNotificationWorker builds a stopped worker.
func NewNotificationWorker(dispatcher events.Dispatcher, consumer EventConsumer, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		dispatcher: dispatcher,
		consumer:   consumer,
		logger:     logger,
		queue:      make(chan events.Event, queueSize),
		done:       make(chan struct{}),
	}
}

// Start subscribes to the consumer's events and drains the queue until Stop.
// Handlers run with ctx.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	for _, eventType := range w.consumer.EventTypes() {
		w.unsubscribe = append(w.unsubscribe, w.dispatcher.Subscribe(eventType, w.enqueue))
	}
	go w.run(ctx)
}

// Stop unsubscribes, handles what is already queued and returns.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	started := w.started
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	close(w.queue)
	w.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	if started {
		<-w.done
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
	}
	return nil
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer close(w.done)
	for event := range w.queue {
		if err := w.consumer.Handle(ctx, event); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}
