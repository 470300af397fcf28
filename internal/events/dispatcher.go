package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans ticket events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns an idempotent function that removes the handler.
	Subscribe(eventType EventType, handler EventHandler) func()
}

type registration struct {
	id      uint64
	handler EventHandler
}

// inMemoryDispatcher calls handlers synchronously, in subscription order.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]registration
	nextID    uint64
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]registration),
	}
}

// Publish invokes every handler for the event type. A failing or panicking
// handler does not stop the others; their errors are joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	regs := append([]registration(nil), d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		if err := invoke(ctx, reg.handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[eventType] = append(d.listeners[eventType], registration{id: id, handler: handler})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			regs := d.listeners[eventType]
			for i, reg := range regs {
				if reg.id == id {
					d.listeners[eventType] = append(regs[:i:i], regs[i+1:]...)
					break
				}
			}
		})
	}
}

func invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s handler panicked: %v", event.Type, r)
		}
	}()
	return handler(ctx, event)
}
