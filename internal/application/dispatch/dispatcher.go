package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// Event is a named workflow transition delivered to subscribers.
type Event struct {
	Name       string
	Entity     entity.Ref
	From       workflow.State
	To         workflow.State
	OccurredAt time.Time
}

// Handler processes a workflow event. Errors are logged, never propagated
// back into the transition that produced the event.
type Handler func(ctx context.Context, evt Event) error

// handlerInfo pairs a handler with a name for debugging and unsubscription.
type handlerInfo struct {
	name    string
	handler Handler
}

// Dispatcher routes workflow events to registered handlers. It implements
// port.Notifier: the state machine hands it events after the state commit and
// delivery runs asynchronously, so a slow or failing subscriber can never
// block or revert a transition.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]handlerInfo
	logger   *zap.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewDispatcher creates an event dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]handlerInfo),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event name with a generated handler
// name.
func (d *Dispatcher) Subscribe(eventName string, handler Handler) {
	d.mu.RLock()
	n := len(d.handlers[eventName])
	d.mu.RUnlock()
	d.SubscribeNamed(eventName, fmt.Sprintf("handler-%d", n), handler)
}

// SubscribeNamed registers a handler under an explicit name.
func (d *Dispatcher) SubscribeNamed(eventName, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventName] = append(d.handlers[eventName], handlerInfo{name: name, handler: handler})
	d.logger.Info("Event handler registered",
		zap.String("event", eventName),
		zap.String("handler", name))
}

// Unsubscribe removes a handler by name.
func (d *Dispatcher) Unsubscribe(eventName, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers := d.handlers[eventName]
	filtered := make([]handlerInfo, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	d.handlers[eventName] = filtered
}

// Notify implements port.Notifier. Delivery is fire-and-forget.
func (d *Dispatcher) Notify(ctx context.Context, ref entity.Ref, event string, from, to workflow.State) {
	d.DispatchAsync(ctx, Event{
		Name:       event,
		Entity:     ref,
		From:       from,
		To:         to,
		OccurredAt: time.Now().UTC(),
	})
}

// Dispatch delivers the event synchronously, stopping at the first handler
// error. Used by tests and by collaborators that need delivery confirmation.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	d.mu.RLock()
	handlers := d.handlers[evt.Name]
	d.mu.RUnlock()

	for _, info := range handlers {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			return fmt.Errorf("handler %s failed: %w", info.name, err)
		}
	}
	return nil
}

// DispatchAsync delivers the event without waiting for handlers. Handler
// failures are logged.
func (d *Dispatcher) DispatchAsync(ctx context.Context, evt Event) {
	if d.closed.Load() {
		d.logger.Warn("Event dropped, dispatcher is closed",
			zap.String("event", evt.Name),
			zap.String("entity", evt.Entity.String()))
		return
	}

	d.mu.RLock()
	handlers := d.handlers[evt.Name]
	d.mu.RUnlock()

	for _, info := range handlers {
		d.wg.Add(1)
		go func(h handlerInfo) {
			defer d.wg.Done()
			if err := d.safeExecute(ctx, evt, h); err != nil {
				d.logger.Error("Async event handler failed",
					zap.String("event", evt.Name),
					zap.String("entity", evt.Entity.String()),
					zap.String("handler", h.name),
					zap.Error(err))
			}
		}(info)
	}
}

// Close stops accepting events and waits for in-flight async handlers.
func (d *Dispatcher) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.wg.Wait()
	return nil
}

// safeExecute runs a handler, converting panics into errors.
func (d *Dispatcher) safeExecute(ctx context.Context, evt Event, info handlerInfo) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler %s panicked: %v", info.name, p)
		}
	}()
	return info.handler(ctx, evt)
}
