// Package bus is the in-process event bus decoupling network ingestion
// from reconciliation and outbound dispatch.
//
// Every published event becomes an independently scheduled task per
// subscriber, each with its own recover boundary: one misbehaving handler
// can never take down the bus or starve sibling subscribers. Delivery is
// at-least-once, in-process only, with no persistence.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/logging"
)

// ErrClosed is returned when publishing to a closed bus.
var ErrClosed = errors.New("event bus closed")

// TopicAll subscribes a handler to every topic. Used by observers such as
// the gateway's live event feed.
const TopicAll = "*"

// Event is a single bus message. Payloads are generic JSON trees; handlers
// read them through the payload package.
type Event struct {
	ID      string
	Topic   string
	Payload map[string]any
}

// Handler processes one event. Handlers must not panic; if they do, the
// bus recovers and logs.
type Handler func(ctx context.Context, evt Event)

type namedHandler struct {
	name    string
	handler Handler
}

type task struct {
	evt Event
	h   namedHandler
}

// Bus is a topic-based publish/subscribe bus backed by a task queue.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	queue    chan task
	done     chan struct{}
	closed   atomic.Bool
	log      *logging.Logger
}

// New creates a bus with the given queue depth.
func New(buffer int, log *logging.Logger) *Bus {
	if buffer <= 0 {
		buffer = 100
	}
	return &Bus{
		handlers: make(map[string][]namedHandler),
		queue:    make(chan task, buffer),
		done:     make(chan struct{}),
		log:      log.Sub("bus"),
	}
}

// Subscribe registers a handler for a topic. The name identifies the
// handler in logs. Use TopicAll to observe every event.
func (b *Bus) Subscribe(topic, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], namedHandler{name: name, handler: h})
	b.log.Debug().Str("topic", topic).Str("handler", name).Msg("subscribed")
}

// subscribers returns the handlers for a topic plus the wildcard observers.
func (b *Bus) subscribers(topic string) []namedHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]namedHandler, 0, len(b.handlers[topic])+len(b.handlers[TopicAll]))
	hs = append(hs, b.handlers[topic]...)
	if topic != TopicAll {
		hs = append(hs, b.handlers[TopicAll]...)
	}
	return hs
}

// Publish enqueues one task per subscriber and returns immediately.
// Tasks run on the worker started by Run.
func (b *Bus) Publish(ctx context.Context, topic string, payload map[string]any) error {
	if b.closed.Load() {
		return ErrClosed
	}
	evt := Event{ID: uuid.New().String(), Topic: topic, Payload: payload}
	for _, h := range b.subscribers(topic) {
		select {
		case b.queue <- task{evt: evt, h: h}:
		case <-b.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Dispatch runs all subscribers for the event concurrently and waits for
// them to finish. Webhook handlers use this so an external trigger is fully
// processed before its HTTP response returns.
func (b *Bus) Dispatch(ctx context.Context, topic string, payload map[string]any) Event {
	evt := Event{ID: uuid.New().String(), Topic: topic, Payload: payload}
	var wg sync.WaitGroup
	for _, h := range b.subscribers(topic) {
		wg.Add(1)
		go func(h namedHandler) {
			defer wg.Done()
			b.invoke(ctx, evt, h)
		}(h)
	}
	wg.Wait()
	return evt
}

// Run consumes the queue until the context is cancelled or the bus is
// closed. Each task runs in its own goroutine.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case t := <-b.queue:
			go b.invoke(ctx, t.evt, t.h)
		case <-b.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the bus. Pending queued tasks are dropped.
func (b *Bus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}

func (b *Bus) invoke(ctx context.Context, evt Event, h namedHandler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("topic", evt.Topic).
				Str("handler", h.name).
				Str("event", evt.ID).
				Any("panic", r).
				Msg("handler panicked")
		}
	}()
	h.handler(ctx, evt)
}
