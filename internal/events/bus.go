// Package events provides the synchronous, ordered publish/subscribe bus that
// connects the build orchestrator to aggregation modules.
package events

import (
	"context"
	"reflect"
	"sync"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Bus is a small, typed, in-process event bus.
//
// Handlers run inline on the publishing goroutine in subscription order. Publish
// returns only after every matching handler has returned, and the first handler
// error stops delivery and is returned to the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	id        uint64
	eventType reflect.Type
	handle    func(ctx context.Context, evt any) error
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for events of type T and returns a function that removes it.
//
// If T is an interface, published events whose concrete type implements T will be delivered.
// For concrete T, events are delivered only when the concrete type matches exactly.
func Subscribe[T any](b *Bus, fn func(context.Context, T) error) func() {
	eventType := reflect.TypeFor[T]()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, &subscriber{
		id:        id,
		eventType: eventType,
		handle: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return ferrors.InternalError("event type mismatch").
					WithContext("expected", eventType.String()).
					WithContext("actual", reflect.TypeOf(evt).String()).
					Build()
			}
			return fn(ctx, v)
		},
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// SubscriberCount returns the number of active subscribers for events of type T.
//
// This is primarily intended for tests and diagnostics.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}

	eventType := reflect.TypeFor[T]()

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, s := range b.subs {
		if s.eventType == eventType {
			n++
		}
	}
	return n
}

// Publish delivers evt to all matching subscribers, in subscription order.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}

	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ferrors.InternalError("event bus is closed").Build()
	}
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		match := s.eventType == evtType
		if !match && s.eventType.Kind() == reflect.Interface {
			match = evtType.Implements(s.eventType)
		}
		if match {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := ctx.Err(); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "event publish canceled").
				WithContext("event_type", evtType.String()).
				Build()
		}
		if err := s.handle(ctx, evt); err != nil {
			if ferrors.IsClassified(err) {
				return err
			}
			return ferrors.WrapError(err, ferrors.CategoryModule, "event handler failed").
				WithContext("event_type", evtType.String()).
				Fatal().Build()
		}
	}

	return nil
}

// Close drops all subscriptions; later publishes fail.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
}
