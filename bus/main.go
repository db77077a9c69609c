// Package bus provides the in-process publish/subscribe mechanism that
// decouples the notification transport from the store and any other
// interested consumer. Publishing is synchronous and unbuffered: a payload
// published on a channel with no subscribers is dropped.
package bus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("package", "bus")

// ChannelNewNotification is the channel on which the transport publishes every
// decoded inbound notification.
const ChannelNewNotification = "new-notification"

// Handler handles a single published payload.
type Handler func(payload interface{})

// subscription pairs a handler with its registration order so that handlers
// can be invoked in the order they were registered.
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a registry of handlers keyed by channel name. It is safe for
// concurrent use.
type Bus struct {
	mu         sync.Mutex
	nextID     uint64
	handlerFor map[string][]subscription
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		handlerFor: make(map[string][]subscription),
	}
}

// Subscribe registers a handler for a channel and returns a function that
// removes exactly that registration. Calling the returned function more than
// once is a no-op after the first call.
func (b *Bus) Subscribe(channel string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlerFor[channel] = append(b.handlerFor[channel], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(channel, id)
		})
	}
}

// unsubscribe removes the registration with the given ID from a channel.
func (b *Bus) unsubscribe(channel string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscriptions := b.handlerFor[channel]
	for i, subscription := range subscriptions {
		if subscription.id == id {
			b.handlerFor[channel] = append(subscriptions[:i:i], subscriptions[i+1:]...)
			return
		}
	}
}

// Publish synchronously invokes every handler currently registered for the
// channel, in registration order. A panicking handler is logged and skipped so
// that it can't prevent the remaining handlers from running.
func (b *Bus) Publish(channel string, payload interface{}) {
	// Snapshot the subscriptions so handlers can subscribe or unsubscribe
	// without deadlocking against the registry lock.
	b.mu.Lock()
	subscriptions := make([]subscription, len(b.handlerFor[channel]))
	copy(subscriptions, b.handlerFor[channel])
	b.mu.Unlock()

	for _, subscription := range subscriptions {
		b.invoke(channel, subscription.handler, payload)
	}
}

// invoke runs a single handler, recovering from a panic so the publish loop
// can continue with the remaining handlers.
func (b *Bus) invoke(channel string, handler Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("handler for channel %s panicked: %v", channel, r)
		}
	}()
	handler(payload)
}
