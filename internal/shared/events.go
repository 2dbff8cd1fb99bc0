package shared

import (
	"sync"
	"time"
)

// Topic identifies a change-notification stream per entity type.
type Topic string

const (
	// TopicProducts carries product snapshot changes.
	TopicProducts Topic = "products"
	// TopicSales carries sale snapshot changes.
	TopicSales Topic = "sales"
	// TopicInventory carries inventory count snapshot changes.
	TopicInventory Topic = "inventory"
)

// Event is a single change notification.
type Event struct {
	Topic      Topic
	OccurredAt time.Time
	Payload    any
}

const subscriberBuffer = 16

// Bus is an in-process broadcast channel per entity topic. Repositories
// publish after every successful mutation or snapshot refresh; slow
// subscribers lose events rather than blocking the write path.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Event
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan Event)}
}

// Subscribe registers a listener on topic. The returned cancel func must be
// called to release the channel; the channel is closed on cancel.
func (b *Bus) Subscribe(topic Topic) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		listeners := b.subs[topic]
		for i, c := range listeners {
			if c == ch {
				b.subs[topic] = append(listeners[:i], listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers payload to every listener on topic without blocking.
func (b *Bus) Publish(topic Topic, payload any) {
	if b == nil {
		return
	}
	evt := Event{Topic: topic, OccurredAt: time.Now().UTC(), Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}
