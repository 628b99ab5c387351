package chat

import (
	"sync"

	"go.uber.org/zap"
)

// Subscriber receives chat history snapshots.
type Subscriber struct {
	ID string
	Ch chan []Message
}

// Broker fans chat snapshots out to in-process subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	log         *zap.Logger
}

// NewBroker creates a new chat broker.
func NewBroker(log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		log:         log,
	}
}

// Subscribe registers a receiver under id, replacing any previous one.
func (b *Broker) Subscribe(id string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID: id,
		Ch: make(chan []Message, 4),
	}
	b.subscribers[id] = sub
	return sub
}

// Unsubscribe removes a receiver.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Don't close the channel here: publishers may have already snapshotted
	// subscribers and will send concurrently.
	delete(b.subscribers, id)
}

// Count returns the number of subscribers.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers msgs to every subscriber without blocking. Slow
// subscribers miss the snapshot.
func (b *Broker) Publish(msgs []Message) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	dropped := 0
	for _, sub := range subs {
		snapshot := make([]Message, len(msgs))
		copy(snapshot, msgs)
		select {
		case sub.Ch <- snapshot:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Debug("dropped chat snapshots for slow subscribers", zap.Int("dropped", dropped))
	}
}
