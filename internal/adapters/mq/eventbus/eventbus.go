// Package eventbus is the in-process publish/subscribe bus that carries
// state changes (session, playground) to whoever is interested.
//
// Handlers run synchronously on the publisher's goroutine in subscription
// order. Stream offers a buffered channel view for consumers that prefer to
// select on events; a full stream drops the event rather than block.
package eventbus

import (
	"context"
	"sync"

	"github.com/okian/flames/pkg/metrics"
)

const defaultBufferSize = 16

// Topics published by flames components.
const (
	TopicSession    = "session"
	TopicPlayground = "playground"
)

// Event is one message on the bus.
type Event struct {
	Topic   string
	Payload interface{}
}

// Handler consumes events of one topic.
type Handler func(ctx context.Context, e Event)

// Bus provides topic-based publish and subscribe.
type Bus interface {
	// Publish delivers e to every subscriber of e.Topic.
	// Returns ErrClosed if the bus has been closed.
	Publish(ctx context.Context, e Event) error

	// Subscribe registers h for topic. The returned func removes it and is
	// safe to call more than once.
	Subscribe(topic string, h Handler) (unsubscribe func())

	// Stream returns a channel fed with events of topic until ctx is done
	// or the bus is closed.
	Stream(ctx context.Context, topic string) <-chan Event

	// Close stops delivery. Further publishes are dropped.
	Close() error

	// IsClosed returns true if the bus has been closed.
	IsClosed() bool
}

type subscription struct {
	id      uint64
	handler Handler
}

// InMemoryBus implements Bus with a mutex-guarded subscriber table.
type InMemoryBus struct {
	bufferSize int

	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	closed bool
	done   chan struct{}
}

// New creates an empty bus.
func New(opts ...Option) *InMemoryBus {
	b := &InMemoryBus{
		bufferSize: defaultBufferSize,
		subs:       make(map[string][]subscription),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	metrics.UpdateBusSubscribers(0)
	return b
}

// Publish delivers e to the current subscribers of its topic.
func (b *InMemoryBus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		metrics.RecordBusDropped(e.Topic)
		return ErrClosed
	}
	// Snapshot so handlers may subscribe or unsubscribe while running.
	handlers := make([]Handler, 0, len(b.subs[e.Topic]))
	for _, s := range b.subs[e.Topic] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	metrics.RecordBusPublish(e.Topic)
	for _, h := range handlers {
		h(ctx, e)
	}
	return nil
}

// Subscribe registers h for topic.
func (b *InMemoryBus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})
	metrics.UpdateBusSubscribers(b.countLocked())
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *InMemoryBus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[topic]
	for i, s := range list {
		if s.id == id {
			b.subs[topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
	metrics.UpdateBusSubscribers(b.countLocked())
}

// Stream returns a buffered channel of topic events. The channel is closed
// when ctx is done or the bus is closed.
func (b *InMemoryBus) Stream(ctx context.Context, topic string) <-chan Event {
	out := make(chan Event, b.bufferSize)

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		close(out)
		return out
	}

	var (
		mu      sync.Mutex
		stopped bool
	)
	unsubscribe := b.Subscribe(topic, func(_ context.Context, e Event) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		select {
		case out <- e:
		default:
			metrics.RecordBusDropped(topic)
		}
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		unsubscribe()
		mu.Lock()
		stopped = true
		close(out)
		mu.Unlock()
	}()
	return out
}

// Subscribers returns the number of handlers registered for topic.
func (b *InMemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *InMemoryBus) countLocked() int {
	n := 0
	for _, list := range b.subs {
		n += len(list)
	}
	return n
}

// Close stops delivery and releases every stream.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	return nil
}

// IsClosed returns true if the bus has been closed.
func (b *InMemoryBus) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
