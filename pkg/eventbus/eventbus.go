// Package eventbus implements the in-process multi-subscriber
// broadcast bus (specification §4.9).
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/cuenv-dev/cuenv/pkg/secretredact"
	"github.com/google/uuid"
)

// EventType enumerates the task lifecycle events a task emits, in the
// order Started -> (Output)* -> (CacheHit | Completed) (specification
// §4.7 "Ordering guarantees").
type EventType string

const (
	Started   EventType = "started"
	Output    EventType = "output"
	CacheHit  EventType = "cache_hit"
	Completed EventType = "completed"
	Skipped   EventType = "skipped"
)

// Event is one occurrence on the bus.
type Event struct {
	ID        string
	TaskFQDN  string
	Type      EventType
	Payload   string // textual content, redacted before delivery
	Timestamp int64  // unix nanos, monotonic per-process
}

// DefaultCapacity is the default bounded broadcast channel size
// (specification §4.9).
const DefaultCapacity = 1000

// Bus is a single forwarding-task broadcast bus: producers write to a
// buffered input channel of 4096 events (Publish blocks while it is
// full); one goroutine fans each event out to every current
// subscriber's bounded channel.
type Bus struct {
	redactor *secretredact.Registry
	capacity int

	input chan Event

	mu          sync.Mutex
	subscribers map[int64]*subscriber
	nextSubID   int64
	senderCount int64

	closed chan struct{}
	once   sync.Once
}

type subscriber struct {
	ch     chan Event
	lagged int64
}

// New starts a bus with the given redactor (pass nil to disable
// redaction, e.g. in component tests) and broadcast capacity.
func New(redactor *secretredact.Registry, capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{
		redactor:    redactor,
		capacity:    capacity,
		input:       make(chan Event, 4096), // producer side; Publish blocks when full
		subscribers: map[int64]*subscriber{},
		closed:      make(chan struct{}),
	}
	go b.forward()
	return b
}

func (b *Bus) forward() {
	for {
		select {
		case ev := <-b.input:
			if b.redactor != nil {
				ev.Payload = b.redactor.Redact(ev.Payload)
			}
			b.mu.Lock()
			for _, sub := range b.subscribers {
				select {
				case sub.ch <- ev:
				default:
					atomic.AddInt64(&sub.lagged, 1)
					// drain one slot to make room, best-effort: the consumer
					// that reads next learns via Lagged(n) instead of stalling
					// the forwarder.
					select {
					case <-sub.ch:
					default:
					}
					select {
					case sub.ch <- ev:
					default:
					}
				}
			}
			b.mu.Unlock()
		case <-b.closed:
			return
		}
	}
}

// Publish enqueues ev, assigning an ID and timestamp if absent.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	atomic.AddInt64(&b.senderCount, 1)
	select {
	case b.input <- ev:
	case <-b.closed:
	}
}

// Subscription is a live subscriber handle.
type Subscription struct {
	id  int64
	bus *Bus
	ch  chan Event
}

// Subscribe registers a new subscriber. It only receives events
// published after this call returns; there is no replay
// (specification §4.9 "Late subscribers").
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	sub := &subscriber{ch: make(chan Event, b.capacity)}
	b.subscribers[id] = sub
	return &Subscription{id: id, bus: b, ch: sub.ch}
}

// Events returns the channel to range over for delivered events.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Lagged returns the count of events this subscriber has missed due
// to falling behind (specification §4.9 "Lagging consumers").
func (s *Subscription) Lagged() int64 {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		return atomic.LoadInt64(&sub.lagged)
	}
	return 0
}

// Unsubscribe removes the subscription.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subscribers, s.id)
}

// SenderCount returns the number of events ever published.
func (b *Bus) SenderCount() int64 { return atomic.LoadInt64(&b.senderCount) }

// SubscriberCount returns the number of currently-registered
// subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close stops the forwarding goroutine. Further Publish calls are
// dropped.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.closed) })
}
