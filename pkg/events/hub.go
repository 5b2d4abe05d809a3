// Package events fans monitor events out to any number of subscribers.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Subscription is one consumer of a Hub. Events that do not fit in C wait
// in an overflow queue until the consumer catches up; nothing is lost
// while the subscription is registered.
type Subscription struct {
	ID   uuid.UUID
	Name string
	// C delivers events in publish order. After Hub.Close it is closed
	// once the queued events are delivered; after Unsubscribe it is closed
	// and queued events are discarded.
	C <-chan MonitorEvent

	out      chan MonitorEvent
	wake     chan struct{}
	closing  chan struct{}
	quit     chan struct{}
	quitOnce sync.Once

	mu     sync.Mutex
	queue  []MonitorEvent
	warnAt int
}

func newSubscription(name string, buffer int) *Subscription {
	out := make(chan MonitorEvent, buffer)
	return &Subscription{
		ID:      uuid.New(),
		Name:    name,
		C:       out,
		out:     out,
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
		quit:    make(chan struct{}),
		warnAt:  lagWarnFactor * buffer,
	}
}

const lagWarnFactor = 4

// Pending returns how many events wait in the overflow queue.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Subscription) enqueue(ev MonitorEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	n := len(s.queue)
	warn := n >= s.warnAt
	if warn {
		s.warnAt *= 2
	}
	s.mu.Unlock()

	if warn {
		logrus.WithFields(logrus.Fields{
			"subscriber": s.Name,
			"id":         s.ID,
			"pending":    n,
		}).Warn("subscriber is lagging behind")
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// pump moves queued events to out. It returns, closing out, when quit is
// closed, or when closing is closed and the queue is empty.
func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.warnAt = lagWarnFactor * cap(s.out)
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-s.quit:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.quit:
			return
		case <-s.closing:
			// Nothing is published to a closed hub; flush what is left.
			if s.Pending() == 0 {
				return
			}
		}
	}
}

// Hub is a one-to-many publisher. Publish never blocks and every
// registered subscriber receives every event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription
	buffer int
	closed bool
}

// NewHub returns a Hub whose subscriber channels hold buffer events. A
// non-positive buffer selects DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[uuid.UUID]*Subscription),
		buffer: buffer,
	}
}

// SetBuffer changes the channel capacity of future subscriptions.
func (h *Hub) SetBuffer(buffer int) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h.mu.Lock()
	h.buffer = buffer
	h.mu.Unlock()
}

// Subscribe registers a new consumer. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(name string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := newSubscription(name, h.buffer)
	if h.closed {
		close(sub.out)
		return sub
	}
	h.subs[sub.ID] = sub
	go sub.pump()

	logrus.WithFields(logrus.Fields{
		"subscriber": name,
		"id":         sub.ID,
	}).Debug("subscriber added")

	return sub
}

// Unsubscribe removes sub. Its channel is closed shortly after and queued
// events are discarded. It is safe to call more than once, also after
// Close.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; ok {
		delete(h.subs, sub.ID)
		logrus.WithFields(logrus.Fields{
			"subscriber": sub.Name,
			"id":         sub.ID,
		}).Debug("subscriber removed")
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish queues ev for every registered subscriber and returns how many
// there were. It never blocks on a slow consumer.
func (h *Hub) Publish(ev MonitorEvent) int {
	if h == nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		sub.enqueue(ev)
	}
	return len(h.subs)
}

// Close ends every subscription. Events already published are still
// delivered before each channel closes. Later Publish calls deliver
// nothing.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.closing)
		delete(h.subs, id)
	}
}
