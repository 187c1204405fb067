package events

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/internal/metrics"
)

// DefaultCapacity is the number of items a hub retains for slow subscribers
const DefaultCapacity = 1000

// ErrHubClosed is returned by Recv once the hub is closed and drained
var ErrHubClosed = errors.New("broadcast hub closed")

// Hub is a bounded multi-subscriber channel. Every subscriber sees every item
// published after it subscribed. A subscriber that falls more than capacity
// items behind skips ahead to the oldest retained item.
type Hub[T any] struct {
	mu       sync.Mutex
	name     string
	buf      []T
	capacity uint64
	next     uint64
	notify   chan struct{}
	subs     map[string]*Subscription[T]
	closed   bool
	logger   *logz.Logger
}

// NewHub creates a hub retaining capacity items. A capacity below 1 uses DefaultCapacity.
func NewHub[T any](name string, capacity int) *Hub[T] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Hub[T]{
		name:     name,
		buf:      make([]T, capacity),
		capacity: uint64(capacity),
		notify:   make(chan struct{}),
		subs:     make(map[string]*Subscription[T]),
		logger:   logz.New(logz.INFO, "hub:"+name),
	}
}

// Name returns the hub name
func (h *Hub[T]) Name() string {
	return h.name
}

// Capacity returns the number of retained items
func (h *Hub[T]) Capacity() int {
	return int(h.capacity)
}

// Publish appends v and wakes every waiting subscriber. It never blocks and
// returns the number of current subscribers.
func (h *Hub[T]) Publish(v T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}

	h.buf[h.next%h.capacity] = v
	h.next++

	close(h.notify)
	h.notify = make(chan struct{})
	return len(h.subs)
}

// Subscribe registers a subscriber positioned after the latest published item
func (h *Hub[T]) Subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription[T]{
		ID:  uuid.NewString(),
		hub: h,
		pos: h.next,
	}
	if !h.closed {
		h.subs[sub.ID] = sub
		metrics.AddSubscriptions(1)
	}
	return sub
}

// SubscriberCount returns the number of active subscribers
func (h *Hub[T]) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Published returns the total number of items published
func (h *Hub[T]) Published() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next
}

// Close stops the hub. Subscribers drain the retained items and then get ErrHubClosed.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	metrics.AddSubscriptions(-len(h.subs))
	h.subs = make(map[string]*Subscription[T])
	close(h.notify)
}

func (h *Hub[T]) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; ok {
		delete(h.subs, id)
		metrics.AddSubscriptions(-1)
	}
}

// Subscription is one reader of a hub. It must be used from a single goroutine.
type Subscription[T any] struct {
	ID string

	hub     *Hub[T]
	pos     uint64
	dropped uint64
}

// Recv returns the next item, blocking until one is published, the context ends
// or the hub closes
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	for {
		v, ok, wait, err := s.next()
		if err != nil || ok {
			return v, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-wait:
		}
	}
}

// TryRecv returns the next item without blocking
func (s *Subscription[T]) TryRecv() (T, bool, error) {
	v, ok, _, err := s.next()
	return v, ok, err
}

func (s *Subscription[T]) next() (T, bool, <-chan struct{}, error) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T

	oldest := uint64(0)
	if h.next > h.capacity {
		oldest = h.next - h.capacity
	}
	if s.pos < oldest {
		skipped := oldest - s.pos
		s.dropped += skipped
		s.pos = oldest
		metrics.RecordEvents(0, int(skipped))
		h.logger.Debug("Subscriber %s lagged, skipped %d items", s.ID, skipped)
	}

	if s.pos < h.next {
		v := h.buf[s.pos%h.capacity]
		s.pos++
		return v, true, nil, nil
	}

	if h.closed {
		return zero, false, nil, ErrHubClosed
	}
	return zero, false, h.notify, nil
}

// Dropped returns how many items this subscriber skipped by lagging
func (s *Subscription[T]) Dropped() uint64 {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription from its hub
func (s *Subscription[T]) Close() {
	s.hub.unsubscribe(s.ID)
}
