// Package hub fans dashboard telemetry out to websocket subscribers.
//
// One goroutine (Run) owns delivery. Publishers never block: a full queue
// drops the message, and a subscriber that cannot keep up is disconnected.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-rescue/internal/log"
)

// queueSize bounds messages published but not yet delivered.
const queueSize = 256

// Option configures a Hub.
type Option func(*Hub)

// WithReplay makes the hub remember the last message and hand it to every
// new subscriber first.
func WithReplay() Option {
	return func(h *Hub) { h.replay = true }
}

// Hub delivers published messages to its subscribers.
type Hub struct {
	name   string
	replay bool

	queue  chan []byte
	joins  chan *Subscriber
	leaves chan *Subscriber
	done   chan struct{}

	// mu guards subs and last, which Run mutates and accessors read.
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
	last []byte

	dropped atomic.Int64
}

// New creates a hub. name only appears in logs.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:   name,
		queue:  make(chan []byte, queueSize),
		joins:  make(chan *Subscriber),
		leaves: make(chan *Subscriber),
		done:   make(chan struct{}),
		subs:   make(map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers messages until ctx is done, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case s := <-h.joins:
			h.admit(s)
		case s := <-h.leaves:
			h.mu.Lock()
			h.evictLocked(s)
			n := len(h.subs)
			h.mu.Unlock()
			log.Debug("subscriber left", "hub", h.name, "subscribers", n)
		case msg := <-h.queue:
			h.deliver(msg)
		}
	}
}

func (h *Hub) admit(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs[s] = struct{}{}
	if h.replay && h.last != nil {
		select {
		case s.send <- h.last:
		default:
		}
	}
	log.Debug("subscriber joined", "hub", h.name, "subscribers", len(h.subs))
}

func (h *Hub) deliver(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.replay {
		h.last = msg
	}
	for s := range h.subs {
		select {
		case s.send <- msg:
		default:
			h.evictLocked(s)
			log.Warn("subscriber too slow, disconnected", "hub", h.name)
		}
	}
}

// evictLocked removes s and closes its queue. Removing twice is a no-op.
func (h *Hub) evictLocked(s *Subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		h.evictLocked(s)
	}
}

// Publish queues msg for every subscriber without blocking.
func (h *Hub) Publish(msg []byte) {
	select {
	case h.queue <- msg:
	default:
		h.dropped.Add(1)
		log.Warn("hub queue full, message dropped", "hub", h.name)
	}
}

// PublishJSON encodes v and publishes it.
func (h *Hub) PublishJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(data)
	return nil
}

// Prime sets the replay message without publishing it, so subscribers that
// join before the first Publish still get an initial value.
func (h *Hub) Prime(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.last = data
	h.mu.Unlock()
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many messages were discarded on a full queue.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) join(s *Subscriber) bool {
	select {
	case h.joins <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(s *Subscriber) {
	select {
	case h.leaves <- s:
	case <-h.done:
	}
}
