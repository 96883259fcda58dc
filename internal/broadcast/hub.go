package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/pkg/metrics"
)

// Hub fans out events to all subscribed sessions. A single loop drains
// the publish queue, so subscribers observe events in commit order; a
// subscriber that cannot keep up is dropped and must resubscribe.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	events       chan Event
	clientBuffer int

	stopOnce sync.Once
	stopped  chan struct{}
}

// Subscriber is a single live viewer session attached to the hub.
type Subscriber struct {
	id string
	ch chan Event
}

// Events returns the subscriber's event stream. The channel is closed
// when the subscriber is dropped or the hub shuts down.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// NewHub creates a hub. clientBuffer bounds each subscriber's queue.
func NewHub(clientBuffer int) *Hub {
	if clientBuffer <= 0 {
		clientBuffer = 16
	}
	return &Hub{
		subscribers:  make(map[string]*Subscriber),
		events:       make(chan Event, 256),
		clientBuffer: clientBuffer,
		stopped:      make(chan struct{}),
	}
}

// Run drains the publish queue until the context is cancelled. Must be
// called exactly once, on its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case event := <-h.events:
			h.fanOut(event)
		case <-ctx.Done():
			return
		}
	}
}

// Publish enqueues an event for fan-out. It never blocks the caller for
// long: when the hub queue is saturated the event is dropped with a log
// line, since viewers reconstruct state from the store anyway.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	metrics.BroadcastEvents.WithLabelValues(string(event.Kind)).Inc()

	select {
	case h.events <- event:
	case <-h.stopped:
	default:
		slog.Warn("broadcast queue saturated, dropping event",
			"kind", event.Kind,
			"entity_id", event.ID,
		)
	}
}

// Subscribe attaches a new viewer session.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.New().String(),
		ch: make(chan Event, h.clientBuffer),
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.BroadcastClients.Set(float64(count))
	return sub
}

// Unsubscribe detaches a viewer session and closes its stream.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		close(sub.ch)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.BroadcastClients.Set(float64(count))
}

// fanOut delivers the event to every subscriber, dropping the ones whose
// queues are full.
func (h *Hub) fanOut(event Event) {
	h.mu.RLock()
	var stuck []*Subscriber
	for _, sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			stuck = append(stuck, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range stuck {
		slog.Warn("dropping slow broadcast subscriber", "subscriber_id", sub.id)
		metrics.BroadcastDropped.Inc()
		h.Unsubscribe(sub)
	}
}

// closeAll drops every subscriber on shutdown.
func (h *Hub) closeAll() {
	h.stopOnce.Do(func() { close(h.stopped) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.ch)
	}
	metrics.BroadcastClients.Set(0)
}
