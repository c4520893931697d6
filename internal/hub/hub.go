// Package hub keeps the set of connected observers and fans simulation
// frames out to all of them.
package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"watertank-sim/internal/logging"
	"watertank-sim/internal/tank"
)

// ErrClosed is returned when an observer joins a hub that no longer accepts them.
var ErrClosed = errors.New("hub: not accepting observers")

const (
	defaultWriteTimeout = 5 * time.Second
	maxInboundFrame     = 4096
)

// Observer is one delivery target.
type Observer interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Hub is a concurrency-safe observer set. Membership changes may happen while
// a broadcast is in flight.
type Hub struct {
	mu           sync.RWMutex
	observers    map[string]Observer
	accepting    bool
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// Option configures a Hub.
type Option func(*Hub)

// WithWriteTimeout bounds how long one observer may block a broadcast.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// New returns an empty hub accepting observers.
func New(opts ...Option) *Hub {
	h := &Hub{
		observers: make(map[string]Observer),
		accepting: true,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add registers o. It fails with ErrClosed once StopAccepting was called.
func (h *Hub) Add(o Observer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.accepting {
		return ErrClosed
	}
	h.observers[o.ID()] = o
	return nil
}

// Remove drops the observer with id and reports whether it was present.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[id]; !ok {
		return false
	}
	delete(h.observers, id)
	return true
}

// Len returns the number of connected observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Broadcast delivers msg to every observer connected when the call started
// and returns how many deliveries succeeded. Observers that fail are logged
// and dropped; the remaining observers still receive the frame.
func (h *Hub) Broadcast(ctx context.Context, msg tank.Message) int {
	log := logging.FromContext(ctx)
	data, err := tank.Encode(msg)
	if err != nil {
		log.Error("encode frame failed", "method", msg.Method(), "err", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers))
	for _, o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, o := range targets {
		if err := o.Send(data); err != nil {
			log.Warn("delivery failed, dropping observer", "observer_id", o.ID(), "method", msg.Method(), "err", err)
			if h.Remove(o.ID()) {
				_ = o.Close()
			}
			continue
		}
		delivered++
	}
	return delivered
}

// StopAccepting rejects observers that try to join from now on.
func (h *Hub) StopAccepting() {
	h.mu.Lock()
	h.accepting = false
	h.mu.Unlock()
}

// Close stops accepting observers and disconnects the current ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.accepting = false
	current := h.observers
	h.observers = make(map[string]Observer)
	h.mu.Unlock()

	var errs []error
	for _, o := range current {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ServeWS upgrades the request to a WebSocket observer. The handler blocks,
// discarding inbound frames, until the connection ends.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	h.mu.RLock()
	accepting := h.accepting
	h.mu.RUnlock()
	if !accepting {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "err", err)
		return
	}
	o := newConnObserver(uuid.NewString(), conn, h.writeTimeout)
	if err := h.Add(o); err != nil {
		_ = o.Close()
		return
	}
	log.Info("observer connected", "observer_id", o.ID(), "remote", r.RemoteAddr, "observers", h.Len())

	conn.SetReadLimit(maxInboundFrame)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("observer read failed", "observer_id", o.ID(), "err", err)
			}
			break
		}
	}
	if h.Remove(o.ID()) {
		_ = o.Close()
	}
	log.Info("observer disconnected", "observer_id", o.ID(), "observers", h.Len())
}
