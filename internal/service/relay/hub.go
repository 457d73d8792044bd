package relay

import (
	"sync"

	"anon_messenger/internal/model"
)

type (
	// Deliverer publishes an envelope to an address. Delivery is immediate
	// and best-effort: no queueing, no retry, at-most-once.
	Deliverer interface {
		Deliver(addr string, env *model.Envelope) bool
	}

	// Hub is the in-process address registry of live connections. A code's
	// address maps to at most one connection; binding a code on a new
	// connection replaces the old mapping.
	Hub struct {
		mu    sync.RWMutex
		conns map[string]*Conn
	}
)

var _ Deliverer = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Conn),
	}
}

func (h *Hub) Register(addr string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[addr] = c
}

// Unregister removes the mapping only if it still points at c, so a
// reconnect that already rebound the address is not torn down by the old
// connection's cleanup.
func (h *Hub) Unregister(addr string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[addr] == c {
		delete(h.conns, addr)
	}
}

func (h *Hub) Deliver(addr string, env *model.Envelope) bool {
	h.mu.RLock()
	c, ok := h.conns[addr]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Send(env)
}

// Size reports the number of bound connections.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) IsLive(addr string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[addr]
	return ok
}
