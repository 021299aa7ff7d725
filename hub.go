package main

import (
	"log/slog"
	"sync"
)

// client is one connected WebSocket browser.
type client struct {
	send   chan any
	status chan struct{}
}

// hub fans server-initiated pushes out to every connected client.
// It is safe for concurrent use.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

// add registers a client and returns it.
func (h *hub) add(send chan any) *client {
	c := &client{send: send, status: make(chan struct{}, 1)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// remove unregisters c. After it returns no broadcast touches c.send.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast queues msg for every client. Slow clients miss the message.
func (h *hub) broadcast(msg any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slog.Debug("dropped push for slow client")
		}
	}
}

// notifyStatus asks every client loop to send a fresh status.
func (h *hub) notifyStatus() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.status <- struct{}{}:
		default:
		}
	}
}
