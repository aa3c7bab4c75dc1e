package bridge

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/types"
)

// Hub fans host events out to subscribed WebSocket clients. A client whose
// queue is full misses events instead of slowing the publisher down.
type Hub struct {
	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	buffer  int
	logger  *logging.Logger
}

type subscriber struct {
	send    chan []byte
	dropped atomic.Int64
}

// NewHub creates a hub that queues up to buffer events per client.
func NewHub(buffer int, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		clients: make(map[*subscriber]struct{}),
		buffer:  buffer,
		logger:  logger,
	}
}

// Publish sends e to every subscriber. It never blocks.
func (h *Hub) Publish(e *types.HostEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Warnf("cannot encode %s event: %v", e.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.clients {
		select {
		case s.send <- data:
		default:
			s.dropped.Add(1)
		}
	}
}

// Emitter returns Publish as a types.Emitter.
func (h *Hub) Emitter() types.Emitter {
	return h.Publish
}

func (h *Hub) subscribe() *subscriber {
	s := &subscriber{send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.clients[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	_, ok := h.clients[s]
	delete(h.clients, s)
	h.mu.Unlock()

	if ok {
		close(s.send)
		if n := s.dropped.Load(); n > 0 {
			h.logger.Infof("event client dropped %d events", n)
		}
	}
}

// Clients returns the number of subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
