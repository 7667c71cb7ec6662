package coordinator

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// feedEvent is broadcast to every connected /transfers/feed client when a
// transfer reaches a terminal status.
type feedEvent struct {
	TransactionID        string `json:"transaction_id"`
	Status               string `json:"status"`
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Message              string `json:"message"`
}

// feedHub fans finalized transfer results out to connected websocket
// clients. When a client's buffer is full the event is dropped for that
// client (the client stays registered) rather than allowed to block
// broadcast to the others.
type feedHub struct {
	mu      sync.Mutex
	clients map[string]chan feedEvent
	closed  bool
}

func newFeedHub() *feedHub {
	return &feedHub{clients: make(map[string]chan feedEvent)}
}

func (h *feedHub) register(id string) chan feedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan feedEvent, 16)
	h.clients[id] = ch
	return ch
}

func (h *feedHub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

func (h *feedHub) broadcast(ev feedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			log.Printf("coordinator: feed client %s is slow, dropping event", id)
		}
	}
}

// Close unregisters and closes every connected client's channel.
func (h *feedHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// handleFeed implements GET /transfers/feed: a websocket stream of transfer
// finalization events, for dashboards that want to watch transfers
// complete without polling /transfers/status.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("coordinator: feed upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id := r.RemoteAddr + "-" + time.Now().UTC().Format(time.RFC3339Nano)
	ch := s.feedHub.register(id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	defer s.feedHub.unregister(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
