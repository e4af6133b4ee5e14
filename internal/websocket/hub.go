package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/voiceforge/api/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// client is a single websocket subscriber watching one job.
type client struct {
	jobID string
	send  chan []byte
}

// Hub fans job state updates out to websocket subscribers. Clients register
// per job id; every state transition for that job is pushed as a JSON frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan broadcastMsg
	done       chan struct{}
}

type broadcastMsg struct {
	jobID string
	data  []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client, 8),
		unregister: make(chan *client, 8),
		broadcast:  make(chan broadcastMsg, 64),
		done:       make(chan struct{}),
	}
}

// Run processes register/unregister/broadcast events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.jobID] == nil {
				h.clients[c.jobID] = make(map[*client]struct{})
			}
			h.clients[c.jobID][c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[c.jobID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					close(c.send)
					if len(set) == 0 {
						delete(h.clients, c.jobID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients[msg.jobID] {
				select {
				case c.send <- msg.data:
				default:
					// Slow consumer; drop the frame rather than block the hub.
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for jobID, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, jobID)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and disconnects all subscribers.
func (h *Hub) Stop() {
	close(h.done)
}

// JobUpdated implements engine.Notifier. It serializes the job's current
// state and pushes it to every subscriber of that job.
func (h *Hub) JobUpdated(job *model.Job) {
	update := model.WSJobUpdate{
		Type:    model.WSMessageTypeState,
		JobID:   job.ID,
		State:   job.State,
		Attempt: job.Attempt,
		Result:  job.Result,
		Error:   job.Error,
	}

	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("marshal job update %s: %v", job.ID, err)
		return
	}

	select {
	case h.broadcast <- broadcastMsg{jobID: job.ID, data: data}:
	case <-h.done:
	}
}

// HandleConnection serves one websocket subscriber. It sends the initial
// snapshot, then relays hub broadcasts until the peer disconnects.
func (h *Hub) HandleConnection(conn *websocket.Conn, jobID string, snapshot *model.Job) {
	c := &client{
		jobID: jobID,
		send:  make(chan []byte, 16),
	}

	// Queue the initial snapshot before the hub can see the channel. Once
	// registered, a concurrent Stop may close c.send, so it is only safe to
	// send here while this goroutine is the sole owner.
	if snapshot != nil {
		update := model.WSJobUpdate{
			Type:    model.WSMessageTypeState,
			JobID:   snapshot.ID,
			State:   snapshot.State,
			Attempt: snapshot.Attempt,
			Result:  snapshot.Result,
			Error:   snapshot.Error,
		}
		if data, err := json.Marshal(update); err == nil {
			c.send <- data
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	// Writer goroutine owns the connection for writes.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case data, ok := <-c.send:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Read loop: we only expect ping frames from clients, but reading keeps
	// connection close detection working.
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt == websocket.TextMessage {
			var in model.WSMessage
			if json.Unmarshal(msg, &in) == nil && in.Type == model.WSMessageTypePing {
				pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}

	select {
	case h.unregister <- c:
	case <-h.done:
	}
	conn.Close()
	<-writerDone
}
