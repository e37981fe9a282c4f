package monitor

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the listener binds loopback by default
	},
}

// EventType classifies pushed events.
type EventType string

const (
	// EventTopologyChange announces a topology change on a tree.
	EventTopologyChange EventType = "topology-change"

	// EventPortState announces a forwarding-state transition.
	EventPortState EventType = "port-state"

	// EventPortRole announces a role change.
	EventPortRole EventType = "port-role"
)

// Event is one pushed message.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Bridge    string      `json:"bridge"`
	Port      string      `json:"port,omitempty"`
	MSTID     uint16      `json:"mstid"`
	Data      interface{} `json:"data,omitempty"`
}

// wsClient is one connected dashboard.
type wsClient struct {
	conn *websocket.Conn
	send chan *Event
	mu   sync.Mutex
}

// Broadcast pushes an event to every connected client. Slow clients are
// dropped rather than allowed to backpressure the daemon.
func (s *Server) Broadcast(ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	for c := range s.wsClients {
		select {
		case c.send <- ev:
		default:
			close(c.send)
			delete(s.wsClients, c)
		}
	}
}

// handleWebSocket upgrades the connection and starts the read/write pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &wsClient{
		conn: conn,
		send: make(chan *Event, 256),
	}

	s.wsMu.Lock()
	s.wsClients[client] = true
	s.wsMu.Unlock()

	go client.writePump()
	go client.readPump(s)
}

// writePump sends events and keepalive pings to the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection (clients send nothing meaningful) and
// unregisters on close.
func (c *wsClient) readPump(s *Server) {
	defer func() {
		s.wsMu.Lock()
		if _, ok := s.wsClients[c]; ok {
			close(c.send)
			delete(s.wsClients, c)
		}
		s.wsMu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
