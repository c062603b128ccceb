package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Hub fans market events out to connected WebSocket clients.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan Event
	stop       chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// NewHub creates a hub and starts its broadcast loop.
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 256),
		stop:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
	go h.run()
	return h
}

// Publish implements Publisher. Events are dropped when the broadcast
// buffer is full rather than blocking the publishing operation.
func (h *Hub) Publish(evt Event) {
	select {
	case h.broadcast <- evt:
	default:
		h.logger.Warn("Event feed buffer full, dropping event",
			zap.String("type", string(evt.Type)))
	}
}

// ServeWS handles GET /api/v1/events and upgrades the connection.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade event feed connection", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan Event, sendBuffer),
	}
	h.register <- cl

	go h.writePump(cl)
	go h.readPump(cl)
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all subscribers and stops the hub.
func (h *Hub) Close() {
	close(h.stop)
}

func (h *Hub) run() {
	for {
		select {
		case cl := <-h.register:
			h.mu.Lock()
			h.clients[cl] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("Event feed client connected", zap.String("client_id", cl.id))

		case cl := <-h.unregister:
			h.dropClient(cl)

		case evt := <-h.broadcast:
			h.mu.Lock()
			for cl := range h.clients {
				select {
				case cl.send <- evt:
				default:
					// Slow consumer: disconnect rather than block.
					delete(h.clients, cl)
					close(cl.send)
				}
			}
			h.mu.Unlock()

		case <-h.stop:
			h.mu.Lock()
			for cl := range h.clients {
				delete(h.clients, cl)
				close(cl.send)
				cl.conn.Close()
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) dropClient(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
		h.logger.Debug("Event feed client disconnected", zap.String("client_id", cl.id))
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to
// process control messages and detect disconnects.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister <- cl
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(512)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Event feed read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(evt); err != nil {
				return
			}

		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
