// Package ws streams engine and delivery events to operator dashboards.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	queueSize      = 256
	clientSendSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from another origin
	},
}

// Event is the frame written to every dashboard.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

// dashboard is one connected socket.
type dashboard struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connected dashboard. Publishing never blocks:
// events are dropped when the queue is full, and a dashboard that cannot keep
// up is disconnected.
type Hub struct {
	mu         sync.Mutex
	dashboards map[*dashboard]struct{}

	events     chan []byte
	register   chan *dashboard
	unregister chan *dashboard
	done       chan struct{}

	log *logrus.Entry
	now func() time.Time
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		dashboards: make(map[*dashboard]struct{}),
		events:     make(chan []byte, queueSize),
		register:   make(chan *dashboard),
		unregister: make(chan *dashboard),
		done:       make(chan struct{}),
		log:        log,
		now:        time.Now,
	}
}

// Run serves the hub until ctx is done, then disconnects every dashboard.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for d := range h.dashboards {
				h.drop(d)
			}
			h.mu.Unlock()
			return
		case d := <-h.register:
			h.mu.Lock()
			h.dashboards[d] = struct{}{}
			count := len(h.dashboards)
			h.mu.Unlock()
			h.log.WithField("dashboards", count).Debug("Dashboard connected")
		case d := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.dashboards[d]; ok {
				h.drop(d)
			}
			h.mu.Unlock()
			h.log.Debug("Dashboard disconnected")
		case frame := <-h.events:
			h.fanOut(frame)
		}
	}
}

func (h *Hub) fanOut(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for d := range h.dashboards {
		select {
		case d.send <- frame:
		default:
			h.log.Warn("Dashboard too slow; disconnecting")
			h.drop(d)
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(d *dashboard) {
	delete(h.dashboards, d)
	close(d.send)
}

// ClientCount reports how many dashboards are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dashboards)
}

// BroadcastEvent queues an event for every dashboard.
func (h *Hub) BroadcastEvent(eventType string, data interface{}) {
	frame, err := json.Marshal(Event{Type: eventType, Data: data, At: h.now().UTC()})
	if err != nil {
		h.log.WithError(err).WithField("type", eventType).Error("Error marshaling WS event")
		return
	}
	select {
	case h.events <- frame:
	default:
		h.log.WithField("type", eventType).Warn("WebSocket broadcast queue full; event dropped")
	}
}

// ServeWs upgrades the request and attaches the socket to the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade error")
		return
	}
	d := &dashboard{hub: h, conn: conn, send: make(chan []byte, clientSendSize)}
	select {
	case h.register <- d:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go d.writeLoop()
	go d.readLoop()
}

// readLoop only services control frames; dashboards never send data.
func (d *dashboard) readLoop() {
	defer func() {
		select {
		case d.hub.unregister <- d:
		case <-d.hub.done:
		}
		_ = d.conn.Close()
	}()

	_ = d.conn.SetReadDeadline(time.Now().Add(pongWait))
	d.conn.SetPongHandler(func(string) error {
		return d.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := d.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *dashboard) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = d.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-d.send:
			_ = d.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = d.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := d.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = d.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := d.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
