// File: services/realtime/hub.go
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"voicecab/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Hub fans events out to websocket subscribers. A connection names the
// channels it wants in its first message; everything after that is
// server-to-client only.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*client]struct{})}
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	channels []string
}

// subscribeRequest is the first frame a connection sends.
type subscribeRequest struct {
	Channels []string `json:"channels"`
}

type envelope struct {
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Data    interface{} `json:"data"`
}

// Publish implements Publisher. Slow subscribers are dropped rather than
// blocking the caller.
func (h *Hub) Publish(channel, event string, payload interface{}) {
	data, err := json.Marshal(envelope{Channel: channel, Event: event, Data: payload})
	if err != nil {
		utils.GetLogger().Error("failed to encode realtime event",
			zap.String("channel", channel), zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[channel] {
		select {
		case c.send <- data:
		default:
			go c.close()
		}
	}
}

// HandleConn takes ownership of an upgraded connection and blocks until the
// peer disconnects.
func (h *Hub) HandleConn(conn *websocket.Conn) {
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	var req subscribeRequest
	if err := conn.ReadJSON(&req); err != nil || len(req.Channels) == 0 {
		conn.Close()
		return
	}
	c.channels = req.Channels
	h.subscribe(c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) subscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range c.channels {
		if h.subs[ch] == nil {
			h.subs[ch] = make(map[*client]struct{})
		}
		h.subs[ch][c] = struct{}{}
	}
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range c.channels {
		delete(h.subs[ch], c)
		if len(h.subs[ch]) == 0 {
			delete(h.subs, ch)
		}
	}
}

func (c *client) close() {
	c.hub.unsubscribe(c)
	c.conn.Close()
}

// readPump drains the connection so pongs and close frames are processed.
func (c *client) readPump() {
	defer c.close()
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
