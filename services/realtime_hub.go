package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteWait = 10 * time.Second

// WSClient is one websocket subscriber. An empty ProductID subscribes to
// every record.
type WSClient struct {
	ProductID string
	Conn      *websocket.Conn

	mu sync.Mutex // gorilla allows one concurrent writer
}

func (c *WSClient) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.Conn.WriteMessage(websocket.TextMessage, msg)
}

// Ping sends a websocket ping control frame.
func (c *WSClient) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[string]map[*WSClient]struct{}
	log     *zap.Logger
}

func NewRealtimeHub(log *zap.Logger) *RealtimeHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &RealtimeHub{clients: make(map[string]map[*WSClient]struct{}), log: log}
}

func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.ProductID] == nil {
		h.clients[c.ProductID] = make(map[*WSClient]struct{})
	}
	h.clients[c.ProductID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.ProductID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.ProductID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

// ClientCount returns the number of registered subscribers.
func (h *RealtimeHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Broadcast sends payload to subscribers of productID and to global
// subscribers.
func (h *RealtimeHub) Broadcast(productID string, payload any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal realtime payload", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients[""])+len(h.clients[productID]))
	for c := range h.clients[""] {
		targets = append(targets, c)
	}
	if productID != "" {
		for c := range h.clients[productID] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(msg); err != nil {
			h.log.Debug("realtime write failed", zap.String("product_id", c.ProductID), zap.Error(err))
			h.Unregister(c)
		}
	}
}
