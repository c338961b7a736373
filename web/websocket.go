package web

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"gsi-service/logger"
	"gsi-service/services"
)

// Client WebSocket客户端
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	types    map[string]bool // 事件类型过滤器
	matchIDs map[string]bool // 比赛ID过滤器
}

// Hub WebSocket Hub，向订阅者推送会话事件 (回合结束、比赛完成等)
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *services.SessionEvent
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub 创建新的Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *services.SessionEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 运行Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Printf("[WS] Client registered. Total clients: %d", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Printf("[WS] Client unregistered. Total clients: %d", len(h.clients))

		case event := <-h.broadcast:
			payload := h.marshalEvent(event)
			h.mu.RLock()
			for client := range h.clients {
				// 检查过滤器
				if !client.shouldReceive(event) {
					continue
				}

				select {
				case client.send <- payload:
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent 广播会话事件（实现EventBroadcaster接口）
func (h *Hub) BroadcastEvent(event services.SessionEvent) {
	h.broadcast <- &event
}

// marshalEvent 序列化事件
func (h *Hub) marshalEvent(event *services.SessionEvent) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("[WS] Failed to marshal event: %v", err)
		return []byte("{}")
	}
	return data
}

// shouldReceive 检查客户端是否应该接收事件
func (c *Client) shouldReceive(event *services.SessionEvent) bool {
	// 如果没有设置过滤器,接收所有事件
	if len(c.types) == 0 && len(c.matchIDs) == 0 {
		return true
	}

	// 检查事件类型过滤器
	if len(c.types) > 0 {
		if _, ok := c.types[event.Type]; !ok {
			return false
		}
	}

	// 检查比赛ID过滤器
	if len(c.matchIDs) > 0 {
		if event.MatchID == "" {
			return false
		}
		if _, ok := c.matchIDs[event.MatchID]; !ok {
			return false
		}
	}

	return true
}

// readPump 读取客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("[WS] WebSocket error: %v", err)
			}
			break
		}

		// 处理客户端消息(设置过滤器等)
		c.handleMessage(message)
	}
}

// writePump 向客户端写入消息
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// handleMessage 处理客户端发送的消息
func (c *Client) handleMessage(message []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Errorf("[WS] Failed to unmarshal client message: %v", err)
		return
	}

	msgType, ok := msg["type"].(string)
	if !ok {
		return
	}

	switch msgType {
	case "subscribe":
		// 订阅特定事件类型
		if types, ok := msg["event_types"].([]interface{}); ok {
			c.types = make(map[string]bool)
			for _, t := range types {
				if eventType, ok := t.(string); ok {
					c.types[eventType] = true
				}
			}
		}

		// 订阅特定比赛
		if matchIDs, ok := msg["match_ids"].([]interface{}); ok {
			c.matchIDs = make(map[string]bool)
			for _, m := range matchIDs {
				if matchID, ok := m.(string); ok {
					c.matchIDs[matchID] = true
				}
			}
		}

		logger.Printf("[WS] Client subscribed with types: %v, matches: %v", c.types, c.matchIDs)

	case "unsubscribe":
		// 取消订阅
		c.types = make(map[string]bool)
		c.matchIDs = make(map[string]bool)
		logger.Println("[WS] Client unsubscribed")
	}
}
