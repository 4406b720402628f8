package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/eventlog"
)

const sendBuffer = 64

// Client 一个观看房间的连接，PlayerID 决定能看到的手牌
type Client struct {
	ID       string
	RoomID   string
	PlayerID string

	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	out    chan []byte
	closed bool
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, roomID, playerID string) *Client {
	return &Client{
		ID:       uuid.New().String(),
		RoomID:   roomID,
		PlayerID: playerID,
		hub:      hub,
		conn:     conn,
		out:      make(chan []byte, sendBuffer),
	}
}

// send 非阻塞发送，缓冲区满时丢弃，客户端可以发 sync 重新拉取
func (c *Client) send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.out <- data:
	default:
		c.hub.logger.Warn("客户端发送缓冲区满",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

func (c *Client) sendError(err error) {
	data, _ := json.Marshal(errors.Public(err))
	c.send(&Message{Type: MessageTypeError, RoomID: c.RoomID, Data: data, Timestamp: time.Now().Unix()})
}

// ReadPump 读取客户端消息，连接断开时注销
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}
		c.handleMessage(ctx, data)
	}
}

// WritePump 写出消息并定时 ping
func (c *Client) WritePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		c.sendError(errors.New(errors.ErrMessageFormat))
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.send(&Message{Type: MessageTypePong, Timestamp: time.Now().Unix()})

	case MessageTypeHeartbeat:
		if c.hub.presence == nil {
			return
		}
		if err := c.hub.presence.Heartbeat(ctx, c.RoomID, c.PlayerID); err != nil {
			c.sendError(err)
		}

	case MessageTypeSync:
		c.hub.sendSnapshot(ctx, c, eventlog.Event{RoomID: c.RoomID, Type: MessageTypeSync})

	default:
		c.sendError(errors.Newf(errors.ErrMessageFormat, "unsupported message type %s", msg.Type))
	}
}
