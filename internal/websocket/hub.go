package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/wager-engine/internal/config"
	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/room"
)

// 消息类型
const (
	MessageTypeConnected = "connected"
	MessageTypeRoomState = "room_state"
	MessageTypeHeartbeat = "heartbeat"
	MessageTypeSync      = "sync"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
)

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Snapshotter 按观看者生成房间快照
type Snapshotter interface {
	GetRoomState(ctx context.Context, roomID, viewerID string) (*room.Snapshot, error)
}

// Heartbeater 记录玩家心跳
type Heartbeater interface {
	Heartbeat(ctx context.Context, roomID, playerID string) error
}

// Hub 房间变更推送中心：订阅 Feed，向每个连接推送自己视角的快照
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	upgrader   websocket.Upgrader

	feed      *eventlog.Feed
	snapshots Snapshotter
	presence  Heartbeater
	cfg       config.WebSocketConfig
	logger    *zap.Logger
}

// NewHub 创建Hub
func NewHub(feed *eventlog.Feed, snapshots Snapshotter, presence Heartbeater, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client, 16),
		done:       make(chan struct{}),
		feed:       feed,
		snapshots:  snapshots,
		presence:   presence,
		cfg:        withDefaults(cfg),
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:    h.cfg.ReadBufferSize,
		WriteBufferSize:   h.cfg.WriteBufferSize,
		EnableCompression: h.cfg.EnableCompression,
		CheckOrigin:       func(r *http.Request) bool { return true },
	}
	return h
}

func withDefaults(cfg config.WebSocketConfig) config.WebSocketConfig {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongTimeout {
		cfg.PingInterval = cfg.PongTimeout * 9 / 10
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return cfg
}

// Run 运行Hub直到 ctx 结束
func (h *Hub) Run(ctx context.Context) error {
	sub := h.feed.SubscribeAll()
	defer sub.Close()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.registerClient(ctx, client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev, ok := <-sub.C:
			if !ok {
				h.logger.Warn("feed subscription closed")
				h.closeAll()
				return nil
			}
			h.push(ctx, ev)
		}
	}
}

func (h *Hub) registerClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	if h.rooms[client.RoomID] == nil {
		h.rooms[client.RoomID] = make(map[*Client]struct{})
	}
	h.rooms[client.RoomID][client] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("room_id", client.RoomID),
		zap.String("player_id", client.PlayerID))

	client.send(&Message{Type: MessageTypeConnected, RoomID: client.RoomID, Timestamp: time.Now().Unix()})
	h.sendSnapshot(ctx, client, eventlog.Event{RoomID: client.RoomID, Type: MessageTypeSync})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		if members := h.rooms[client.RoomID]; members != nil {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, client.RoomID)
			}
		}
		client.close()
	}
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("room_id", client.RoomID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.close()
		delete(h.clients, id)
	}
	h.rooms = make(map[string]map[*Client]struct{})
}

// push 同一视角的快照只查询一次
func (h *Hub) push(ctx context.Context, ev eventlog.Event) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[ev.RoomID]))
	for c := range h.rooms[ev.RoomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	if len(members) == 0 {
		return
	}

	views := make(map[string]*Message, 2)
	for _, c := range members {
		msg, ok := views[c.PlayerID]
		if !ok {
			var err error
			msg, err = h.snapshotMessage(ctx, c.RoomID, c.PlayerID, ev)
			if err != nil {
				h.logger.Warn("build snapshot failed", zap.String("room_id", ev.RoomID), zap.Error(err))
				continue
			}
			views[c.PlayerID] = msg
		}
		c.send(msg)
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, c *Client, ev eventlog.Event) {
	msg, err := h.snapshotMessage(ctx, c.RoomID, c.PlayerID, ev)
	if err != nil {
		c.sendError(err)
		return
	}
	c.send(msg)
}

func (h *Hub) snapshotMessage(ctx context.Context, roomID, viewerID string, ev eventlog.Event) (*Message, error) {
	snap, err := h.snapshots.GetRoomState(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      MessageTypeRoomState,
		RoomID:    roomID,
		Seq:       ev.Seq,
		Event:     ev.Type,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}, nil
}

// Serve 升级连接并开始推送，roomID 与 playerID 由调用方鉴权
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, roomID, playerID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrWebSocketConnect)
	}

	client := NewClient(h, conn, roomID, playerID)
	if !h.Register(client) {
		conn.Close()
		return errors.New(errors.ErrWebSocketClosed)
	}
	go client.WritePump()
	go client.ReadPump(ctx)
	return nil
}

// Register 注册客户端，Hub 已停止时返回 false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// OnlineCount 在线连接数
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomWatchers 房间的连接数
func (h *Hub) RoomWatchers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
