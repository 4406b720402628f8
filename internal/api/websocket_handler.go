package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ws "github.com/wfunc/wager-engine/internal/websocket"
)

// WebSocketHandler 房间变更推送
type WebSocketHandler struct {
	hub    *ws.Hub
	rooms  RoomService
	logger *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, rooms RoomService, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, rooms: rooms, logger: logger}
}

// RoomFeed 订阅房间变更，每次提交后推送当前玩家视角的 room_state
// @Summary 房间变更推送
// @Tags Room
// @Security Bearer
// @Param id path string true "房间ID"
// @Param token query string false "浏览器握手时通过查询参数传令牌"
// @Success 101
// @Router /ws/rooms/{id} [get]
func (h *WebSocketHandler) RoomFeed(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := h.rooms.GetRoomState(c.Request.Context(), roomID, ""); err != nil {
		fail(c, err)
		return
	}

	// 连接存活期超过本次请求
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.hub.Serve(ctx, c.Writer, c.Request, roomID, playerID(c)); err != nil {
		h.logger.Warn("WebSocket升级失败",
			zap.String("room_id", roomID),
			zap.Error(err))
		return
	}
}

// OnlineCount 在线连接数
func (h *WebSocketHandler) OnlineCount(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"online_count": h.hub.OnlineCount()})
}
