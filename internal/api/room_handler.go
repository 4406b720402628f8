package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
	"github.com/wfunc/wager-engine/internal/room"
)

// RoomService 房间接口需要的引擎能力
type RoomService interface {
	CreateRoom(ctx context.Context, req room.CreateRequest) (*models.Room, error)
	JoinRoom(ctx context.Context, roomID, playerID string) (*models.Room, *models.PlayerSession, error)
	FillWithBots(ctx context.Context, roomID, requesterID, difficulty string) (*models.Room, error)
	CancelRoom(ctx context.Context, roomID, requesterID string) (*models.Room, error)
	SubmitAction(ctx context.Context, req room.ActionRequest) (*room.ActionResult, error)
	Forfeit(ctx context.Context, roomID, playerID string, systemForced bool) (*room.ActionResult, error)
	GetRoomState(ctx context.Context, roomID, viewerID string) (*room.Snapshot, error)
	ListActions(ctx context.Context, roomID string) ([]*models.ActionLogEntry, error)
	ListRooms(ctx context.Context, status string, page, pageSize int) ([]*models.Room, *repository.Pagination, error)
	VerifyReplay(ctx context.Context, roomID string) (bool, error)
}

// Heartbeater 心跳记录
type Heartbeater interface {
	Heartbeat(ctx context.Context, roomID, playerID string) error
}

// RoomHandler 房间处理器
type RoomHandler struct {
	rooms    RoomService
	presence Heartbeater
	logger   *zap.Logger
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(rooms RoomService, presence Heartbeater, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, presence: presence, logger: logger}
}

// JoinResponse 加入房间响应
type JoinResponse struct {
	Room    *models.Room          `json:"room"`
	Session *models.PlayerSession `json:"session"`
}

// BotsRequest 补机器人请求
type BotsRequest struct {
	Difficulty string `json:"difficulty"`
}

// ActionBody 提交动作请求，expected_turn 为客户端看到的 turn_seq，必填
type ActionBody struct {
	Action       json.RawMessage `json:"action" binding:"required" swaggertype:"object"`
	ExpectedTurn *int64          `json:"expected_turn" binding:"required"`
}

// ListRoomsResponse 房间列表
type ListRoomsResponse struct {
	Rooms      []*models.Room         `json:"rooms"`
	Pagination *repository.Pagination `json:"pagination"`
}

// CreateRoom 创建房间
// @Summary 创建房间
// @Description 创建房间并扣除创建者的报名费，创建者坐0号位
// @Tags Room
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body room.CreateRequest true "房间参数"
// @Success 201 {object} Response
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Router /api/v1/rooms [post]
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req room.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindError(err))
		return
	}
	req.CreatorID = playerID(c)

	r, err := h.rooms.CreateRoom(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, r)
}

// ListRooms 房间列表
// @Summary 房间列表
// @Tags Room
// @Security Bearer
// @Produce json
// @Param status query string false "waiting|active|completed|cancelled"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} Response
// @Router /api/v1/rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, p, err := h.rooms.ListRooms(c.Request.Context(), c.Query("status"), queryInt(c, "page", 1), queryInt(c, "page_size", 20))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, ListRoomsResponse{Rooms: rooms, Pagination: p})
}

// GetRoom 房间快照
// @Summary 房间快照
// @Description 以当前玩家视角返回房间状态，只能看到自己的底牌
// @Tags Room
// @Security Bearer
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/rooms/{id} [get]
func (h *RoomHandler) GetRoom(c *gin.Context) {
	snap, err := h.rooms.GetRoomState(c.Request.Context(), c.Param("id"), playerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, snap)
}

// JoinRoom 加入房间
// @Summary 加入房间
// @Tags Room
// @Security Bearer
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} Response
// @Failure 402 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/rooms/{id}/join [post]
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	r, session, err := h.rooms.JoinRoom(c.Request.Context(), c.Param("id"), playerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, JoinResponse{Room: r, Session: session})
}

// FillWithBots 机器人补位并开局
// @Summary 机器人补位
// @Tags Room
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "房间ID"
// @Param body body BotsRequest false "机器人难度"
// @Success 200 {object} Response
// @Router /api/v1/rooms/{id}/bots [post]
func (h *RoomHandler) FillWithBots(c *gin.Context) {
	var req BotsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, bindError(err))
			return
		}
	}
	r, err := h.rooms.FillWithBots(c.Request.Context(), c.Param("id"), playerID(c), req.Difficulty)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, r)
}

// CancelRoom 取消等待中的房间并退款
// @Summary 取消房间
// @Tags Room
// @Security Bearer
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} Response
// @Router /api/v1/rooms/{id}/cancel [post]
func (h *RoomHandler) CancelRoom(c *gin.Context) {
	r, err := h.rooms.CancelRoom(c.Request.Context(), c.Param("id"), playerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, r)
}

// SubmitAction 提交动作
// @Summary 提交动作
// @Description 飞行棋 roll/move，德州 fold/check/call/bet/raise
// @Tags Room
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "房间ID"
// @Param body body ActionBody true "动作"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/rooms/{id}/actions [post]
func (h *RoomHandler) SubmitAction(c *gin.Context) {
	var body ActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, bindError(err))
		return
	}
	action, err := game.ParseAction(body.Action)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.rooms.SubmitAction(c.Request.Context(), room.ActionRequest{
		RoomID:       c.Param("id"),
		PlayerID:     playerID(c),
		Action:       action,
		ExpectedTurn: body.ExpectedTurn,
	})
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, res)
}

// Heartbeat 心跳
// @Summary 心跳
// @Tags Room
// @Security Bearer
// @Param id path string true "房间ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/rooms/{id}/heartbeat [post]
func (h *RoomHandler) Heartbeat(c *gin.Context) {
	if err := h.presence.Heartbeat(c.Request.Context(), c.Param("id"), playerID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Forfeit 认输
// @Summary 认输
// @Tags Room
// @Security Bearer
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} Response
// @Router /api/v1/rooms/{id}/forfeit [post]
func (h *RoomHandler) Forfeit(c *gin.Context) {
	res, err := h.rooms.Forfeit(c.Request.Context(), c.Param("id"), playerID(c), false)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, res)
}

// GetLog 操作日志
// @Summary 操作日志
// @Tags Room
// @Security Bearer
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} Response
// @Router /api/v1/rooms/{id}/log [get]
func (h *RoomHandler) GetLog(c *gin.Context) {
	entries, err := h.rooms.ListActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, entries)
}

// VerifyReplay 重放校验
// @Summary 重放校验
// @Description 按操作日志重放并与当前状态比对
// @Tags Room
// @Security Bearer
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} Response
// @Router /api/v1/rooms/{id}/verify [get]
func (h *RoomHandler) VerifyReplay(c *gin.Context) {
	same, err := h.rooms.VerifyReplay(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !same {
		h.logger.Error("replay mismatch", zap.String("room_id", c.Param("id")))
	}
	success(c, http.StatusOK, gin.H{"consistent": same})
}
