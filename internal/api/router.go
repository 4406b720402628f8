package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/middleware"
	"github.com/wfunc/wager-engine/internal/utils"
	ws "github.com/wfunc/wager-engine/internal/websocket"
)

// Deps 路由依赖
type Deps struct {
	DB       *gorm.DB
	Rooms    RoomService
	Presence Heartbeater
	Ledger   BalanceReader
	Hub      *ws.Hub
	Tokens   middleware.TokenValidator
	Mode     string
	Logger   *zap.Logger
}

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	roomHandler    *RoomHandler
	walletHandler  *WalletHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps Deps) *Router {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(log))

	router := &Router{
		engine:         engine,
		db:             deps.DB,
		roomHandler:    NewRoomHandler(deps.Rooms, deps.Presence, log),
		walletHandler:  NewWalletHandler(deps.DB, deps.Ledger, log),
		authMiddleware: middleware.NewAuthMiddleware(deps.Tokens),
		log:            log,
	}
	if deps.Hub != nil {
		router.wsHandler = NewWebSocketHandler(deps.Hub, deps.Rooms, log)
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	v1.Use(r.authMiddleware.RequireAuth())
	{
		rooms := v1.Group("/rooms")
		{
			rooms.POST("", r.roomHandler.CreateRoom)
			rooms.GET("", r.roomHandler.ListRooms)
			rooms.GET("/:id", r.roomHandler.GetRoom)
			rooms.POST("/:id/join", r.roomHandler.JoinRoom)
			rooms.POST("/:id/bots", r.roomHandler.FillWithBots)
			rooms.POST("/:id/cancel", r.roomHandler.CancelRoom)
			rooms.POST("/:id/actions", r.roomHandler.SubmitAction)
			rooms.POST("/:id/heartbeat", r.roomHandler.Heartbeat)
			rooms.POST("/:id/forfeit", r.roomHandler.Forfeit)
			rooms.GET("/:id/log", r.roomHandler.GetLog)
			rooms.GET("/:id/verify", r.roomHandler.VerifyReplay)
		}

		wallet := v1.Group("/wallet")
		{
			wallet.GET("/balance", r.walletHandler.GetBalance)
			wallet.GET("/transactions", r.walletHandler.GetTransactions)
		}
	}

	if r.wsHandler != nil {
		feed := r.engine.Group("/ws")
		feed.Use(r.authMiddleware.RequireAuth())
		{
			feed.GET("/rooms/:id", r.wsHandler.RoomFeed)
		}
		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.RequireRole(utils.RoleAdmin))
		{
			admin.GET("/online", r.wsHandler.OnlineCount)
		}
	}

	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	r.engine.NoRoute(func(c *gin.Context) {
		fail(c, errors.New(errors.ErrNotFound, c.Request.URL.Path))
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		r.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Handler HTTP处理器
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
