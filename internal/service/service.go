// Package service 组装各业务服务，供 cmd/server 与测试共用
package service

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/config"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/ledger"
	"github.com/wfunc/wager-engine/internal/presence"
	"github.com/wfunc/wager-engine/internal/room"
	"github.com/wfunc/wager-engine/internal/settlement"
	"github.com/wfunc/wager-engine/internal/utils"
	ws "github.com/wfunc/wager-engine/internal/websocket"
)

// Options 可选依赖，测试时注入
type Options struct {
	Clock  quartz.Clock
	Logger func(module string) *zap.Logger
}

// Services 服务集合
type Services struct {
	Ledger     *ledger.GormLedger
	Settlement *settlement.Service
	Rooms      *room.Service
	Presence   *presence.Tracker
	Supervisor *presence.Supervisor
	Hub        *ws.Hub
	Tokens     *utils.JWTManager

	redis *redis.Client
	log   *zap.Logger
}

// New 创建服务集合
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, opts Options) (*Services, error) {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = func(string) *zap.Logger { return zap.NewNop() }
	}
	log := opts.Logger("service")

	s := &Services{log: log}

	var store presence.Store
	ttl := 2 * cfg.Game.Turn.DisconnectAfter
	if cfg.Redis.Enabled {
		client, err := presence.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.redis = client
		store = presence.NewRedisStore(client, ttl)
		log.Info("presence store: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		store = presence.NewMemoryStore(ttl, opts.Clock)
	}

	recorder := eventlog.NewRecorder(opts.Logger("eventlog"))
	feed := eventlog.NewFeed(0, opts.Logger("feed"))

	s.Ledger = ledger.NewGormLedger(db, opts.Logger("ledger"))
	s.Settlement = settlement.NewService(db, s.Ledger, settlement.Accounts{
		House:      cfg.Game.Room.HouseAccount,
		Commission: cfg.Game.Room.CommissionAccount,
	}, recorder, opts.Clock, opts.Logger("settlement"))

	rooms, err := room.NewService(room.Options{
		DB:         db,
		Config:     cfg.Game,
		Clock:      opts.Clock,
		Settlement: s.Settlement,
		Recorder:   recorder,
		Feed:       feed,
		Logger:     opts.Logger("room"),
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Rooms = rooms

	s.Presence = presence.NewTracker(store, rooms, opts.Clock)
	s.Supervisor = presence.NewSupervisor(db, rooms, store, s.Settlement, opts.Clock, opts.Logger("presence"))
	s.Hub = ws.NewHub(feed, rooms, s.Presence, cfg.WebSocket, opts.Logger("websocket"))
	s.Tokens = utils.NewJWTManager(cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.ExpireHours)*time.Hour,
		time.Duration(cfg.Security.JWT.RefreshHours)*time.Hour,
	)
	return s, nil
}

// Run 启动后台任务，任一出错则全部退出
func (s *Services) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Supervisor.Run(ctx) })
	g.Go(func() error { return s.Hub.Run(ctx) })
	g.Go(func() error { return s.Presence.Watch(ctx, s.Rooms.Feed()) })
	return g.Wait()
}

// UpdateConfig 配置热更新
func (s *Services) UpdateConfig(cfg *config.Config) {
	s.Rooms.UpdateConfig(cfg.Game)
}

// Close 释放外部连接
func (s *Services) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
