// Package room 房间生命周期与回合调度，每个房间同一时刻只有一个写者
package room

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/config"
	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/game/holdem"
	"github.com/wfunc/wager-engine/internal/game/race"
	"github.com/wfunc/wager-engine/internal/logger"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
	"github.com/wfunc/wager-engine/internal/settlement"
)

// SystemActor 系统发起的操作在日志中的 actor
const SystemActor = "system"

// Options 房间服务依赖
type Options struct {
	DB         *gorm.DB
	Config     config.GameConfig
	Engines    game.Registry // 为空时按 Config 构建
	Source     fairness.Source
	Clock      quartz.Clock
	Settlement *settlement.Service
	Recorder   *eventlog.Recorder
	Feed       *eventlog.Feed
	Logger     *zap.Logger
}

// Service 房间服务
type Service struct {
	db         *gorm.DB
	tm         repository.TransactionManager
	rooms      repository.RoomRepository
	sessions   repository.SessionRepository
	logs       repository.ActionLogRepository
	source     fairness.Source
	clock      quartz.Clock
	settlement *settlement.Service
	recorder   *eventlog.Recorder
	feed       *eventlog.Feed
	locker     *Locker
	log        *zap.Logger

	mu      sync.RWMutex
	cfg     config.GameConfig
	engines game.Registry
}

// Engines 按配置构建各玩法规则
func Engines(cfg config.GameConfig) game.Registry {
	return game.NewRegistry(
		race.NewEngine(race.Rules{
			SafeSquares:         cfg.Race.SafeSquares,
			MaxConsecutiveSixes: cfg.Race.MaxConsecutiveSixes,
		}),
		holdem.NewEngine(holdem.Rules{
			StartingStack: cfg.Holdem.StartingStack,
			SmallBlind:    cfg.Holdem.SmallBlind,
			BigBlind:      cfg.Holdem.BigBlind,
			MinBet:        cfg.Holdem.MinBet,
			MaxHands:      cfg.Holdem.MaxHands,
		}, nil),
	)
}

// NewService 创建房间服务
func NewService(opts Options) (*Service, error) {
	if opts.DB == nil || opts.Settlement == nil {
		return nil, errors.New(errors.ErrConfigMissing, "room service needs db and settlement")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Source == nil {
		src, err := fairness.NewCryptoSource()
		if err != nil {
			return nil, err
		}
		opts.Source = src
	}
	if opts.Recorder == nil {
		opts.Recorder = eventlog.NewRecorder(opts.Logger)
	}
	if opts.Feed == nil {
		opts.Feed = eventlog.NewFeed(0, opts.Logger)
	}
	if opts.Engines == nil {
		opts.Engines = Engines(opts.Config)
	}

	return &Service{
		db:         opts.DB,
		tm:         repository.NewTransactionManager(opts.DB),
		rooms:      repository.NewRoomRepository(opts.DB),
		sessions:   repository.NewSessionRepository(opts.DB),
		logs:       repository.NewActionLogRepository(opts.DB),
		source:     opts.Source,
		clock:      opts.Clock,
		settlement: opts.Settlement,
		recorder:   opts.Recorder,
		feed:       opts.Feed,
		locker:     NewLocker(),
		log:        opts.Logger,
		cfg:        opts.Config,
		engines:    opts.Engines,
	}, nil
}

// UpdateConfig 热更新，只影响之后创建的房间和之后开始的回合
func (s *Service) UpdateConfig(cfg config.GameConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.engines = Engines(cfg)
	s.log.Info("room config reloaded",
		zap.Duration("turn_timeout", cfg.Turn.Timeout),
		zap.Int("commission_bps", cfg.Room.CommissionBps),
	)
}

// Config 当前配置
func (s *Service) Config() config.GameConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Feed 房间变更广播
func (s *Service) Feed() *eventlog.Feed {
	return s.feed
}

func (s *Service) engine(variant string) (game.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engines[game.Variant(variant)]
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfiguration, "variant %q", variant)
	}
	return e, nil
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// mutation 在房间事务内修改房间，返回本次最后一条日志
type mutation func(tx *repository.Transaction, room *models.Room) (*models.ActionLogEntry, error)

// mutate 加房间锁，在事务内读取、修改并按版本号写回，版本冲突时整体重试
func (s *Service) mutate(ctx context.Context, roomID string, fn mutation) (*models.Room, *models.ActionLogEntry, error) {
	unlock := s.locker.Lock(roomID)
	defer unlock()

	var (
		room   *models.Room
		entry  *models.ActionLogEntry
		before string
	)
	retries := s.Config().Room.MaxRetries
	for attempt := 0; ; attempt++ {
		err := s.tm.WithTransaction(ctx, func(tx *repository.Transaction) error {
			var err error
			room, err = tx.Rooms().FindByID(tx.Context(), roomID)
			if err != nil {
				return err
			}
			before = room.Status
			if entry, err = fn(tx, room); err != nil {
				return err
			}
			return tx.Rooms().UpdateVersioned(tx.Context(), room)
		})
		if err == nil {
			break
		}
		if errors.Is(err, errors.ErrVersionConflict) && attempt < retries {
			s.log.Warn("room version conflict, retrying",
				zap.String("room_id", roomID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return nil, nil, err
	}

	// 已提交的结果不随请求取消
	s.afterCommit(context.WithoutCancel(ctx), room, before, entry)
	return room, entry, nil
}

// afterCommit 广播变更，终局派奖，取消退款，仍持有房间锁
func (s *Service) afterCommit(ctx context.Context, room *models.Room, before string, entry *models.ActionLogEntry) {
	s.publish(room, entry)

	switch {
	case before != models.RoomStatusCompleted && room.Status == models.RoomStatusCompleted:
		logger.LogRoomEvent(s.log, EventComplete, room.ID, zap.String("winner_id", room.Winner()))
		res, err := s.settlement.Settle(ctx, room.ID, room.Winner())
		if err != nil {
			if !errors.Is(err, errors.ErrSettlementAlreadyCompleted) {
				s.log.Error("settle after completion failed, left for recovery",
					zap.String("room_id", room.ID), zap.Error(err))
			}
			return
		}
		room.PayoutStatus = models.PayoutPaid
		room.Version++
		s.publishType(room, game.EventSettle)
		s.log.Debug("room settled", zap.String("room_id", room.ID), zap.Int64("payout", res.Payout))

	case before == models.RoomStatusWaiting && room.Status == models.RoomStatusCancelled:
		n, err := s.settlement.Refund(ctx, room.ID)
		if err != nil {
			s.log.Error("refund after cancel failed, left for recovery",
				zap.String("room_id", room.ID), zap.Error(err))
			return
		}
		logger.LogRoomEvent(s.log, game.EventCancel, room.ID, zap.Int("refunded", n))
	}
}

func (s *Service) publish(room *models.Room, entry *models.ActionLogEntry) {
	if entry == nil {
		return
	}
	s.feed.Publish(eventlog.Event{
		RoomID:  room.ID,
		Seq:     entry.Seq,
		Type:    entry.ActionType,
		Status:  room.Status,
		TurnSeq: room.TurnSeq,
		At:      s.now(),
	})
}

func (s *Service) publishType(room *models.Room, eventType string) {
	seq, err := s.logs.LastSeq(context.Background(), room.ID)
	if err != nil {
		s.log.Warn("read last seq failed", zap.String("room_id", room.ID), zap.Error(err))
	}
	s.feed.Publish(eventlog.Event{
		RoomID:  room.ID,
		Seq:     seq,
		Type:    eventType,
		Status:  room.Status,
		TurnSeq: room.TurnSeq,
		At:      s.now(),
	})
}
