package presence

import (
	"context"
	rand "math/rand/v2"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/bot"
	"github.com/wfunc/wager-engine/internal/config"
	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
	"github.com/wfunc/wager-engine/internal/room"
	"github.com/wfunc/wager-engine/internal/settlement"
)

// 补位超时策略
const (
	FillPolicyCancel = "cancel"
	FillPolicyBots   = "bots"
)

// Rooms 监督任务需要的房间操作
type Rooms interface {
	Config() config.GameConfig
	CurrentTurn(ctx context.Context, roomID string) (*room.Turn, error)
	SubmitAction(ctx context.Context, req room.ActionRequest) (*room.ActionResult, error)
	CancelAndRefund(ctx context.Context, roomID string) (*models.Room, error)
	FillWithBots(ctx context.Context, roomID, requesterID, difficulty string) (*models.Room, error)
}

// Recoverer 结算恢复
type Recoverer interface {
	Recover(ctx context.Context) (settlement.Report, error)
}

// SweepReport 一次扫描的处理结果
type SweepReport struct {
	WentOffline int
	CameOnline  int
	Forced      int
	BotMoves    int
	Cancelled   int
	Filled      int
	Settlement  settlement.Report
}

// Supervisor 周期扫描：同步在线状态、超时代打、机器人行动、补位超时与结算恢复
type Supervisor struct {
	rooms     Rooms
	repo      repository.RoomRepository
	sessions  repository.SessionRepository
	store     Store
	recoverer Recoverer
	clock     quartz.Clock
	rng       *rand.Rand
	log       *zap.Logger
}

// NewSupervisor 创建监督任务
func NewSupervisor(db *gorm.DB, rooms Rooms, store Store, recoverer Recoverer, clock quartz.Clock, log *zap.Logger) *Supervisor {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		rooms:     rooms,
		repo:      repository.NewRoomRepository(db),
		sessions:  repository.NewSessionRepository(db),
		store:     store,
		recoverer: recoverer,
		clock:     clock,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:       log,
	}
}

// Run 按 sweep_interval 扫描直到 ctx 结束
func (s *Supervisor) Run(ctx context.Context) error {
	interval := s.rooms.Config().Turn.SweepInterval
	ticker := s.clock.NewTicker(interval, "presence", "sweep")
	defer ticker.Stop()

	s.log.Info("presence supervisor started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("presence supervisor stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep 执行一轮扫描，单个房间出错不影响其它房间
func (s *Supervisor) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.clock.Now().UTC()
	cfg := s.rooms.Config()

	if err := s.syncPresence(ctx, now, cfg.Turn.DisconnectAfter, &report); err != nil {
		return report, err
	}
	if err := s.expireTurns(ctx, now, &report); err != nil {
		return report, err
	}
	if err := s.driveBots(ctx, now, cfg.Turn.BotDelay, &report); err != nil {
		return report, err
	}
	if err := s.expireFills(ctx, now, cfg.Room, &report); err != nil {
		return report, err
	}
	if s.recoverer != nil {
		rep, err := s.recoverer.Recover(ctx)
		if err != nil {
			return report, err
		}
		report.Settlement = rep
	}
	return report, nil
}

func (s *Supervisor) syncPresence(ctx context.Context, now time.Time, window time.Duration, report *SweepReport) error {
	sessions, err := s.sessions.FindHumansInActiveRooms(ctx)
	if err != nil {
		return err
	}
	for _, ss := range sessions {
		last, ok, err := s.store.LastSeen(ctx, ss.RoomID, ss.PlayerID)
		if err != nil {
			s.log.Warn("presence lookup failed", zap.String("room_id", ss.RoomID), zap.Error(err))
			continue
		}
		if !ok && ss.LastHeartbeatAt != nil {
			last, ok = *ss.LastHeartbeatAt, true
		}
		online := ok && now.Sub(last) <= window
		if online == ss.Online {
			continue
		}

		var seen *time.Time
		if ok {
			seen = &last
		}
		if err := s.sessions.SetOnline(ctx, ss.RoomID, ss.PlayerID, online, seen); err != nil {
			s.log.Warn("presence update failed", zap.String("room_id", ss.RoomID), zap.Error(err))
			continue
		}
		if online {
			report.CameOnline++
		} else {
			report.WentOffline++
			s.log.Info("player offline",
				zap.String("room_id", ss.RoomID),
				zap.String("player_id", ss.PlayerID),
			)
		}
	}
	return nil
}

// expireTurns 回合超时由系统代为执行默认动作，与真人动作竞争时以 turn_seq 判定
func (s *Supervisor) expireTurns(ctx context.Context, now time.Time, report *SweepReport) error {
	rooms, err := s.repo.FindTurnExpired(ctx, now)
	if err != nil {
		return err
	}
	for _, r := range rooms {
		turn, err := s.rooms.CurrentTurn(ctx, r.ID)
		if err != nil {
			s.log.Warn("read turn failed", zap.String("room_id", r.ID), zap.Error(err))
			continue
		}
		if turn.Deadline == nil || turn.Deadline.After(now) {
			continue
		}

		seq := turn.Room.TurnSeq
		action := turn.State.DefaultAction(turn.Session.Seat)
		_, err = s.rooms.SubmitAction(ctx, room.ActionRequest{
			RoomID:       r.ID,
			PlayerID:     turn.Session.PlayerID,
			Action:       action,
			ExpectedTurn: &seq,
			SystemForced: true,
		})
		switch {
		case err == nil:
			report.Forced++
			s.log.Info("turn timed out, default action applied",
				zap.String("room_id", r.ID),
				zap.String("player_id", turn.Session.PlayerID),
				zap.String("action", string(action.Type)),
			)
		case errors.Is(err, errors.ErrStaleTurn), errors.Is(err, errors.ErrRoomNotActive):
			s.log.Debug("timeout lost the race", zap.String("room_id", r.ID), zap.Int64("turn_seq", seq))
		default:
			s.log.Error("forced action failed", zap.String("room_id", r.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Supervisor) driveBots(ctx context.Context, now time.Time, delay time.Duration, report *SweepReport) error {
	rooms, err := s.repo.FindBotTurns(ctx)
	if err != nil {
		return err
	}
	for _, r := range rooms {
		if r.TurnStartedAt != nil && now.Sub(*r.TurnStartedAt) < delay {
			continue
		}
		turn, err := s.rooms.CurrentTurn(ctx, r.ID)
		if err != nil || !turn.Session.IsBot {
			continue
		}

		difficulty, err := bot.ParseDifficulty(turn.Session.BotDifficulty)
		if err != nil {
			difficulty = bot.Normal
		}
		action := bot.For(difficulty, s.rng).Choose(turn.State, turn.Session.Seat)
		seq := turn.Room.TurnSeq
		_, err = s.rooms.SubmitAction(ctx, room.ActionRequest{
			RoomID:       r.ID,
			PlayerID:     turn.Session.PlayerID,
			Action:       action,
			ExpectedTurn: &seq,
			SystemForced: action.SystemOnly(),
		})
		if err != nil {
			if !errors.Is(err, errors.ErrStaleTurn) {
				s.log.Warn("bot action rejected",
					zap.String("room_id", r.ID),
					zap.String("action", string(action.Type)),
					zap.Error(err),
				)
			}
			continue
		}
		report.BotMoves++
	}
	return nil
}

func (s *Supervisor) expireFills(ctx context.Context, now time.Time, cfg config.RoomConfig, report *SweepReport) error {
	rooms, err := s.repo.FindFillExpired(ctx, now)
	if err != nil {
		return err
	}
	for _, r := range rooms {
		if cfg.FillPolicy == FillPolicyBots {
			_, err := s.rooms.FillWithBots(ctx, r.ID, room.SystemActor, cfg.BotDifficulty)
			if err == nil {
				report.Filled++
				continue
			}
			if errors.Is(err, errors.ErrRoomNotJoinable) || errors.Is(err, errors.ErrInvalidTransition) {
				continue
			}
			// 补机器人失败时按取消处理，已入座玩家的报名费不能一直冻结
			s.log.Warn("fill with bots failed, cancelling room", zap.String("room_id", r.ID), zap.Error(err))
		}
		if _, err := s.rooms.CancelAndRefund(ctx, r.ID); err != nil {
			if !errors.Is(err, errors.ErrInvalidTransition) {
				s.log.Error("cancel after fill timeout failed", zap.String("room_id", r.ID), zap.Error(err))
			}
			continue
		}
		report.Cancelled++
	}
	return nil
}
