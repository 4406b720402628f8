package room

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wfunc/wager-engine/internal/bot"
	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/logger"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
)

// CreateRequest 创建房间参数
type CreateRequest struct {
	CreatorID string `json:"-"`
	Variant   string `json:"variant" binding:"required"`
	SeatCount int    `json:"seat_count" binding:"required"`
	EntryFee  int64  `json:"entry_fee" binding:"required"`
}

func (s *Service) validateCreate(req CreateRequest) error {
	cfg := s.Config().Room
	if req.CreatorID == "" {
		return errors.New(errors.ErrInvalidParam, "creator")
	}
	var seats []int
	switch game.Variant(req.Variant) {
	case game.VariantRace:
		seats = cfg.RaceSeatCounts
	case game.VariantHoldem:
		seats = cfg.HoldemSeatCounts
	default:
		return errors.Newf(errors.ErrInvalidConfiguration, "variant %q", req.Variant)
	}
	if !slices.Contains(seats, req.SeatCount) {
		return errors.Newf(errors.ErrInvalidConfiguration, "%s does not support %d seats", req.Variant, req.SeatCount)
	}
	if req.EntryFee < cfg.MinEntryFee || req.EntryFee > cfg.MaxEntryFee {
		return errors.Newf(errors.ErrInvalidConfiguration, "entry fee %d outside [%d, %d]", req.EntryFee, cfg.MinEntryFee, cfg.MaxEntryFee)
	}
	return nil
}

// CreateRoom 创建房间并托管创建者的报名费，创建者坐0号位
func (s *Service) CreateRoom(ctx context.Context, req CreateRequest) (*models.Room, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	cfg := s.Config().Room
	now := s.now()
	deadline := now.Add(cfg.FillTimeout)
	room := &models.Room{
		ID:            uuid.NewString(),
		Variant:       req.Variant,
		Status:        models.RoomStatusWaiting,
		SeatCount:     req.SeatCount,
		EntryFee:      req.EntryFee,
		CommissionBps: cfg.CommissionBps,
		CurrentSeat:   models.NoSeat,
		PayoutStatus:  models.PayoutNone,
		CreatedBy:     req.CreatorID,
		FillDeadline:  &deadline,
	}
	session := &models.PlayerSession{
		RoomID:          room.ID,
		Seat:            0,
		PlayerID:        req.CreatorID,
		Online:          true,
		LastHeartbeatAt: &now,
	}

	var entry *models.ActionLogEntry
	err := s.tm.WithTransaction(ctx, func(tx *repository.Transaction) error {
		if err := s.settlement.Escrow(tx, room, session); err != nil {
			return err
		}
		if err := tx.Rooms().Create(tx.Context(), room); err != nil {
			return err
		}
		if err := tx.Sessions().Create(tx.Context(), session); err != nil {
			return err
		}
		var err error
		entry, err = s.recorder.Append(tx, eventlog.Record{
			RoomID:    room.ID,
			ActorID:   req.CreatorID,
			ActorSeat: 0,
			Type:      game.EventCreate,
			Payload:   req,
			Delta:     map[string]any{"seat": 0, "escrow": room.EntryFee, "pot": room.Pot},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(room, entry)

	logger.LogRoomEvent(s.log, game.EventCreate, room.ID,
		zap.String("variant", room.Variant),
		zap.Int("seat_count", room.SeatCount),
		zap.Int64("entry_fee", room.EntryFee),
	)
	return room, nil
}

// JoinRoom 加入等待中的房间，坐满后立即开局
func (s *Service) JoinRoom(ctx context.Context, roomID, playerID string) (*models.Room, *models.PlayerSession, error) {
	if playerID == "" {
		return nil, nil, errors.New(errors.ErrInvalidParam, "player")
	}

	var session *models.PlayerSession
	room, _, err := s.mutate(ctx, roomID, func(tx *repository.Transaction, room *models.Room) (*models.ActionLogEntry, error) {
		// 只有还能开局的房间可以入座，状态先于座位数检查
		if !CanTransition(room.Status, game.EventStart) {
			return nil, errors.Newf(errors.ErrRoomNotJoinable, "room is %s", room.Status)
		}
		sessions, err := tx.Sessions().FindByRoom(tx.Context(), room.ID)
		if err != nil {
			return nil, err
		}
		for _, ss := range sessions {
			if ss.PlayerID == playerID {
				return nil, errors.New(errors.ErrRoomNotJoinable, "already seated")
			}
		}
		if len(sessions) >= room.SeatCount {
			return nil, errors.New(errors.ErrRoomFull, room.ID)
		}

		session, err = s.seat(tx, room, sessions, playerID, "")
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
		entry, err := s.recorder.Append(tx, eventlog.Record{
			RoomID:    room.ID,
			ActorID:   playerID,
			ActorSeat: session.Seat,
			Type:      game.EventJoin,
			Delta:     map[string]any{"seat": session.Seat, "escrow": session.EscrowAmount, "pot": room.Pot},
		})
		if err != nil {
			return nil, err
		}

		if len(sessions) < room.SeatCount {
			return entry, nil
		}
		return s.startGame(tx, room, sessions)
	})
	if err != nil {
		return nil, nil, err
	}

	logger.LogRoomEvent(s.log, game.EventJoin, room.ID,
		zap.String("player_id", playerID),
		zap.Int("seat", session.Seat),
		zap.String("status", room.Status),
	)
	return room, session, nil
}

// seat 分配最小的空座位并托管报名费
func (s *Service) seat(tx *repository.Transaction, room *models.Room, sessions []*models.PlayerSession, playerID string, difficulty bot.Difficulty) (*models.PlayerSession, error) {
	taken := make(map[int]bool, len(sessions))
	for _, ss := range sessions {
		taken[ss.Seat] = true
	}
	seat := 0
	for taken[seat] {
		seat++
	}

	now := s.now()
	session := &models.PlayerSession{
		RoomID:   room.ID,
		Seat:     seat,
		PlayerID: playerID,
		Online:   true,
	}
	if difficulty != "" {
		session.IsBot = true
		session.BotDifficulty = string(difficulty)
	} else {
		session.LastHeartbeatAt = &now
	}

	if err := s.settlement.Escrow(tx, room, session); err != nil {
		return nil, err
	}
	if err := tx.Sessions().Create(tx.Context(), session); err != nil {
		return nil, err
	}
	return session, nil
}

// FillWithBots 用机器人补满空位并开局，机器人报名费由平台账户出资
func (s *Service) FillWithBots(ctx context.Context, roomID, requesterID, difficulty string) (*models.Room, error) {
	d, err := bot.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	if difficulty == "" {
		if d, err = bot.ParseDifficulty(s.Config().Room.BotDifficulty); err != nil {
			return nil, err
		}
	}

	added := 0
	room, _, err := s.mutate(ctx, roomID, func(tx *repository.Transaction, room *models.Room) (*models.ActionLogEntry, error) {
		if requesterID != SystemActor && requesterID != room.CreatedBy {
			return nil, errors.New(errors.ErrPermissionDenied, "only the creator can start with bots")
		}
		if !CanTransition(room.Status, game.EventStart) {
			return nil, errors.Newf(errors.ErrRoomNotJoinable, "room is %s", room.Status)
		}
		sessions, err := tx.Sessions().FindByRoom(tx.Context(), room.ID)
		if err != nil {
			return nil, err
		}

		added = 0
		for len(sessions) < room.SeatCount {
			session, err := s.seat(tx, room, sessions, bot.PlayerPrefix+uuid.NewString(), d)
			if err != nil {
				return nil, err
			}
			if _, err := s.recorder.Append(tx, eventlog.Record{
				RoomID:       room.ID,
				ActorID:      session.PlayerID,
				ActorSeat:    session.Seat,
				Type:         game.EventJoin,
				Delta:        map[string]any{"seat": session.Seat, "bot": string(d), "pot": room.Pot},
				SystemForced: true,
			}); err != nil {
				return nil, err
			}
			sessions = append(sessions, session)
			added++
		}
		return s.startGame(tx, room, sessions)
	})
	if err != nil {
		return nil, err
	}

	logger.LogRoomEvent(s.log, "fill_with_bots", room.ID,
		zap.Int("bots", added),
		zap.String("difficulty", string(d)),
	)
	return room, nil
}

// CancelRoom 取消等待中的房间并逐个座位退款
func (s *Service) CancelRoom(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	room, _, err := s.mutate(ctx, roomID, func(tx *repository.Transaction, room *models.Room) (*models.ActionLogEntry, error) {
		if requesterID != SystemActor && requesterID != room.CreatedBy {
			return nil, errors.New(errors.ErrPermissionDenied, "only the creator can cancel")
		}
		if err := Transition(room, game.EventCancel); err != nil {
			return nil, err
		}
		room.FillDeadline = nil
		return s.recorder.Append(tx, eventlog.Record{
			RoomID:       room.ID,
			ActorID:      requesterID,
			ActorSeat:    models.NoSeat,
			Type:         game.EventCancel,
			Delta:        map[string]any{"pot": room.Pot},
			SystemForced: requesterID == SystemActor,
		})
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// CancelAndRefund 系统取消，用于补位超时
func (s *Service) CancelAndRefund(ctx context.Context, roomID string) (*models.Room, error) {
	return s.CancelRoom(ctx, roomID, SystemActor)
}
