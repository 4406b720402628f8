package room

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
)

// ActionRequest 提交动作，ExpectedTurn 为客户端看到的 turn_seq
type ActionRequest struct {
	RoomID       string
	PlayerID     string
	Action       game.Action
	ExpectedTurn *int64
	SystemForced bool
}

// ActionResult 动作被接受后的结果
type ActionResult struct {
	RoomID      string         `json:"room_id"`
	Seq         int64          `json:"seq"`
	TurnSeq     int64          `json:"turn_seq"`
	Type        string         `json:"type"`
	Delta       map[string]any `json:"delta"`
	Status      string         `json:"status"`
	CurrentSeat int            `json:"current_seat"`
	Terminal    bool           `json:"terminal"`
	WinnerID    string         `json:"winner_id,omitempty"`
}

func resultOf(room *models.Room, entry *models.ActionLogEntry, delta map[string]any) *ActionResult {
	return &ActionResult{
		RoomID:      room.ID,
		Seq:         entry.Seq,
		TurnSeq:     room.TurnSeq,
		Type:        entry.ActionType,
		Delta:       delta,
		Status:      room.Status,
		CurrentSeat: room.CurrentSeat,
		Terminal:    room.Status == models.RoomStatusCompleted,
		WinnerID:    room.Winner(),
	}
}

// SubmitAction 在房间锁内校验并执行动作，状态、日志与房间行在同一事务中写入
func (s *Service) SubmitAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if err := req.Action.Validate(); err != nil {
		return nil, err
	}
	if req.Action.SystemOnly() && !req.SystemForced {
		return nil, errors.Newf(errors.ErrInvalidAction, "%s is reserved for the system", req.Action.Type)
	}

	var delta map[string]any
	room, entry, err := s.mutate(ctx, req.RoomID, func(tx *repository.Transaction, room *models.Room) (*models.ActionLogEntry, error) {
		if room.Status != models.RoomStatusActive {
			return nil, errors.Newf(errors.ErrRoomNotActive, "room is %s", room.Status)
		}
		if req.ExpectedTurn != nil && *req.ExpectedTurn != room.TurnSeq {
			return nil, errors.Newf(errors.ErrStaleTurn, "turn %d, now %d", *req.ExpectedTurn, room.TurnSeq)
		}

		sessions, err := tx.Sessions().FindByRoom(tx.Context(), room.ID)
		if err != nil {
			return nil, err
		}
		actor := sessionOf(sessions, req.PlayerID)
		if actor == nil || actor.Seat != room.CurrentSeat {
			return nil, errors.Newf(errors.ErrNotYourTurn, "seat %d is acting", room.CurrentSeat)
		}

		engine, err := s.engine(room.Variant)
		if err != nil {
			return nil, err
		}
		state, err := engine.Decode(room.State)
		if err != nil {
			return nil, err
		}

		src := fairness.Record(s.source)
		out, err := state.Apply(actor.Seat, req.Action, src)
		if err != nil {
			return nil, err
		}
		delta = out.Delta

		rec := eventlog.Record{
			RoomID:       room.ID,
			ActorID:      actor.PlayerID,
			ActorSeat:    actor.Seat,
			Type:         string(req.Action.Type),
			Payload:      req.Action,
			Delta:        out.Delta,
			Chance:       src.Chance(),
			SystemForced: req.SystemForced,
			TurnSeq:      room.TurnSeq,
		}
		room.TurnSeq++
		return s.applyOutcome(tx, room, sessions, state, rec)
	})
	if err != nil {
		s.log.Debug("action rejected",
			zap.String("room_id", req.RoomID),
			zap.String("player_id", req.PlayerID),
			zap.String("action", string(req.Action.Type)),
			zap.Error(err),
		)
		return nil, err
	}
	return resultOf(room, entry, delta), nil
}

func sessionOf(sessions []*models.PlayerSession, playerID string) *models.PlayerSession {
	for _, ss := range sessions {
		if ss.PlayerID == playerID {
			return ss
		}
	}
	return nil
}

// applyOutcome 写回状态、推进回合或进入终局第一阶段，并追加日志
func (s *Service) applyOutcome(tx *repository.Transaction, room *models.Room, sessions []*models.PlayerSession, state game.State, rec eventlog.Record) (*models.ActionLogEntry, error) {
	raw, err := state.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "marshal state")
	}
	room.State = datatypes.JSON(raw)
	ctx := tx.Context()
	now := s.now()

	if state.Terminal() {
		if err := Transition(room, EventComplete); err != nil {
			return nil, err
		}
		var winner *models.PlayerSession
		for _, ss := range sessions {
			if ss.Seat == state.Winner() {
				winner = ss
			}
		}
		if winner == nil {
			return nil, errors.Newf(errors.ErrDataIntegrity, "winner seat %d has no session", state.Winner())
		}
		winnerID := winner.PlayerID
		room.WinnerID = &winnerID
		room.PayoutStatus = models.PayoutPending
		room.CompletedAt = &now
		room.CurrentSeat = models.NoSeat
		room.TurnStartedAt = nil
		room.TurnDeadline = nil
	} else {
		seat := state.CurrentSeat()
		// 认输不影响行动座位时保留原截止时间
		if seat != room.CurrentSeat || rec.Type != game.EventForfeit || room.TurnDeadline == nil {
			deadline := now.Add(s.Config().Turn.Timeout)
			room.CurrentSeat = seat
			room.TurnStartedAt = &now
			room.TurnDeadline = &deadline
		}
	}

	if err := tx.Sessions().SetTurnDeadline(ctx, room.ID, room.CurrentSeat, room.TurnDeadline); err != nil {
		return nil, err
	}
	if stacked, ok := state.(game.Stacked); ok {
		stacks := stacked.Stacks()
		for _, ss := range sessions {
			chips, ok := stacks[ss.Seat]
			if !ok || chips == ss.Chips {
				continue
			}
			if err := tx.Sessions().Update(ctx, ss.ID, map[string]interface{}{"chips": chips}); err != nil {
				return nil, err
			}
			ss.Chips = chips
		}
	}

	return s.recorder.Append(tx, rec)
}

// startGame 初始化对局，房间进入 active
func (s *Service) startGame(tx *repository.Transaction, room *models.Room, sessions []*models.PlayerSession) (*models.ActionLogEntry, error) {
	engine, err := s.engine(room.Variant)
	if err != nil {
		return nil, err
	}

	seats := make([]game.Seat, 0, len(sessions))
	for _, ss := range sessions {
		seats = append(seats, game.Seat{Seat: ss.Seat, PlayerID: ss.PlayerID, IsBot: ss.IsBot})
	}

	src := fairness.Record(s.source)
	state, out, err := engine.Start(seats, room.DealerIndex, src)
	if err != nil {
		return nil, err
	}
	if err := Transition(room, game.EventStart); err != nil {
		return nil, err
	}
	now := s.now()
	room.StartedAt = &now
	room.FillDeadline = nil

	if labeled, ok := state.(game.Labeled); ok {
		labels := labeled.SeatLabels()
		for _, ss := range sessions {
			if label := labels[ss.Seat]; label != "" {
				if err := tx.Sessions().Update(tx.Context(), ss.ID, map[string]interface{}{"color": label}); err != nil {
					return nil, err
				}
				ss.Color = label
			}
		}
	}

	return s.applyOutcome(tx, room, sessions, state, eventlog.Record{
		RoomID:       room.ID,
		ActorID:      SystemActor,
		ActorSeat:    models.NoSeat,
		Type:         game.EventStart,
		Payload:      eventlog.StartPayload{Seats: seats, Dealer: room.DealerIndex, Rules: engine.Rules()},
		Delta:        out.Delta,
		Chance:       src.Chance(),
		SystemForced: true,
		TurnSeq:      room.TurnSeq,
	})
}

// Forfeit 玩家认输，座位标记为离线，只剩一人时直接决出赢家
func (s *Service) Forfeit(ctx context.Context, roomID, playerID string, systemForced bool) (*ActionResult, error) {
	var delta map[string]any
	room, entry, err := s.mutate(ctx, roomID, func(tx *repository.Transaction, room *models.Room) (*models.ActionLogEntry, error) {
		if room.Status != models.RoomStatusActive {
			return nil, errors.Newf(errors.ErrRoomNotActive, "room is %s", room.Status)
		}
		sessions, err := tx.Sessions().FindByRoom(tx.Context(), room.ID)
		if err != nil {
			return nil, err
		}
		actor := sessionOf(sessions, playerID)
		if actor == nil {
			return nil, errors.New(errors.ErrNotFound, "player not seated")
		}
		if actor.Forfeited {
			return nil, errors.New(errors.ErrInvalidAction, "already forfeited")
		}

		engine, err := s.engine(room.Variant)
		if err != nil {
			return nil, err
		}
		state, err := engine.Decode(room.State)
		if err != nil {
			return nil, err
		}
		src := fairness.Record(s.source)
		out, err := state.Forfeit(actor.Seat, src)
		if err != nil {
			return nil, err
		}
		delta = out.Delta

		if err := tx.Sessions().Update(tx.Context(), actor.ID, map[string]interface{}{
			"forfeited": true,
			"online":    false,
		}); err != nil {
			return nil, err
		}
		actor.Forfeited, actor.Online = true, false

		rec := eventlog.Record{
			RoomID:       room.ID,
			ActorID:      actor.PlayerID,
			ActorSeat:    actor.Seat,
			Type:         game.EventForfeit,
			Delta:        out.Delta,
			Chance:       src.Chance(),
			SystemForced: systemForced,
			TurnSeq:      room.TurnSeq,
		}
		room.TurnSeq++
		return s.applyOutcome(tx, room, sessions, state, rec)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("player forfeited",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.Bool("system_forced", systemForced),
	)
	return resultOf(room, entry, delta), nil
}
