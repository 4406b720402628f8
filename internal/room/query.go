package room

import (
	"context"
	"time"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
)

// Snapshot 指定玩家视角的房间快照，不含牌堆与他人底牌
type Snapshot struct {
	Room         *models.Room            `json:"room"`
	Seats        []*models.PlayerSession `json:"seats"`
	ViewerSeat   int                     `json:"viewer_seat"`
	State        any                     `json:"state,omitempty"`
	LegalActions []game.Action           `json:"legal_actions,omitempty"`
}

// GetRoomState 房间快照，未入座的玩家以旁观视角查看
func (s *Service) GetRoomState(ctx context.Context, roomID, viewerID string) (*Snapshot, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.FindByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Room: room, Seats: sessions, ViewerSeat: models.NoSeat}
	if viewer := sessionOf(sessions, viewerID); viewer != nil {
		snap.ViewerSeat = viewer.Seat
	}
	if len(room.State) == 0 {
		return snap, nil
	}

	state, err := s.decode(room)
	if err != nil {
		return nil, err
	}
	snap.State = state.Public(snap.ViewerSeat)
	if snap.ViewerSeat != models.NoSeat && room.Status == models.RoomStatusActive {
		snap.LegalActions = state.LegalActions(snap.ViewerSeat)
	}
	return snap, nil
}

func (s *Service) decode(room *models.Room) (game.State, error) {
	engine, err := s.engine(room.Variant)
	if err != nil {
		return nil, err
	}
	return engine.Decode(room.State)
}

// ListActions 房间操作日志
func (s *Service) ListActions(ctx context.Context, roomID string) ([]*models.ActionLogEntry, error) {
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.logs.ListByRoom(ctx, roomID)
}

// ListRooms 按状态分页列出房间，status 为空时不过滤
func (s *Service) ListRooms(ctx context.Context, status string, page, pageSize int) ([]*models.Room, *repository.Pagination, error) {
	p := repository.NewPagination(page, pageSize)
	rooms, err := s.rooms.ListByStatus(ctx, status, p)
	if err != nil {
		return nil, nil, err
	}
	return rooms, p, nil
}

// VerifyReplay 按日志重放并与持久化状态比较
func (s *Service) VerifyReplay(ctx context.Context, roomID string) (bool, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	if len(room.State) == 0 {
		return false, errors.New(errors.ErrRoomNotActive, "game not started")
	}
	entries, err := s.logs.ListByRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	engine, err := s.engine(room.Variant)
	if err != nil {
		return false, err
	}

	state, err := eventlog.Replay(engine, entries)
	if err != nil {
		return false, err
	}
	raw, err := state.Marshal()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrDataIntegrity, "marshal replayed state")
	}
	return eventlog.SameState(raw, room.State), nil
}

// Turn 当前回合，供超时与机器人调度使用
type Turn struct {
	Room     *models.Room
	Session  *models.PlayerSession
	State    game.State
	Deadline *time.Time
}

// CurrentTurn 读取进行中房间的当前行动者，不加锁，提交时以 turn_seq 校验
func (s *Service) CurrentTurn(ctx context.Context, roomID string) (*Turn, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusActive {
		return nil, errors.Newf(errors.ErrRoomNotActive, "room is %s", room.Status)
	}
	sessions, err := s.sessions.FindByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	state, err := s.decode(room)
	if err != nil {
		return nil, err
	}

	turn := &Turn{Room: room, State: state, Deadline: room.TurnDeadline}
	for _, ss := range sessions {
		if ss.Seat == room.CurrentSeat {
			turn.Session = ss
		}
	}
	if turn.Session == nil {
		return nil, errors.Newf(errors.ErrDataIntegrity, "room %s current seat %d has no session", roomID, room.CurrentSeat)
	}
	return turn, nil
}

// Seated 玩家是否在房间中入座
// 已结束的房间视为无人入座
func (s *Service) Seated(ctx context.Context, roomID, playerID string) (bool, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, errors.ErrRoomNotFound) {
			return false, nil
		}
		return false, err
	}
	if room.IsFinished() {
		return false, nil
	}
	if _, err := s.sessions.FindByRoomAndPlayer(ctx, roomID, playerID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
