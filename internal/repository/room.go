package repository

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/models"
)

// RoomRepository 房间仓储接口
type RoomRepository interface {
	BaseRepository
	Create(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id string) (*models.Room, error)
	UpdateVersioned(ctx context.Context, room *models.Room) error
	ListByStatus(ctx context.Context, status string, pagination *Pagination) ([]*models.Room, error)
	FindTurnExpired(ctx context.Context, now time.Time) ([]*models.Room, error)
	FindFillExpired(ctx context.Context, now time.Time) ([]*models.Room, error)
	FindPendingPayout(ctx context.Context) ([]*models.Room, error)
	FindCancelledUnrefunded(ctx context.Context) ([]*models.Room, error)
	FindBotTurns(ctx context.Context) ([]*models.Room, error)
}

// roomRepo 房间仓储实现
type roomRepo struct {
	*BaseRepo
}

// NewRoomRepository 创建房间仓储
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepo{BaseRepo: &BaseRepo{db: db}}
}

// Create 创建房间
func (r *roomRepo) Create(ctx context.Context, room *models.Room) error {
	if room.Version == 0 {
		room.Version = 1
	}
	if err := r.db.WithContext(ctx).Omit("Sessions").Create(room).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "room")
	}
	return nil
}

// FindByID 根据ID查找房间
func (r *roomRepo) FindByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrRoomNotFound, id)
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return &room, nil
}

// UpdateVersioned 按版本号更新房间，版本不一致返回 ErrVersionConflict
func (r *roomRepo) UpdateVersioned(ctx context.Context, room *models.Room) error {
	result := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ? AND version = ?", room.ID, room.Version).
		Updates(map[string]interface{}{
			"status":          room.Status,
			"pot":             room.Pot,
			"dealer_index":    room.DealerIndex,
			"current_seat":    room.CurrentSeat,
			"turn_seq":        room.TurnSeq,
			"turn_started_at": room.TurnStartedAt,
			"turn_deadline":   room.TurnDeadline,
			"winner_id":       room.WinnerID,
			"payout_status":   room.PayoutStatus,
			"state":           room.State,
			"fill_deadline":   room.FillDeadline,
			"started_at":      room.StartedAt,
			"completed_at":    room.CompletedAt,
			"archived_at":     room.ArchivedAt,
			"version":         room.Version + 1,
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrDatabaseUpdate, "room")
	}
	if result.RowsAffected == 0 {
		return errors.Newf(errors.ErrVersionConflict, "room %s version %d", room.ID, room.Version)
	}

	room.Version++
	return nil
}

// ListByStatus 按状态分页查询房间
func (r *roomRepo) ListByStatus(ctx context.Context, status string, pagination *Pagination) ([]*models.Room, error) {
	var rooms []*models.Room
	query := r.db.WithContext(ctx).Model(&models.Room{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if pagination != nil {
		if err := query.Count(&pagination.Total).Error; err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
		}
		query = query.Scopes(Paginate(pagination))
	}

	if err := query.Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return rooms, nil
}

// FindTurnExpired 查找回合已超时的进行中房间
func (r *roomRepo) FindTurnExpired(ctx context.Context, now time.Time) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).
		Where("status = ? AND turn_deadline IS NOT NULL AND turn_deadline <= ?", models.RoomStatusActive, now).
		Order("turn_deadline ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return rooms, nil
}

// FindFillExpired 查找等待补位超时的房间
func (r *roomRepo) FindFillExpired(ctx context.Context, now time.Time) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).
		Where("status = ? AND fill_deadline IS NOT NULL AND fill_deadline <= ?", models.RoomStatusWaiting, now).
		Find(&rooms).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return rooms, nil
}

// FindPendingPayout 查找已完成但未派奖的房间
func (r *roomRepo) FindPendingPayout(ctx context.Context) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).
		Where("status = ? AND payout_status = ?", models.RoomStatusCompleted, models.PayoutPending).
		Find(&rooms).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return rooms, nil
}

// FindCancelledUnrefunded 查找已取消但仍有未退款座位的房间
func (r *roomRepo) FindCancelledUnrefunded(ctx context.Context) ([]*models.Room, error) {
	var rooms []*models.Room
	sub := r.db.Model(&models.PlayerSession{}).
		Select("room_id").
		Where("refunded = ? AND escrow_amount > 0", false)
	err := r.db.WithContext(ctx).
		Where("status = ? AND id IN (?)", models.RoomStatusCancelled, sub).
		Find(&rooms).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return rooms, nil
}

// FindBotTurns 查找当前轮到机器人行动的房间
func (r *roomRepo) FindBotTurns(ctx context.Context) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN player_sessions ON player_sessions.room_id = rooms.id AND player_sessions.seat = rooms.current_seat").
		Where("rooms.status = ? AND player_sessions.is_bot = ?", models.RoomStatusActive, true).
		Find(&rooms).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return rooms, nil
}
