package repository

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/models"
)

// SessionRepository 玩家座位仓储接口
type SessionRepository interface {
	BaseRepository
	Create(ctx context.Context, session *models.PlayerSession) error
	FindByRoom(ctx context.Context, roomID string) ([]*models.PlayerSession, error)
	FindByRoomAndPlayer(ctx context.Context, roomID, playerID string) (*models.PlayerSession, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	MarkRefunded(ctx context.Context, id uint) (bool, error)
	SetTurnDeadline(ctx context.Context, roomID string, seat int, deadline *time.Time) error
	SetOnline(ctx context.Context, roomID, playerID string, online bool, lastSeen *time.Time) error
	FindHumansInActiveRooms(ctx context.Context) ([]*models.PlayerSession, error)
}

// sessionRepo 座位仓储实现
type sessionRepo struct {
	*BaseRepo
}

// NewSessionRepository 创建座位仓储
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepo{BaseRepo: &BaseRepo{db: db}}
}

// Create 创建座位
func (r *sessionRepo) Create(ctx context.Context, session *models.PlayerSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.New(errors.ErrRoomNotJoinable, "seat taken")
		}
		return errors.Wrap(err, errors.ErrDatabaseInsert, "player session")
	}
	return nil
}

// FindByRoom 按座位顺序返回房间内所有座位
func (r *sessionRepo) FindByRoom(ctx context.Context, roomID string) ([]*models.PlayerSession, error) {
	var sessions []*models.PlayerSession
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seat ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return sessions, nil
}

// FindByRoomAndPlayer 查找玩家在房间中的座位
func (r *sessionRepo) FindByRoomAndPlayer(ctx context.Context, roomID, playerID string) (*models.PlayerSession, error) {
	var session models.PlayerSession
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND player_id = ?", roomID, playerID).
		First(&session).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrNotFound, "player not seated")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return &session, nil
}

// Update 更新座位字段，座位号不可修改
func (r *sessionRepo) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	for _, key := range []string{"seat", "room_id", "player_id"} {
		if _, ok := fields[key]; ok {
			return errors.Newf(errors.ErrInvalidParam, "%s is immutable", key)
		}
	}
	err := r.db.WithContext(ctx).
		Model(&models.PlayerSession{}).
		Where("id = ?", id).
		Updates(fields).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "player session")
	}
	return nil
}

// MarkRefunded 标记已退款，返回本次是否真正发生了变更
func (r *sessionRepo) MarkRefunded(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PlayerSession{}).
		Where("id = ? AND refunded = ?", id, false).
		Update("refunded", true)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrDatabaseUpdate, "player session")
	}
	return result.RowsAffected == 1, nil
}

// SetTurnDeadline 仅行动座位持有截止时间
func (r *sessionRepo) SetTurnDeadline(ctx context.Context, roomID string, seat int, deadline *time.Time) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.PlayerSession{}).
		Where("room_id = ?", roomID).
		Update("turn_deadline", nil).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "turn deadline")
	}
	if deadline == nil || seat < 0 {
		return nil
	}
	if err := db.Model(&models.PlayerSession{}).
		Where("room_id = ? AND seat = ?", roomID, seat).
		Update("turn_deadline", deadline).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "turn deadline")
	}
	return nil
}

// SetOnline 同步在线状态
func (r *sessionRepo) SetOnline(ctx context.Context, roomID, playerID string, online bool, lastSeen *time.Time) error {
	fields := map[string]interface{}{"online": online}
	if lastSeen != nil {
		fields["last_heartbeat_at"] = lastSeen
	}
	err := r.db.WithContext(ctx).
		Model(&models.PlayerSession{}).
		Where("room_id = ? AND player_id = ?", roomID, playerID).
		Updates(fields).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "online")
	}
	return nil
}

// FindHumansInActiveRooms 查找等待中或进行中房间的真人座位
func (r *sessionRepo) FindHumansInActiveRooms(ctx context.Context) ([]*models.PlayerSession, error) {
	var sessions []*models.PlayerSession
	err := r.db.WithContext(ctx).
		Joins("JOIN rooms ON rooms.id = player_sessions.room_id").
		Where("rooms.status IN ? AND player_sessions.is_bot = ? AND player_sessions.forfeited = ?",
			[]string{models.RoomStatusWaiting, models.RoomStatusActive}, false, false).
		Find(&sessions).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return sessions, nil
}
