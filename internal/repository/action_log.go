package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/models"
)

// ActionLogRepository 操作日志仓储接口
type ActionLogRepository interface {
	BaseRepository
	Append(ctx context.Context, entry *models.ActionLogEntry) error
	LastSeq(ctx context.Context, roomID string) (int64, error)
	ListByRoom(ctx context.Context, roomID string) ([]*models.ActionLogEntry, error)
}

// actionLogRepo 操作日志仓储实现
type actionLogRepo struct {
	*BaseRepo
}

// NewActionLogRepository 创建操作日志仓储
func NewActionLogRepository(db *gorm.DB) ActionLogRepository {
	return &actionLogRepo{BaseRepo: &BaseRepo{db: db}}
}

// Append 追加日志并分配房间内递增的序号，需在房间事务内调用
func (r *actionLogRepo) Append(ctx context.Context, entry *models.ActionLogEntry) error {
	last, err := r.LastSeq(ctx, entry.RoomID)
	if err != nil {
		return err
	}
	entry.Seq = last + 1

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "action log")
	}
	return nil
}

// LastSeq 房间最后一条日志序号，无日志时为0
func (r *actionLogRepo) LastSeq(ctx context.Context, roomID string) (int64, error) {
	var last int64
	err := r.db.WithContext(ctx).
		Model(&models.ActionLogEntry{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return last, nil
}

// ListByRoom 按序号返回房间全部日志
func (r *actionLogRepo) ListByRoom(ctx context.Context, roomID string) ([]*models.ActionLogEntry, error) {
	var entries []*models.ActionLogEntry
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return entries, nil
}
