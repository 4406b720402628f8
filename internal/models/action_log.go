package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
)

// ActionLogEntry 操作日志，只追加不修改
type ActionLogEntry struct {
	ID           uint           `gorm:"primaryKey" json:"-"`
	RoomID       string         `gorm:"size:36;not null;uniqueIndex:idx_action_room_seq" json:"room_id"`
	Seq          int64          `gorm:"not null;uniqueIndex:idx_action_room_seq" json:"seq"`
	ActorID      string         `gorm:"size:64" json:"actor_id"`
	ActorSeat    int            `json:"actor_seat"`
	ActionType   string         `gorm:"size:16;not null;index" json:"action_type"`
	Payload      datatypes.JSON `json:"payload"`
	Delta        datatypes.JSON `json:"delta"`
	Chance       datatypes.JSON `json:"-"` // 随机结果，仅用于重放
	SystemForced bool           `gorm:"default:false" json:"system_forced"`
	TurnSeq      int64          `json:"turn_seq"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName 指定表名
func (ActionLogEntry) TableName() string {
	return "action_log_entries"
}

// BeforeUpdate 拒绝修改
func (e *ActionLogEntry) BeforeUpdate(tx *gorm.DB) error {
	return errors.New(errors.ErrLogImmutable, "update")
}

// BeforeDelete 拒绝删除
func (e *ActionLogEntry) BeforeDelete(tx *gorm.DB) error {
	return errors.New(errors.ErrLogImmutable, "delete")
}
