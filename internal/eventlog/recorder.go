// Package eventlog 房间操作日志：追加写入、变更广播与重放校验
package eventlog

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
)

// Record 一条待写入的日志
type Record struct {
	RoomID       string
	ActorID      string
	ActorSeat    int
	Type         string
	Payload      any
	Delta        any
	Chance       fairness.Chance
	SystemForced bool
	TurnSeq      int64
}

// Recorder 在房间事务内追加日志
type Recorder struct {
	log *zap.Logger
}

// NewRecorder 创建日志记录器
func NewRecorder(log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{log: log}
}

func toJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "action log payload")
	}
	return datatypes.JSON(raw), nil
}

// Append 分配序号并写入，必须与状态更新在同一事务中
func (r *Recorder) Append(tx *repository.Transaction, rec Record) (*models.ActionLogEntry, error) {
	entry := &models.ActionLogEntry{
		RoomID:       rec.RoomID,
		ActorID:      rec.ActorID,
		ActorSeat:    rec.ActorSeat,
		ActionType:   rec.Type,
		SystemForced: rec.SystemForced,
		TurnSeq:      rec.TurnSeq,
	}

	var err error
	if entry.Payload, err = toJSON(rec.Payload); err != nil {
		return nil, err
	}
	if entry.Delta, err = toJSON(rec.Delta); err != nil {
		return nil, err
	}
	if !rec.Chance.Empty() {
		if entry.Chance, err = toJSON(rec.Chance); err != nil {
			return nil, err
		}
	}

	if err := tx.ActionLogs().Append(tx.Context(), entry); err != nil {
		return nil, err
	}

	r.log.Debug("action_logged",
		zap.String("room_id", entry.RoomID),
		zap.Int64("seq", entry.Seq),
		zap.String("type", entry.ActionType),
		zap.Bool("system_forced", entry.SystemForced),
	)
	return entry, nil
}

// ChanceOf 读取日志中记录的随机结果
func ChanceOf(entry *models.ActionLogEntry) (fairness.Chance, error) {
	var c fairness.Chance
	if len(entry.Chance) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(entry.Chance, &c); err != nil {
		return c, errors.Wrapf(err, errors.ErrDataIntegrity, "chance of seq %d", entry.Seq)
	}
	return c, nil
}
