package models

import (
	"time"

	"gorm.io/datatypes"
)

// 房间状态
const (
	RoomStatusWaiting   = "waiting"
	RoomStatusActive    = "active"
	RoomStatusCompleted = "completed"
	RoomStatusCancelled = "cancelled"
)

// 派奖状态
const (
	PayoutNone    = "none"
	PayoutPending = "pending"
	PayoutPaid    = "paid"
)

// NoSeat 当前无人行动
const NoSeat = -1

// Room 房间表，同一时刻只有一个写者
type Room struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Variant       string         `gorm:"size:16;not null;index" json:"variant"` // race, holdem
	Status        string         `gorm:"size:16;not null;index" json:"status"`
	SeatCount     int            `gorm:"not null" json:"seat_count"`
	EntryFee      int64          `gorm:"not null" json:"entry_fee"`
	Pot           int64          `gorm:"default:0" json:"pot"`
	CommissionBps int            `gorm:"default:0" json:"commission_bps"` // 创建时快照
	DealerIndex   int            `gorm:"default:0" json:"dealer_index"`
	CurrentSeat   int            `json:"current_seat"`
	TurnSeq       int64          `gorm:"default:0" json:"turn_seq"`
	TurnStartedAt *time.Time     `json:"turn_started_at,omitempty"`
	TurnDeadline  *time.Time     `gorm:"index" json:"turn_deadline,omitempty"`
	WinnerID      *string        `gorm:"size:64" json:"winner_id,omitempty"`
	PayoutStatus  string         `gorm:"size:16;default:'none';index" json:"payout_status"`
	State         datatypes.JSON `json:"-"`
	Version       int64          `gorm:"default:1" json:"version"`
	CreatedBy     string         `gorm:"size:64;not null" json:"created_by"`
	FillDeadline  *time.Time     `gorm:"index" json:"fill_deadline,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	ArchivedAt    *time.Time     `json:"archived_at,omitempty"`

	Sessions []PlayerSession `gorm:"foreignKey:RoomID" json:"sessions,omitempty"`
}

// TableName 指定表名
func (Room) TableName() string {
	return "rooms"
}

// IsFinished 房间已结束（完成或取消）
func (r *Room) IsFinished() bool {
	return r.Status == RoomStatusCompleted || r.Status == RoomStatusCancelled
}

// Winner 赢家ID，未决出时为空
func (r *Room) Winner() string {
	if r.WinnerID == nil {
		return ""
	}
	return *r.WinnerID
}

// PlayerSession 玩家座位，座位号一经分配不再修改
type PlayerSession struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	RoomID          string     `gorm:"size:36;not null;uniqueIndex:idx_session_room_seat;uniqueIndex:idx_session_room_player" json:"room_id"`
	Seat            int        `gorm:"not null;uniqueIndex:idx_session_room_seat" json:"seat"`
	PlayerID        string     `gorm:"size:64;not null;uniqueIndex:idx_session_room_player;index" json:"player_id"`
	Color           string     `gorm:"size:16" json:"color,omitempty"`
	Chips           int64      `gorm:"default:0" json:"chips"`
	Online          bool       `gorm:"default:true" json:"online"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	TurnDeadline    *time.Time `json:"turn_deadline,omitempty"`
	IsBot           bool       `gorm:"default:false" json:"is_bot"`
	BotDifficulty   string     `gorm:"size:16" json:"bot_difficulty,omitempty"`
	EscrowAmount    int64      `gorm:"default:0" json:"escrow_amount"`
	Refunded        bool       `gorm:"default:false" json:"refunded"`
	Forfeited       bool       `gorm:"default:false" json:"forfeited"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (PlayerSession) TableName() string {
	return "player_sessions"
}
