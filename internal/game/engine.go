// Package game 回合制玩法的公共抽象：动作、规则引擎与状态
package game

import (
	"encoding/json"

	"github.com/wfunc/wager-engine/internal/fairness"
)

// Variant 玩法
type Variant string

const (
	VariantRace   Variant = "race"
	VariantHoldem Variant = "holdem"
)

// Seat 座位与玩家
type Seat struct {
	Seat     int    `json:"seat"`
	PlayerID string `json:"player_id"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

// Outcome 一次状态变化的结果
type Outcome struct {
	// Delta 写入操作日志的结果摘要
	Delta map[string]any
	// Terminal 对局结束
	Terminal bool
	// WinnerSeat 对局结束时的赢家座位
	WinnerSeat int
}

// Engine 玩法规则
type Engine interface {
	Variant() Variant
	// Start 初始化对局，dealer 为庄家/起始座位
	Start(seats []Seat, dealer int, src fairness.Source) (State, *Outcome, error)
	// Decode 从持久化的 JSON 还原状态
	Decode(raw []byte) (State, error)
	// Rules 当前规则参数，开局时写入日志
	Rules() json.RawMessage
	// WithRules 按日志中的规则参数重建引擎，用于重放
	WithRules(raw json.RawMessage) (Engine, error)
}

// State 对局状态，规则在状态副本上执行，出错时调用方丢弃副本
type State interface {
	CurrentSeat() int
	Phase() string
	Apply(seat int, action Action, src fairness.Source) (*Outcome, error)
	// Forfeit 座位认输，可能直接决出赢家
	Forfeit(seat int, src fairness.Source) (*Outcome, error)
	// DefaultAction 超时时由系统代为执行的动作
	DefaultAction(seat int) Action
	LegalActions(seat int) []Action
	// Public 对指定座位可见的状态，viewer 为 -1 时是旁观视角
	Public(viewer int) any
	Terminal() bool
	Winner() int
	Marshal() ([]byte, error)
}

// Labeled 座位有展示标签的状态，如飞行棋颜色
type Labeled interface {
	SeatLabels() map[int]string
}

// Stacked 有筹码概念的状态
type Stacked interface {
	Stacks() map[int]int64
}

// Registry 按玩法查找规则
type Registry map[Variant]Engine

// NewRegistry 注册规则
func NewRegistry(engines ...Engine) Registry {
	r := make(Registry, len(engines))
	for _, e := range engines {
		r[e.Variant()] = e
	}
	return r
}
