// Package race 四子飞行棋规则
package race

import (
	"encoding/json"
	"sort"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
)

// 棋盘常量
const (
	TrackLength    = 52 // 主赛道格数
	LastTrackStep  = 50 // 主赛道上最后一步（再往前进入终点通道）
	HomeProgress   = 56 // 到达终点
	BaseProgress   = -1 // 在基地
	TokensPerColor = 4
)

// 阶段
const (
	PhaseAwaitingRoll = "awaiting-roll"
	PhaseAwaitingMove = "awaiting-move"
	PhaseTerminal     = "terminal"
)

// 颜色与起点偏移
var colorOffsets = map[string]int{
	"red":    0,
	"green":  13,
	"yellow": 26,
	"blue":   39,
}

// 按座位数分配颜色，两人时对角
var seatColors = map[int][]string{
	2: {"red", "yellow"},
	3: {"red", "green", "yellow"},
	4: {"red", "green", "yellow", "blue"},
}

// Rules 可配置的规则参数
type Rules struct {
	SafeSquares         []int `json:"safe_squares"`
	MaxConsecutiveSixes int   `json:"max_consecutive_sixes"`
}

// DefaultRules 默认规则
func DefaultRules() Rules {
	return Rules{
		SafeSquares:         []int{0, 8, 13, 21, 26, 34, 39, 47},
		MaxConsecutiveSixes: 3,
	}
}

func (r Rules) isSafe(square int) bool {
	for _, s := range r.SafeSquares {
		if s == square {
			return true
		}
	}
	return false
}

// Engine 飞行棋规则引擎
type Engine struct {
	rules Rules
}

// NewEngine 创建规则引擎
func NewEngine(rules Rules) *Engine {
	if rules.MaxConsecutiveSixes < 1 {
		rules.MaxConsecutiveSixes = DefaultRules().MaxConsecutiveSixes
	}
	return &Engine{rules: rules}
}

// Variant 玩法
func (e *Engine) Variant() game.Variant {
	return game.VariantRace
}

// Rules 规则参数
func (e *Engine) Rules() json.RawMessage {
	raw, _ := json.Marshal(e.rules)
	return raw
}

// Start 所有棋子在基地，庄家座位先行
func (e *Engine) Start(seats []game.Seat, dealer int, src fairness.Source) (game.State, *game.Outcome, error) {
	colors, ok := seatColors[len(seats)]
	if !ok {
		return nil, nil, errors.Newf(errors.ErrInvalidConfiguration, "race needs 2-4 seats, got %d", len(seats))
	}

	sorted := append([]game.Seat(nil), seats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seat < sorted[j].Seat })

	s := &State{
		Rules:      e.rules,
		Stage:      PhaseAwaitingRoll,
		WinnerSeat: -1,
	}
	assigned := make(map[string]int, len(sorted))
	for i, seat := range sorted {
		p := &Player{
			Seat:     seat.Seat,
			PlayerID: seat.PlayerID,
			Color:    colors[i],
		}
		for t := range p.Tokens {
			p.Tokens[t] = BaseProgress
		}
		s.Players = append(s.Players, p)
		assigned[p.Color] = p.Seat
	}
	s.Current = s.indexOf(dealer)
	if s.Current < 0 {
		s.Current = 0
	}

	return s, &game.Outcome{
		Delta: map[string]any{
			"colors":     assigned,
			"first_seat": s.CurrentSeat(),
		},
		WinnerSeat: -1,
	}, nil
}

// Decode 还原状态
func (e *Engine) Decode(raw []byte) (game.State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "race state")
	}
	return &s, nil
}

// WithRules 使用指定规则的新引擎
func (e *Engine) WithRules(raw json.RawMessage) (game.Engine, error) {
	var rules Rules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "race rules")
	}
	return NewEngine(rules), nil
}
