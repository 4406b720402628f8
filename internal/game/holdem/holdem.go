// Package holdem 无限注德州扑克，一局内筹码守恒，输光出局直至决出唯一赢家
package holdem

import (
	"encoding/json"
	"sort"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
)

// 街
const (
	StreetPreflop  = "preflop"
	StreetFlop     = "flop"
	StreetTurn     = "turn"
	StreetRiver    = "river"
	PhaseTerminal  = "terminal"
	holeCards      = 2
	minHoldemSeats = 2
	maxHoldemSeats = 10
)

// Rules 牌桌参数
type Rules struct {
	StartingStack int64 `json:"starting_stack"`
	SmallBlind    int64 `json:"small_blind"`
	BigBlind      int64 `json:"big_blind"`
	MinBet        int64 `json:"min_bet"`
	// MaxHands 大于0时打满手数后筹码最多者获胜
	MaxHands int `json:"max_hands"`
}

// DefaultRules 默认参数
func DefaultRules() Rules {
	return Rules{
		StartingStack: 1000,
		SmallBlind:    10,
		BigBlind:      20,
		MinBet:        20,
	}
}

func (r Rules) validate() error {
	if r.StartingStack <= 0 || r.SmallBlind < 0 || r.BigBlind <= 0 || r.SmallBlind > r.BigBlind {
		return errors.Newf(errors.ErrInvalidConfiguration, "stack %d blinds %d/%d", r.StartingStack, r.SmallBlind, r.BigBlind)
	}
	if r.MaxHands < 0 {
		return errors.Newf(errors.ErrInvalidConfiguration, "max_hands %d", r.MaxHands)
	}
	return nil
}

// minBet 首注下限，不低于大盲
func (r Rules) minBet() int64 {
	if r.MinBet > r.BigBlind {
		return r.MinBet
	}
	return r.BigBlind
}

// Engine 德州扑克规则
type Engine struct {
	rules     Rules
	evaluator Evaluator
}

// NewEngine 创建规则引擎，evaluator 为空时使用默认评估器
func NewEngine(rules Rules, evaluator Evaluator) *Engine {
	if evaluator == nil {
		evaluator = NewEvaluator()
	}
	return &Engine{rules: rules, evaluator: evaluator}
}

// Variant 玩法
func (e *Engine) Variant() game.Variant {
	return game.VariantHoldem
}

// Rules 牌桌参数
func (e *Engine) Rules() json.RawMessage {
	raw, _ := json.Marshal(e.rules)
	return raw
}

// Start 发放起始筹码并开始第一手
func (e *Engine) Start(seats []game.Seat, dealer int, src fairness.Source) (game.State, *game.Outcome, error) {
	if err := e.rules.validate(); err != nil {
		return nil, nil, err
	}
	if len(seats) < minHoldemSeats || len(seats) > maxHoldemSeats {
		return nil, nil, errors.Newf(errors.ErrInvalidConfiguration, "holdem needs %d-%d seats, got %d", minHoldemSeats, maxHoldemSeats, len(seats))
	}

	sorted := append([]game.Seat(nil), seats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seat < sorted[j].Seat })

	s := &State{
		Rules:      e.rules,
		WinnerSeat: -1,
		Current:    -1,
		evaluator:  e.evaluator,
	}
	for _, seat := range sorted {
		s.Players = append(s.Players, &Player{
			Seat:     seat.Seat,
			PlayerID: seat.PlayerID,
			Chips:    e.rules.StartingStack,
		})
		s.TotalChips += e.rules.StartingStack
	}
	s.Dealer = s.indexOf(dealer)
	if s.Dealer < 0 {
		s.Dealer = 0
	}

	delta := map[string]any{"stacks": s.Stacks()}
	if err := s.startHand(src, delta); err != nil {
		return nil, nil, err
	}
	return s, &game.Outcome{Delta: delta, WinnerSeat: -1}, nil
}

// Decode 还原状态
func (e *Engine) Decode(raw []byte) (game.State, error) {
	s := &State{evaluator: e.evaluator}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "holdem state")
	}
	return s, nil
}

// WithRules 使用指定参数的新引擎，评估器沿用当前的
func (e *Engine) WithRules(raw json.RawMessage) (game.Engine, error) {
	var rules Rules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "holdem rules")
	}
	return NewEngine(rules, e.evaluator), nil
}
