package game

import (
	"encoding/json"
	"strings"

	"github.com/wfunc/wager-engine/internal/errors"
)

// ActionType 玩家动作类型，集合是封闭的
type ActionType string

const (
	// 飞行棋
	ActionRoll ActionType = "roll"
	ActionMove ActionType = "move"
	ActionSkip ActionType = "skip" // 仅系统

	// 德州扑克
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionBet   ActionType = "bet"
	ActionRaise ActionType = "raise"
)

// 只出现在操作日志里的事件类型
const (
	EventCreate  = "create"
	EventJoin    = "join"
	EventStart   = "start"
	EventForfeit = "forfeit"
	EventCancel  = "cancel"
	EventSettle  = "settle"
)

var actionTypes = map[ActionType]bool{
	ActionRoll:  true,
	ActionMove:  true,
	ActionSkip:  true,
	ActionFold:  true,
	ActionCheck: true,
	ActionCall:  true,
	ActionBet:   true,
	ActionRaise: true,
}

// Action 动作，TokenID 只对 move 有意义，Amount 只对 bet/raise 有意义
type Action struct {
	Type    ActionType `json:"type"`
	TokenID int        `json:"token_id,omitempty"`
	Amount  int64      `json:"amount,omitempty"`
}

// Roll 掷骰
func Roll() Action { return Action{Type: ActionRoll} }

// Move 移动棋子
func Move(tokenID int) Action { return Action{Type: ActionMove, TokenID: tokenID} }

// Skip 跳过本回合
func Skip() Action { return Action{Type: ActionSkip} }

// Fold 弃牌
func Fold() Action { return Action{Type: ActionFold} }

// Check 过牌
func Check() Action { return Action{Type: ActionCheck} }

// Call 跟注
func Call() Action { return Action{Type: ActionCall} }

// Bet 下注，amount 为本轮下注总额
func Bet(amount int64) Action { return Action{Type: ActionBet, Amount: amount} }

// Raise 加注，amount 为在当前注额上增加的部分
func Raise(amount int64) Action { return Action{Type: ActionRaise, Amount: amount} }

// Validate 边界校验：类型必须已知，参数必须合法
func (a Action) Validate() error {
	if !actionTypes[a.Type] {
		return errors.Newf(errors.ErrInvalidAction, "unknown action %q", a.Type)
	}
	switch a.Type {
	case ActionMove:
		if a.TokenID < 0 || a.TokenID > 3 {
			return errors.Newf(errors.ErrInvalidAction, "token_id %d", a.TokenID)
		}
	case ActionBet, ActionRaise:
		if a.Amount <= 0 {
			return errors.Newf(errors.ErrInvalidAction, "amount %d", a.Amount)
		}
	default:
		if a.Amount != 0 {
			return errors.Newf(errors.ErrInvalidAction, "%s takes no amount", a.Type)
		}
	}
	return nil
}

// SystemOnly 玩家不能主动提交
func (a Action) SystemOnly() bool {
	return a.Type == ActionSkip
}

// ParseAction 解析并校验客户端提交的动作
func ParseAction(raw []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, errors.Wrap(err, errors.ErrInvalidAction)
	}
	a.Type = ActionType(strings.ToLower(string(a.Type)))
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}
