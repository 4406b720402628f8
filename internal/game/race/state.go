package race

import (
	"encoding/json"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
)

// Player 一个座位的棋子，Tokens 为各棋子的进度
type Player struct {
	Seat      int                 `json:"seat"`
	PlayerID  string              `json:"player_id"`
	Color     string              `json:"color"`
	Tokens    [TokensPerColor]int `json:"tokens"`
	Forfeited bool                `json:"forfeited,omitempty"`
}

func (p *Player) square(token int) int {
	return (colorOffsets[p.Color] + p.Tokens[token]) % TrackLength
}

func (p *Player) onTrack(token int) bool {
	return p.Tokens[token] >= 0 && p.Tokens[token] <= LastTrackStep
}

func (p *Player) allHome() bool {
	for _, t := range p.Tokens {
		if t != HomeProgress {
			return false
		}
	}
	return true
}

// State 飞行棋对局状态
type State struct {
	Rules            Rules     `json:"rules"`
	Players          []*Player `json:"players"`
	Current          int       `json:"current"`
	Stage            string    `json:"phase"`
	LastRoll         int       `json:"last_roll"`
	ConsecutiveSixes int       `json:"consecutive_sixes"`
	Bonus            bool      `json:"bonus"`
	WinnerSeat       int       `json:"winner"`
}

func (s *State) indexOf(seat int) int {
	for i, p := range s.Players {
		if p.Seat == seat {
			return i
		}
	}
	return -1
}

// CurrentSeat 当前行动座位
func (s *State) CurrentSeat() int {
	if s.Stage == PhaseTerminal || s.Current < 0 || s.Current >= len(s.Players) {
		return -1
	}
	return s.Players[s.Current].Seat
}

// Phase 当前阶段
func (s *State) Phase() string {
	return s.Stage
}

// Terminal 对局结束
func (s *State) Terminal() bool {
	return s.Stage == PhaseTerminal
}

// Winner 赢家座位，未结束为-1
func (s *State) Winner() int {
	return s.WinnerSeat
}

// Marshal 序列化
func (s *State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Apply 执行动作
func (s *State) Apply(seat int, action game.Action, src fairness.Source) (*game.Outcome, error) {
	if s.Terminal() {
		return nil, errors.New(errors.ErrRoomNotActive, "game over")
	}
	if seat != s.CurrentSeat() {
		return nil, errors.Newf(errors.ErrNotYourTurn, "seat %d", seat)
	}

	switch action.Type {
	case game.ActionRoll:
		return s.roll(src)
	case game.ActionMove:
		return s.move(action.TokenID)
	case game.ActionSkip:
		return s.skip()
	default:
		return nil, errors.Newf(errors.ErrInvalidAction, "%s is not a race action", action.Type)
	}
}

func (s *State) roll(src fairness.Source) (*game.Outcome, error) {
	if s.Stage != PhaseAwaitingRoll {
		return nil, errors.New(errors.ErrInvalidMove, "must move before rolling again")
	}
	v, err := src.RollDice()
	if err != nil {
		return nil, err
	}

	seat := s.CurrentSeat()
	s.LastRoll = v
	if v == 6 {
		s.ConsecutiveSixes++
	} else {
		s.ConsecutiveSixes = 0
	}
	s.Bonus = v == 6 && s.ConsecutiveSixes < s.Rules.MaxConsecutiveSixes

	delta := map[string]any{
		"seat":  seat,
		"roll":  v,
		"bonus": s.Bonus,
	}

	if len(s.movable(s.Current)) == 0 {
		delta["no_move"] = true
		if s.Bonus {
			s.Bonus = false
		} else {
			s.passTurn()
		}
		delta["next_seat"] = s.CurrentSeat()
		return &game.Outcome{Delta: delta, WinnerSeat: -1}, nil
	}

	s.Stage = PhaseAwaitingMove
	delta["next_seat"] = seat
	return &game.Outcome{Delta: delta, WinnerSeat: -1}, nil
}

func (s *State) move(token int) (*game.Outcome, error) {
	if s.Stage != PhaseAwaitingMove {
		return nil, errors.New(errors.ErrInvalidMove, "roll first")
	}
	if token < 0 || token >= TokensPerColor {
		return nil, errors.Newf(errors.ErrInvalidMove, "token %d", token)
	}
	p := s.Players[s.Current]
	target, ok := s.target(p, token)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidMove, "token %d cannot move %d", token, s.LastRoll)
	}

	from := p.Tokens[token]
	p.Tokens[token] = target

	delta := map[string]any{
		"seat":  p.Seat,
		"token": token,
		"from":  from,
		"to":    target,
	}

	captured := s.capture(p, token)
	if len(captured) > 0 {
		delta["captured"] = captured
	}

	if p.allHome() {
		s.Stage = PhaseTerminal
		s.WinnerSeat = p.Seat
		s.Bonus = false
		delta["winner_seat"] = p.Seat
		return &game.Outcome{Delta: delta, Terminal: true, WinnerSeat: p.Seat}, nil
	}

	extra := s.Bonus || len(captured) > 0
	delta["extra_turn"] = extra
	s.Bonus = false
	if extra {
		s.Stage = PhaseAwaitingRoll
	} else {
		s.passTurn()
	}
	delta["next_seat"] = s.CurrentSeat()
	return &game.Outcome{Delta: delta, WinnerSeat: -1}, nil
}

func (s *State) skip() (*game.Outcome, error) {
	if s.Stage != PhaseAwaitingRoll {
		return nil, errors.New(errors.ErrInvalidMove, "skip only before rolling")
	}
	seat := s.CurrentSeat()
	s.passTurn()
	return &game.Outcome{
		Delta: map[string]any{
			"seat":      seat,
			"skipped":   true,
			"next_seat": s.CurrentSeat(),
		},
		WinnerSeat: -1,
	}, nil
}

// target 棋子按当前点数移动后的进度
func (s *State) target(p *Player, token int) (int, bool) {
	cur := p.Tokens[token]
	switch {
	case cur == HomeProgress:
		return 0, false
	case cur == BaseProgress:
		if s.LastRoll != 6 {
			return 0, false
		}
		return 0, true
	default:
		next := cur + s.LastRoll
		if next > HomeProgress {
			return 0, false
		}
		return next, true
	}
}

func (s *State) movable(idx int) []int {
	if s.LastRoll == 0 {
		return nil
	}
	p := s.Players[idx]
	var tokens []int
	for t := range p.Tokens {
		if _, ok := s.target(p, t); ok {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// capture 落在非安全格且该格恰好只有一枚对手棋子时吃掉它
func (s *State) capture(mover *Player, token int) []map[string]int {
	if !mover.onTrack(token) {
		return nil
	}
	square := mover.square(token)
	if s.Rules.isSafe(square) {
		return nil
	}

	victim, victimToken, count := s.opponentsOn(mover, square)
	if count != 1 {
		return nil
	}

	victim.Tokens[victimToken] = BaseProgress
	return []map[string]int{{"seat": victim.Seat, "token": victimToken, "square": square}}
}

func (s *State) opponentsOn(mover *Player, square int) (victim *Player, victimToken, count int) {
	victimToken = -1
	for _, p := range s.Players {
		if p.Seat == mover.Seat || p.Forfeited {
			continue
		}
		for t := range p.Tokens {
			if p.onTrack(t) && p.square(t) == square {
				count++
				victim, victimToken = p, t
			}
		}
	}
	return victim, victimToken, count
}

// MoveOption 一步可选走法的预估
type MoveOption struct {
	TokenID  int
	From     int
	To       int
	Captures bool
	Safe     bool
}

// Options 当前点数下每枚可动棋子的走法，仅在待移动阶段有值
func (s *State) Options() []MoveOption {
	if s.Stage != PhaseAwaitingMove {
		return nil
	}
	p := s.Players[s.Current]
	var opts []MoveOption
	for _, t := range s.movable(s.Current) {
		to, _ := s.target(p, t)
		opt := MoveOption{TokenID: t, From: p.Tokens[t], To: to, Safe: to > LastTrackStep}
		if to <= LastTrackStep {
			square := (colorOffsets[p.Color] + to) % TrackLength
			opt.Safe = s.Rules.isSafe(square)
			if !opt.Safe {
				_, _, n := s.opponentsOn(p, square)
				opt.Captures = n == 1
			}
		}
		opts = append(opts, opt)
	}
	return opts
}

func (s *State) passTurn() {
	s.ConsecutiveSixes = 0
	s.Bonus = false
	s.Stage = PhaseAwaitingRoll
	n := len(s.Players)
	for i := 1; i <= n; i++ {
		next := (s.Current + i) % n
		if !s.Players[next].Forfeited {
			s.Current = next
			return
		}
	}
}

// Forfeit 认输，只剩一名玩家时其获胜
func (s *State) Forfeit(seat int, src fairness.Source) (*game.Outcome, error) {
	if s.Terminal() {
		return nil, errors.New(errors.ErrRoomNotActive, "game over")
	}
	idx := s.indexOf(seat)
	if idx < 0 {
		return nil, errors.Newf(errors.ErrInvalidParam, "seat %d", seat)
	}
	p := s.Players[idx]
	if p.Forfeited {
		return nil, errors.Newf(errors.ErrInvalidAction, "seat %d already forfeited", seat)
	}
	p.Forfeited = true

	delta := map[string]any{"seat": seat, "forfeited": true}

	var remaining []*Player
	for _, other := range s.Players {
		if !other.Forfeited {
			remaining = append(remaining, other)
		}
	}
	if len(remaining) == 1 {
		s.Stage = PhaseTerminal
		s.WinnerSeat = remaining[0].Seat
		delta["winner_seat"] = s.WinnerSeat
		return &game.Outcome{Delta: delta, Terminal: true, WinnerSeat: s.WinnerSeat}, nil
	}

	if idx == s.Current {
		s.passTurn()
	}
	delta["next_seat"] = s.CurrentSeat()
	return &game.Outcome{Delta: delta, WinnerSeat: -1}, nil
}

// DefaultAction 待掷骰时跳过，待移动时移动编号最小的可动棋子
func (s *State) DefaultAction(seat int) game.Action {
	if s.Stage == PhaseAwaitingMove {
		if tokens := s.movable(s.Current); len(tokens) > 0 {
			return game.Move(tokens[0])
		}
	}
	return game.Skip()
}

// LegalActions 座位当前可执行的玩家动作
func (s *State) LegalActions(seat int) []game.Action {
	if s.Terminal() || seat != s.CurrentSeat() {
		return nil
	}
	if s.Stage == PhaseAwaitingRoll {
		return []game.Action{game.Roll()}
	}
	var actions []game.Action
	for _, t := range s.movable(s.Current) {
		actions = append(actions, game.Move(t))
	}
	return actions
}

// TokenView 客户端看到的棋子
type TokenView struct {
	ID      int    `json:"id"`
	Zone    string `json:"zone"` // base, board, home
	Offset  int    `json:"offset"`
	Square  int    `json:"square,omitempty"`
	Movable bool   `json:"movable"`
}

// View 公开状态，飞行棋没有隐藏信息
type View struct {
	Tokens           map[string][]TokenView `json:"tokens"`
	Seats            map[int]string         `json:"seats"`
	Forfeited        []int                  `json:"forfeited,omitempty"`
	Phase            string                 `json:"phase"`
	CurrentSeat      int                    `json:"current_seat"`
	LastRoll         int                    `json:"last_roll"`
	ConsecutiveSixes int                    `json:"consecutive_sixes"`
	SafeSquares      []int                  `json:"safe_squares"`
	Winner           int                    `json:"winner"`
}

// Public 公开视角
func (s *State) Public(viewer int) any {
	v := View{
		Tokens:           make(map[string][]TokenView, len(s.Players)),
		Seats:            make(map[int]string, len(s.Players)),
		Phase:            s.Stage,
		CurrentSeat:      s.CurrentSeat(),
		LastRoll:         s.LastRoll,
		ConsecutiveSixes: s.ConsecutiveSixes,
		SafeSquares:      s.Rules.SafeSquares,
		Winner:           s.WinnerSeat,
	}

	movable := map[int]bool{}
	if s.Stage == PhaseAwaitingMove {
		for _, t := range s.movable(s.Current) {
			movable[t] = true
		}
	}

	for i, p := range s.Players {
		v.Seats[p.Seat] = p.Color
		if p.Forfeited {
			v.Forfeited = append(v.Forfeited, p.Seat)
		}
		views := make([]TokenView, 0, TokensPerColor)
		for t, progress := range p.Tokens {
			tv := TokenView{ID: t, Offset: progress}
			switch {
			case progress == BaseProgress:
				tv.Zone = "base"
			case progress == HomeProgress:
				tv.Zone = "home"
			default:
				tv.Zone = "board"
				if p.onTrack(t) {
					tv.Square = p.square(t)
				}
			}
			tv.Movable = i == s.Current && movable[t]
			views = append(views, tv)
		}
		v.Tokens[p.Color] = views
	}
	return v
}

// SeatLabels 座位颜色
func (s *State) SeatLabels() map[int]string {
	labels := make(map[int]string, len(s.Players))
	for _, p := range s.Players {
		labels[p.Seat] = p.Color
	}
	return labels
}
