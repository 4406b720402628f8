package holdem

import (
	"encoding/json"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
)

// Player 座位上的玩家
type Player struct {
	Seat      int             `json:"seat"`
	PlayerID  string          `json:"player_id"`
	Chips     int64           `json:"chips"`
	Hole      []fairness.Card `json:"hole,omitempty"`
	Bet       int64           `json:"bet"`       // 本街
	Committed int64           `json:"committed"` // 本手
	InHand    bool            `json:"in_hand,omitempty"`
	Folded    bool            `json:"folded,omitempty"`
	AllIn     bool            `json:"all_in,omitempty"`
	Acted     bool            `json:"acted,omitempty"`
	Out       bool            `json:"out,omitempty"`
	Forfeited bool            `json:"forfeited,omitempty"`
}

func (p *Player) live() bool {
	return p.InHand && !p.Folded
}

func (p *Player) canAct() bool {
	return p.live() && !p.AllIn
}

func (p *Player) alive() bool {
	return !p.Out && !p.Forfeited
}

// PotResult 一个底池（主池或边池）的分配
type PotResult struct {
	Amount  int64 `json:"amount"`
	Winners []int `json:"winners"`
}

// HandResult 上一手的结果摘要
type HandResult struct {
	HandNo   int                     `json:"hand_no"`
	Board    []fairness.Card         `json:"board"`
	Showdown bool                    `json:"showdown"`
	Pots     []PotResult             `json:"pots"`
	Payouts  map[int]int64           `json:"payouts"`
	Shown    map[int][]fairness.Card `json:"shown,omitempty"`
	Hands    map[int]string          `json:"hands,omitempty"`
}

// State 牌桌状态，Deck 与他人底牌只存在于服务端
type State struct {
	Rules      Rules           `json:"rules"`
	Players    []*Player       `json:"players"`
	Dealer     int             `json:"dealer"`
	Current    int             `json:"current"`
	Street     string          `json:"street"`
	Board      []fairness.Card `json:"board"`
	Deck       []fairness.Card `json:"deck"`
	DeckPos    int             `json:"deck_pos"`
	Pot        int64           `json:"pot"`
	CurrentBet int64           `json:"current_bet"`
	MinRaise   int64           `json:"min_raise"`
	HandNo     int             `json:"hand_no"`
	TotalChips int64           `json:"total_chips"`
	LastHand   *HandResult     `json:"last_hand,omitempty"`
	WinnerSeat int             `json:"winner"`

	evaluator Evaluator
}

func (s *State) eval() Evaluator {
	if s.evaluator == nil {
		s.evaluator = NewEvaluator()
	}
	return s.evaluator
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
	if s.Terminal() || s.Current < 0 || s.Current >= len(s.Players) {
		return -1
	}
	return s.Players[s.Current].Seat
}

// Phase 当前街，结束后为 terminal
func (s *State) Phase() string {
	return s.Street
}

// Terminal 对局结束
func (s *State) Terminal() bool {
	return s.Street == PhaseTerminal
}

// Winner 赢家座位
func (s *State) Winner() int {
	return s.WinnerSeat
}

// Marshal 序列化
func (s *State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Stacks 各座位筹码
func (s *State) Stacks() map[int]int64 {
	stacks := make(map[int]int64, len(s.Players))
	for _, p := range s.Players {
		stacks[p.Seat] = p.Chips
	}
	return stacks
}

// CheckConservation 筹码总量加底池必须等于开局总量
func (s *State) CheckConservation() error {
	var sum int64
	for _, p := range s.Players {
		if p.Chips < 0 {
			return errors.Newf(errors.ErrDataIntegrity, "seat %d chips %d", p.Seat, p.Chips)
		}
		sum += p.Chips
	}
	if sum+s.Pot != s.TotalChips {
		return errors.Newf(errors.ErrDataIntegrity, "chips %d + pot %d != %d", sum, s.Pot, s.TotalChips)
	}
	return nil
}

func (s *State) next(from int, ok func(*Player) bool) int {
	n := len(s.Players)
	for k := 1; k <= n; k++ {
		i := (from + k) % n
		if ok(s.Players[i]) {
			return i
		}
	}
	return -1
}

func (s *State) nextInHand(from int) int {
	return s.next(from, func(p *Player) bool { return p.InHand })
}

func (s *State) liveIdx() []int {
	var idx []int
	for i, p := range s.Players {
		if p.live() {
			idx = append(idx, i)
		}
	}
	return idx
}

func (s *State) draw() (fairness.Card, error) {
	if s.DeckPos >= len(s.Deck) {
		return fairness.Card{}, errors.New(errors.ErrDataIntegrity, "deck exhausted")
	}
	c := s.Deck[s.DeckPos]
	s.DeckPos++
	return c, nil
}

func (s *State) commit(p *Player, amount int64) {
	p.Chips -= amount
	p.Bet += amount
	p.Committed += amount
	s.Pot += amount
	if p.Chips == 0 {
		p.AllIn = true
	}
}

func (s *State) post(i int, blind int64) int64 {
	p := s.Players[i]
	amount := min(blind, p.Chips)
	s.commit(p, amount)
	return amount
}

// startHand 洗牌、下盲注、从庄家左手发两张底牌
func (s *State) startHand(src fairness.Source, delta map[string]any) error {
	deck, err := src.ShuffledDeck()
	if err != nil {
		return err
	}

	s.HandNo++
	s.Deck = deck
	s.DeckPos = 0
	s.Board = nil
	s.Pot = 0
	s.Street = StreetPreflop
	s.CurrentBet = 0
	s.MinRaise = s.Rules.BigBlind
	n := 0
	for _, p := range s.Players {
		p.Hole = nil
		p.Bet, p.Committed = 0, 0
		p.Folded, p.AllIn, p.Acted = false, false, false
		p.InHand = p.alive()
		if p.InHand {
			n++
		}
	}
	if !s.Players[s.Dealer].InHand {
		s.Dealer = s.nextInHand(s.Dealer)
	}

	// 单挑时庄家下小盲并在翻牌前先行动
	sb := s.nextInHand(s.Dealer)
	if n == 2 {
		sb = s.Dealer
	}
	bb := s.nextInHand(sb)
	sbPosted := s.post(sb, s.Rules.SmallBlind)
	bbPosted := s.post(bb, s.Rules.BigBlind)
	s.CurrentBet = s.Rules.BigBlind

	for r := 0; r < holeCards; r++ {
		i := s.Dealer
		for k := 0; k < n; k++ {
			i = s.nextInHand(i)
			c, err := s.draw()
			if err != nil {
				return err
			}
			s.Players[i].Hole = append(s.Players[i].Hole, c)
		}
	}

	delta["deal"] = map[string]any{
		"hand_no":     s.HandNo,
		"dealer_seat": s.Players[s.Dealer].Seat,
		"small_blind": map[string]int64{"seat": int64(s.Players[sb].Seat), "amount": sbPosted},
		"big_blind":   map[string]int64{"seat": int64(s.Players[bb].Seat), "amount": bbPosted},
	}

	s.Current = bb
	return s.progress(src, delta)
}

// Apply 执行下注动作
func (s *State) Apply(seat int, action game.Action, src fairness.Source) (*game.Outcome, error) {
	if s.Terminal() {
		return nil, errors.New(errors.ErrRoomNotActive, "game over")
	}
	if seat != s.CurrentSeat() {
		return nil, errors.Newf(errors.ErrNotYourTurn, "seat %d", seat)
	}

	p := s.Players[s.Current]
	toCall := s.CurrentBet - p.Bet
	delta := map[string]any{
		"seat":    seat,
		"action":  action.Type,
		"hand_no": s.HandNo,
		"street":  s.Street,
	}

	switch action.Type {
	case game.ActionFold:
		p.Folded = true
	case game.ActionCheck:
		if toCall > 0 {
			return nil, errors.Newf(errors.ErrInvalidMove, "cannot check facing %d", toCall)
		}
	case game.ActionCall:
		if toCall <= 0 {
			return nil, errors.New(errors.ErrInvalidMove, "nothing to call")
		}
		amount := min(toCall, p.Chips)
		s.commit(p, amount)
		delta["amount"] = amount
	case game.ActionBet:
		if err := s.bet(p, action.Amount, delta); err != nil {
			return nil, err
		}
	case game.ActionRaise:
		if err := s.raise(p, action.Amount, delta); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf(errors.ErrInvalidAction, "%s is not a holdem action", action.Type)
	}

	p.Acted = true
	delta["pot"] = s.Pot
	delta["chips"] = p.Chips
	if p.AllIn {
		delta["all_in"] = true
	}

	if err := s.progress(src, delta); err != nil {
		return nil, err
	}
	if err := s.CheckConservation(); err != nil {
		return nil, err
	}
	return s.outcome(delta), nil
}

func (s *State) outcome(delta map[string]any) *game.Outcome {
	delta["next_seat"] = s.CurrentSeat()
	out := &game.Outcome{Delta: delta, WinnerSeat: -1}
	if s.Terminal() {
		out.Terminal = true
		out.WinnerSeat = s.WinnerSeat
		delta["winner_seat"] = s.WinnerSeat
	}
	return out
}

// bet 本街首注，amount 为下注总额，超过筹码时按全下处理
func (s *State) bet(p *Player, amount int64, delta map[string]any) error {
	if s.CurrentBet > 0 {
		return errors.New(errors.ErrInvalidMove, "betting is open, raise instead")
	}
	if amount >= p.Chips {
		amount = p.Chips
	} else if amount < s.Rules.minBet() {
		return errors.Newf(errors.ErrBetTooLow, "bet %d below %d", amount, s.Rules.minBet())
	}

	s.commit(p, amount)
	s.CurrentBet = p.Bet
	s.MinRaise = max(p.Bet, s.Rules.BigBlind)
	s.reopen(p)
	delta["amount"] = amount
	return nil
}

// raise amount 为在当前注额上增加的部分，不足额的全下加注不重新开放行动
func (s *State) raise(p *Player, amount int64, delta map[string]any) error {
	if s.CurrentBet == 0 {
		return errors.New(errors.ErrInvalidMove, "nothing to raise, bet instead")
	}
	if p.Acted {
		return errors.New(errors.ErrInvalidMove, "action was not reopened")
	}

	need := s.CurrentBet + amount - p.Bet
	if need >= p.Chips {
		s.commit(p, p.Chips)
		if p.Bet > s.CurrentBet {
			if inc := p.Bet - s.CurrentBet; inc >= s.MinRaise {
				s.MinRaise = inc
				s.reopen(p)
			}
			s.CurrentBet = p.Bet
		}
		delta["amount"] = p.Committed
		return nil
	}
	if amount < s.MinRaise {
		return errors.Newf(errors.ErrBetTooLow, "raise %d below %d", amount, s.MinRaise)
	}

	s.commit(p, need)
	s.CurrentBet = p.Bet
	s.MinRaise = amount
	s.reopen(p)
	delta["amount"] = need
	return nil
}

func (s *State) reopen(raiser *Player) {
	for _, q := range s.Players {
		if q != raiser && q.canAct() {
			q.Acted = false
		}
	}
}

func (s *State) needsAction(p *Player) bool {
	return p.canAct() && (!p.Acted || p.Bet < s.CurrentBet)
}

// roundClosed 所有未弃牌、未全下的玩家都已行动且注额相等
func (s *State) roundClosed() bool {
	var active []*Player
	for _, p := range s.Players {
		if p.canAct() {
			active = append(active, p)
		}
	}
	for _, p := range active {
		if p.Bet < s.CurrentBet {
			return false
		}
	}
	if len(active) <= 1 {
		return true
	}
	for _, p := range active {
		if !p.Acted {
			return false
		}
	}
	return true
}

// progress 推进到下一个需要行动的座位，必要时发下一街、摊牌或开始新一手
func (s *State) progress(src fairness.Source, delta map[string]any) error {
	for {
		live := s.liveIdx()
		if len(live) == 1 {
			s.awardUncontested(live[0])
			delta["hand"] = s.LastHand
			return s.finishHand(src, delta)
		}

		if !s.roundClosed() {
			s.Current = s.next(s.Current, s.needsAction)
			return nil
		}

		for _, p := range s.Players {
			p.Bet = 0
			p.Acted = false
		}
		s.CurrentBet = 0
		s.MinRaise = s.Rules.BigBlind

		if s.Street == StreetRiver {
			if err := s.showdown(); err != nil {
				return err
			}
			delta["hand"] = s.LastHand
			return s.finishHand(src, delta)
		}
		if err := s.dealStreet(); err != nil {
			return err
		}
		s.Current = s.Dealer
	}
}

func (s *State) dealStreet() error {
	count := 1
	switch s.Street {
	case StreetPreflop:
		s.Street, count = StreetFlop, 3
	case StreetFlop:
		s.Street = StreetTurn
	case StreetTurn:
		s.Street = StreetRiver
	}
	for i := 0; i < count; i++ {
		c, err := s.draw()
		if err != nil {
			return err
		}
		s.Board = append(s.Board, c)
	}
	return nil
}

func (s *State) awardUncontested(i int) {
	p := s.Players[i]
	amount := s.Pot
	p.Chips += amount
	s.Pot = 0
	s.LastHand = &HandResult{
		HandNo:  s.HandNo,
		Board:   append([]fairness.Card(nil), s.Board...),
		Pots:    []PotResult{{Amount: amount, Winners: []int{p.Seat}}},
		Payouts: map[int]int64{p.Seat: amount},
	}
}

// finishHand 淘汰输光的玩家，决出赢家或开始下一手
func (s *State) finishHand(src fairness.Source, delta map[string]any) error {
	var alive []*Player
	for _, p := range s.Players {
		if p.InHand && p.Chips == 0 {
			p.Out = true
		}
		if p.alive() {
			alive = append(alive, p)
		}
	}

	switch {
	case len(alive) == 0:
		s.finish(s.chipLeader(s.Players))
		return nil
	case len(alive) == 1:
		s.finish(alive[0])
		return nil
	case s.Rules.MaxHands > 0 && s.HandNo >= s.Rules.MaxHands:
		s.finish(s.chipLeader(alive))
		return nil
	}

	s.Dealer = s.next(s.Dealer, (*Player).alive)
	return s.startHand(src, delta)
}

// chipLeader 筹码最多者，相同时座位号小者
func (s *State) chipLeader(players []*Player) *Player {
	var leader *Player
	for _, p := range players {
		if leader == nil || p.Chips > leader.Chips {
			leader = p
		}
	}
	return leader
}

func (s *State) finish(winner *Player) {
	s.Street = PhaseTerminal
	s.Current = -1
	s.WinnerSeat = winner.Seat
	for _, p := range s.Players {
		p.InHand = false
	}
}

// Forfeit 认输：弃掉当前手牌，筹码留在桌上但不再参与之后的牌局
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

	delta := map[string]any{"seat": seat, "forfeited": true, "hand_no": s.HandNo}
	if p.live() {
		p.Folded = true
		p.Acted = true
		if idx == s.Current || len(s.liveIdx()) == 1 {
			if err := s.progress(src, delta); err != nil {
				return nil, err
			}
		}
	}
	if err := s.CheckConservation(); err != nil {
		return nil, err
	}
	return s.outcome(delta), nil
}

// DefaultAction 超时弃牌
func (s *State) DefaultAction(seat int) game.Action {
	return game.Fold()
}

// LegalActions 当前座位可选动作，bet/raise 的金额为最小值
func (s *State) LegalActions(seat int) []game.Action {
	if s.Terminal() || seat != s.CurrentSeat() {
		return nil
	}
	p := s.Players[s.Current]
	toCall := s.CurrentBet - p.Bet

	actions := []game.Action{game.Fold()}
	if toCall <= 0 {
		actions = append(actions, game.Check())
	} else {
		actions = append(actions, game.Call())
	}
	switch {
	case s.CurrentBet == 0 && p.Chips > 0:
		actions = append(actions, game.Bet(min(s.Rules.minBet(), p.Chips)))
	case s.CurrentBet > 0 && !p.Acted && p.Chips > toCall:
		actions = append(actions, game.Raise(min(s.MinRaise, p.Chips-toCall)))
	}
	return actions
}
