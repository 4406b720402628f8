package holdem

import "github.com/wfunc/wager-engine/internal/fairness"

// PlayerView 对外可见的座位信息
type PlayerView struct {
	Seat      int             `json:"seat"`
	PlayerID  string          `json:"player_id"`
	Chips     int64           `json:"chips"`
	Bet       int64           `json:"bet"`
	Committed int64           `json:"committed"`
	InHand    bool            `json:"in_hand"`
	Folded    bool            `json:"folded"`
	AllIn     bool            `json:"all_in"`
	Out       bool            `json:"out"`
	Forfeited bool            `json:"forfeited"`
	Hole      []fairness.Card `json:"hole,omitempty"`
	HoleCount int             `json:"hole_count"`
}

// View 指定座位视角的牌桌，只包含该座位自己的底牌
type View struct {
	Street      string          `json:"street"`
	HandNo      int             `json:"hand_no"`
	Board       []fairness.Card `json:"board"`
	Pot         int64           `json:"pot"`
	CurrentBet  int64           `json:"current_bet"`
	MinRaise    int64           `json:"min_raise"`
	ToCall      int64           `json:"to_call"`
	DealerSeat  int             `json:"dealer_seat"`
	CurrentSeat int             `json:"current_seat"`
	Players     []PlayerView    `json:"players"`
	LastHand    *HandResult     `json:"last_hand,omitempty"`
	Winner      int             `json:"winner"`
}

// Public 公开视角，viewer 为 -1 时不含任何底牌
func (s *State) Public(viewer int) any {
	v := View{
		Street:      s.Street,
		HandNo:      s.HandNo,
		Board:       append([]fairness.Card{}, s.Board...),
		Pot:         s.Pot,
		CurrentBet:  s.CurrentBet,
		MinRaise:    s.MinRaise,
		CurrentSeat: s.CurrentSeat(),
		LastHand:    s.LastHand,
		Winner:      s.WinnerSeat,
	}
	if s.Dealer >= 0 && s.Dealer < len(s.Players) {
		v.DealerSeat = s.Players[s.Dealer].Seat
	}

	for _, p := range s.Players {
		pv := PlayerView{
			Seat:      p.Seat,
			PlayerID:  p.PlayerID,
			Chips:     p.Chips,
			Bet:       p.Bet,
			Committed: p.Committed,
			InHand:    p.InHand,
			Folded:    p.Folded,
			AllIn:     p.AllIn,
			Out:       p.Out,
			Forfeited: p.Forfeited,
			HoleCount: len(p.Hole),
		}
		if viewer >= 0 && p.Seat == viewer {
			pv.Hole = append([]fairness.Card(nil), p.Hole...)
			if v.CurrentSeat == viewer {
				v.ToCall = s.CurrentBet - p.Bet
			}
		}
		v.Players = append(v.Players, pv)
	}
	return v
}
