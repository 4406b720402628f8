package bot

import (
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/game/holdem"
	"github.com/wfunc/wager-engine/internal/game/race"
)

// steady 稳健：飞行棋走最靠前的棋子，德州能过则过、能跟则跟
type steady struct{}

func (steady) Name() string { return string(Normal) }

func (steady) Choose(state game.State, seat int) game.Action {
	legal := state.LegalActions(seat)
	if len(legal) == 0 {
		return state.DefaultAction(seat)
	}
	if s, ok := state.(*race.State); ok {
		if a, ok := raceMove(s, nil); ok {
			return a
		}
	}
	if a, ok := pick(legal, game.ActionRoll, game.ActionCheck, game.ActionCall); ok {
		return a
	}
	return legal[0]
}

// sharp 进攻：飞行棋优先吃子，德州按牌力下注或弃牌
type sharp struct{}

func (sharp) Name() string { return string(Hard) }

func (sharp) Choose(state game.State, seat int) game.Action {
	legal := state.LegalActions(seat)
	if len(legal) == 0 {
		return state.DefaultAction(seat)
	}
	switch s := state.(type) {
	case *race.State:
		if a, ok := raceMove(s, raceScore); ok {
			return a
		}
	case *holdem.State:
		return holdemChoice(s, seat, legal)
	}
	if a, ok := pick(legal, game.ActionRoll, game.ActionCheck, game.ActionCall); ok {
		return a
	}
	return legal[0]
}

func holdemChoice(s *holdem.State, seat int, legal []game.Action) game.Action {
	view, _ := s.Public(seat).(holdem.View)
	var hole []fairness.Card
	for _, p := range view.Players {
		if p.Seat == seat {
			hole = p.Hole
		}
	}

	strength := handStrength(hole, view.Board)
	switch {
	case strength >= 2:
		if a, ok := pick(legal, game.ActionRaise, game.ActionBet, game.ActionCall, game.ActionCheck); ok {
			return a
		}
	case strength == 1 || view.ToCall*4 <= view.Pot:
		if a, ok := pick(legal, game.ActionCheck, game.ActionCall); ok {
			return a
		}
	}
	if a, ok := pick(legal, game.ActionCheck, game.ActionFold); ok {
		return a
	}
	return legal[0]
}

// handStrength 粗略牌力：0 弱，1 可玩，2 强
func handStrength(hole, board []fairness.Card) int {
	if len(hole) < 2 {
		return 0
	}
	high := func(c fairness.Card) bool { return c.Rank == fairness.Ace || c.Rank >= 10 }

	if len(board) == 0 {
		switch {
		case hole[0].Rank == hole[1].Rank:
			return 2
		case high(hole[0]) && high(hole[1]):
			return 2
		case high(hole[0]) || high(hole[1]) || hole[0].Suit == hole[1].Suit:
			return 1
		}
		return 0
	}

	counts := make(map[uint8]int, 7)
	for _, c := range board {
		counts[c.Rank]++
	}
	best := 0
	for _, c := range hole {
		n := counts[c.Rank] + 1
		if hole[0].Rank == hole[1].Rank {
			n++
		}
		if n >= 3 {
			return 2
		}
		if n == 2 {
			v := 1
			if high(c) {
				v = 2
			}
			best = max(best, v)
		}
	}
	return best
}
