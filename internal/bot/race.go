package bot

import (
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/game/race"
)

// raceMove 按评分选择走法，score 为空时选择最靠前的棋子
func raceMove(s *race.State, score func(race.MoveOption) int) (game.Action, bool) {
	opts := s.Options()
	if len(opts) == 0 {
		return game.Action{}, false
	}
	best, bestScore := opts[0], -1<<31
	for _, o := range opts {
		v := o.From
		if score != nil {
			v = score(o)
		}
		if v > bestScore {
			best, bestScore = o, v
		}
	}
	return game.Move(best.TokenID), true
}

// raceScore 吃子优先，其次到家、出基地、落安全格
func raceScore(o race.MoveOption) int {
	v := o.To
	if o.Captures {
		v += 1000
	}
	if o.To == race.HomeProgress {
		v += 500
	}
	if o.From == race.BaseProgress {
		v += 300
	}
	if o.Safe {
		v += 100
	}
	return v
}
