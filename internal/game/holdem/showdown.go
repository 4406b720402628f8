package holdem

import (
	"sort"

	"github.com/wfunc/wager-engine/internal/fairness"
)

type pot struct {
	amount   int64
	eligible []int
}

// layerPots 按投入额分层计算主池与边池
func (s *State) layerPots(live []int) []pot {
	levels := make([]int64, 0, len(live))
	seen := map[int64]bool{}
	for _, i := range live {
		c := s.Players[i].Committed
		if !seen[c] {
			seen[c] = true
			levels = append(levels, c)
		}
	}
	sort.Slice(levels, func(a, b int) bool { return levels[a] < levels[b] })

	var pots []pot
	var prev int64
	for _, level := range levels {
		var amount int64
		for _, p := range s.Players {
			amount += min(p.Committed, level) - min(p.Committed, prev)
		}
		var eligible []int
		for _, i := range live {
			if s.Players[i].Committed >= level {
				eligible = append(eligible, i)
			}
		}
		if amount > 0 {
			pots = append(pots, pot{amount: amount, eligible: eligible})
		}
		prev = level
	}

	// 弃牌者超出最高层的投入并入最后一层
	var rest int64
	for _, p := range s.Players {
		if p.Committed > prev {
			rest += p.Committed - prev
		}
	}
	if rest > 0 {
		if len(pots) == 0 {
			pots = append(pots, pot{eligible: live})
		}
		pots[len(pots)-1].amount += rest
	}
	return pots
}

// leftOfDealer 按庄家左手起的顺序排列
func (s *State) leftOfDealer(idx []int) []int {
	n := len(s.Players)
	ordered := append([]int(nil), idx...)
	sort.Slice(ordered, func(a, b int) bool {
		da := (ordered[a] - s.Dealer - 1 + n) % n
		db := (ordered[b] - s.Dealer - 1 + n) % n
		return da < db
	})
	return ordered
}

// showdown 比牌分池，平分时零头给庄家左手第一位赢家
func (s *State) showdown() error {
	live := s.leftOfDealer(s.liveIdx())
	result := &HandResult{
		HandNo:   s.HandNo,
		Board:    append([]fairness.Card(nil), s.Board...),
		Showdown: true,
		Payouts:  map[int]int64{},
		Shown:    map[int][]fairness.Card{},
		Hands:    map[int]string{},
	}

	scores := make(map[int]int, len(live))
	for _, i := range live {
		p := s.Players[i]
		var cards [7]fairness.Card
		copy(cards[:], s.Board)
		copy(cards[len(s.Board):], p.Hole)
		score, err := s.eval().Evaluate(cards)
		if err != nil {
			return err
		}
		scores[i] = score
		result.Shown[p.Seat] = append([]fairness.Card(nil), p.Hole...)
		result.Hands[p.Seat] = s.eval().Describe(cards[:])
	}

	for _, pt := range s.layerPots(live) {
		best := -1
		var winners []int
		for _, i := range live {
			if !contains(pt.eligible, i) {
				continue
			}
			switch {
			case scores[i] > best:
				best = scores[i]
				winners = []int{i}
			case scores[i] == best:
				winners = append(winners, i)
			}
		}

		share := pt.amount / int64(len(winners))
		odd := pt.amount % int64(len(winners))
		pr := PotResult{Amount: pt.amount}
		for k, i := range winners {
			won := share
			if int64(k) < odd {
				won++
			}
			p := s.Players[i]
			p.Chips += won
			result.Payouts[p.Seat] += won
			pr.Winners = append(pr.Winners, p.Seat)
		}
		result.Pots = append(result.Pots, pr)
	}

	s.Pot = 0
	s.LastHand = result
	return nil
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
