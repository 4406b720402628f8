package holdem

import (
	"github.com/paulhankin/poker"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/fairness"
)

// Evaluator 七张牌的牌力评估，分值越大越强，相同分值为平局
type Evaluator interface {
	Evaluate(cards [7]fairness.Card) (int, error)
	Describe(cards []fairness.Card) string
}

// PokerEvaluator 基于 paulhankin/poker 的查表评估
type PokerEvaluator struct{}

// NewEvaluator 默认评估器
func NewEvaluator() Evaluator {
	return PokerEvaluator{}
}

func toPoker(c fairness.Card) (poker.Card, error) {
	if !c.Valid() {
		return 0, errors.Newf(errors.ErrDataIntegrity, "card %s", c)
	}
	card, err := poker.MakeCard(poker.Suit(c.Suit), poker.Rank(c.Rank))
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrDataIntegrity, "card %s", c)
	}
	return card, nil
}

// Evaluate 评估七张牌
func (PokerEvaluator) Evaluate(cards [7]fairness.Card) (int, error) {
	var hand [7]poker.Card
	for i, c := range cards {
		pc, err := toPoker(c)
		if err != nil {
			return 0, err
		}
		hand[i] = pc
	}
	return int(poker.Eval7(&hand)), nil
}

// Describe 牌型描述，如 "two pair, kings and fives"
func (PokerEvaluator) Describe(cards []fairness.Card) string {
	hand := make([]poker.Card, 0, len(cards))
	for _, c := range cards {
		pc, err := toPoker(c)
		if err != nil {
			return ""
		}
		hand = append(hand, pc)
	}
	desc, err := poker.Describe(hand)
	if err != nil {
		return ""
	}
	return desc
}
