package fairness

import (
	"sync"

	"github.com/wfunc/wager-engine/internal/errors"
)

// Chance 一次操作中产生的全部随机结果
type Chance struct {
	Dice  []int    `json:"dice,omitempty"`
	Decks [][]Card `json:"decks,omitempty"`
}

// Empty 没有任何随机结果
func (c Chance) Empty() bool {
	return len(c.Dice) == 0 && len(c.Decks) == 0
}

// Scripted 按预设顺序返回结果，用于日志重放和固定牌局测试
type Scripted struct {
	mu    sync.Mutex
	dice  []int
	decks [][]Card
}

// NewScripted 创建脚本化来源
func NewScripted(c Chance) *Scripted {
	s := &Scripted{}
	s.PushDice(c.Dice...)
	for _, d := range c.Decks {
		s.PushDeck(d)
	}
	return s
}

// PushDice 追加骰子结果
func (s *Scripted) PushDice(values ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dice = append(s.dice, values...)
}

// PushDeck 追加牌序，长度不足52时用剩余牌按顺序补齐
func (s *Scripted) PushDeck(top []Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks = append(s.decks, completeDeck(top))
}

// Remaining 尚未消费的骰子与牌序数量
func (s *Scripted) Remaining() (dice, decks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dice), len(s.decks)
}

// RollDice 取下一个骰子结果
func (s *Scripted) RollDice() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dice) == 0 {
		return 0, errors.New(errors.ErrDataIntegrity, "scripted dice exhausted")
	}
	v := s.dice[0]
	s.dice = s.dice[1:]
	if v < 1 || v > 6 {
		return 0, errors.Newf(errors.ErrDataIntegrity, "scripted dice value %d", v)
	}
	return v, nil
}

// ShuffledDeck 取下一副牌
func (s *Scripted) ShuffledDeck() ([]Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.decks) == 0 {
		return nil, errors.New(errors.ErrDataIntegrity, "scripted deck exhausted")
	}
	d := s.decks[0]
	s.decks = s.decks[1:]
	return d, nil
}

func completeDeck(top []Card) []Card {
	seen := make(map[int]bool, DeckSize)
	deck := make([]Card, 0, DeckSize)
	for _, c := range top {
		if !c.Valid() || seen[c.Index()] {
			continue
		}
		seen[c.Index()] = true
		deck = append(deck, c)
	}
	for _, c := range NewDeck() {
		if !seen[c.Index()] {
			deck = append(deck, c)
		}
	}
	return deck
}

// Recorder 包装 Source 并记录产生的结果
type Recorder struct {
	src    Source
	chance Chance
}

// Record 开始记录一次操作的随机结果
func Record(src Source) *Recorder {
	return &Recorder{src: src}
}

// RollDice 掷骰并记录
func (r *Recorder) RollDice() (int, error) {
	v, err := r.src.RollDice()
	if err != nil {
		return 0, err
	}
	r.chance.Dice = append(r.chance.Dice, v)
	return v, nil
}

// ShuffledDeck 洗牌并记录
func (r *Recorder) ShuffledDeck() ([]Card, error) {
	d, err := r.src.ShuffledDeck()
	if err != nil {
		return nil, err
	}
	r.chance.Decks = append(r.chance.Decks, append([]Card(nil), d...))
	return d, nil
}

// Chance 已记录的结果
func (r *Recorder) Chance() Chance {
	return r.chance
}
