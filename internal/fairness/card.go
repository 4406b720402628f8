package fairness

import "fmt"

// 花色
const (
	Clubs uint8 = iota
	Diamonds
	Hearts
	Spades
)

// Ace 以1表示，K为13
const (
	Ace   uint8 = 1
	Jack  uint8 = 11
	Queen uint8 = 12
	King  uint8 = 13
)

// DeckSize 一副牌的张数
const DeckSize = 52

// Card 扑克牌
type Card struct {
	Suit uint8 `json:"s"`
	Rank uint8 `json:"r"`
}

// Index 0..51，用于判重
func (c Card) Index() int {
	return int(c.Suit)*13 + int(c.Rank) - 1
}

// Valid 花色与点数在范围内
func (c Card) Valid() bool {
	return c.Suit <= Spades && c.Rank >= Ace && c.Rank <= King
}

// String 如 "As", "Td", "7c"
func (c Card) String() string {
	ranks := "A23456789TJQK"
	suits := "cdhs"
	if !c.Valid() {
		return fmt.Sprintf("?%d/%d", c.Suit, c.Rank)
	}
	return string(ranks[c.Rank-1]) + string(suits[c.Suit])
}

// ParseCard 解析 "As" 形式的牌面
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	ranks := "A23456789TJQK"
	suits := "cdhs"
	var c Card
	r, su := -1, -1
	for i := range ranks {
		if ranks[i] == s[0] {
			r = i
		}
	}
	for i := range suits {
		if suits[i] == s[1] {
			su = i
		}
	}
	if r < 0 || su < 0 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	c.Rank = uint8(r + 1)
	c.Suit = uint8(su)
	return c, nil
}

// MustCards 测试辅助，解析失败直接panic
func MustCards(ss ...string) []Card {
	cards := make([]Card, len(ss))
	for i, s := range ss {
		c, err := ParseCard(s)
		if err != nil {
			panic(err)
		}
		cards[i] = c
	}
	return cards
}

// NewDeck 按花色顺序排列的完整一副牌
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for s := Clubs; s <= Spades; s++ {
		for r := Ace; r <= King; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}
