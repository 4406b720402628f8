package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/wager-engine/internal/errors"
)

func assertFullDeck(t *testing.T, deck []Card) {
	t.Helper()
	require.Len(t, deck, DeckSize)
	seen := make(map[int]bool)
	for _, c := range deck {
		require.True(t, c.Valid(), "card %v", c)
		require.False(t, seen[c.Index()], "duplicate %s", c)
		seen[c.Index()] = true
	}
}

func TestCryptoSource(t *testing.T) {
	src, err := NewCryptoSource()
	require.NoError(t, err)

	counts := make(map[int]int)
	for i := 0; i < 6000; i++ {
		v, err := src.RollDice()
		require.NoError(t, err)
		require.True(t, v >= 1 && v <= 6)
		counts[v]++
	}
	// 每个点数都应出现
	assert.Len(t, counts, 6)

	deck, err := src.ShuffledDeck()
	require.NoError(t, err)
	assertFullDeck(t, deck)
}

func TestSeededIsDeterministic(t *testing.T) {
	a, b := NewSeeded(42), NewSeeded(42)

	for i := 0; i < 20; i++ {
		va, _ := a.RollDice()
		vb, _ := b.RollDice()
		assert.Equal(t, va, vb)
	}

	da, _ := a.ShuffledDeck()
	db, _ := b.ShuffledDeck()
	assert.Equal(t, da, db)
	assertFullDeck(t, da)

	other, _ := NewSeeded(43).ShuffledDeck()
	assert.NotEqual(t, da, other)
}

func TestScripted(t *testing.T) {
	s := NewScripted(Chance{Dice: []int{6, 3}})
	s.PushDeck(MustCards("As", "Ks"))

	v, err := s.RollDice()
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	v, err = s.RollDice()
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = s.RollDice()
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity))

	deck, err := s.ShuffledDeck()
	require.NoError(t, err)
	assertFullDeck(t, deck)
	assert.Equal(t, "As", deck[0].String())
	assert.Equal(t, "Ks", deck[1].String())

	_, err = s.ShuffledDeck()
	assert.Error(t, err)
}

func TestRecorderReplays(t *testing.T) {
	rec := Record(NewSeeded(7))
	v1, _ := rec.RollDice()
	d1, _ := rec.ShuffledDeck()
	v2, _ := rec.RollDice()

	replay := NewScripted(rec.Chance())
	r1, _ := replay.RollDice()
	rd, _ := replay.ShuffledDeck()
	r2, _ := replay.RollDice()

	assert.Equal(t, v1, r1)
	assert.Equal(t, v2, r2)
	assert.Equal(t, d1, rd)
}

func TestParseCard(t *testing.T) {
	c, err := ParseCard("Td")
	require.NoError(t, err)
	assert.Equal(t, Card{Suit: Diamonds, Rank: 10}, c)
	assert.Equal(t, "Td", c.String())

	_, err = ParseCard("1x")
	assert.Error(t, err)
}
