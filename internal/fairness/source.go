// Package fairness 服务端随机数：掷骰与洗牌
package fairness

import (
	crand "crypto/rand"
	rand "math/rand/v2"
	"sync"

	"github.com/wfunc/wager-engine/internal/errors"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// Source 随机事件来源，所有机会事件都经过这里
type Source interface {
	// RollDice 返回1..6
	RollDice() (int, error)
	// ShuffledDeck 返回52张不重复的牌
	ShuffledDeck() ([]Card, error)
}

// randSource 基于 math/rand/v2 的实现，并发安全
type randSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewCryptoSource 使用 crypto/rand 播种的 ChaCha8 生成器
func NewCryptoSource() (Source, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "seed")
	}
	return &randSource{r: rand.New(rand.NewChaCha8(seed))}, nil
}

// NewSeeded 可复现的 PCG 生成器，用于测试和模拟
func NewSeeded(seed int64) Source {
	u := uint64(seed)
	return &randSource{r: rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))}
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// RollDice IntN 内部做拒绝采样，没有取模偏差
func (s *randSource) RollDice() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(6) + 1, nil
}

// ShuffledDeck Fisher-Yates 洗牌
func (s *randSource) ShuffledDeck() ([]Card, error) {
	deck := NewDeck()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck, nil
}
