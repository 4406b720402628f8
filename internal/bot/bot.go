// Package bot 补位机器人的出招策略
package bot

import (
	rand "math/rand/v2"
	"strings"
	"sync"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/game"
)

// Difficulty 机器人难度
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Normal Difficulty = "normal"
	Hard   Difficulty = "hard"
)

// PlayerPrefix 机器人玩家ID前缀
const PlayerPrefix = "bot-"

// ParseDifficulty 解析难度，空字符串返回 Normal
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Normal, nil
	case Easy, Normal, Hard:
		return d, nil
	default:
		return "", errors.Newf(errors.ErrInvalidParam, "bot difficulty %q", s)
	}
}

// Strategy 根据状态为座位选择动作
type Strategy interface {
	Name() string
	Choose(state game.State, seat int) game.Action
}

// For 按难度取策略
func For(d Difficulty, rng *rand.Rand) Strategy {
	switch d {
	case Easy:
		return newRandom(rng)
	case Hard:
		return sharp{}
	default:
		return steady{}
	}
}

// random 在合法动作中随机选择
type random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newRandom(rng *rand.Rand) *random {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &random{rng: rng}
}

func (r *random) Name() string { return string(Easy) }

func (r *random) Choose(state game.State, seat int) game.Action {
	legal := state.LegalActions(seat)
	if len(legal) == 0 {
		return state.DefaultAction(seat)
	}
	r.mu.Lock()
	i := r.rng.IntN(len(legal))
	r.mu.Unlock()
	return legal[i]
}

func pick(legal []game.Action, types ...game.ActionType) (game.Action, bool) {
	for _, t := range types {
		for _, a := range legal {
			if a.Type == t {
				return a, true
			}
		}
	}
	return game.Action{}, false
}
