package eventlog

import (
	"encoding/json"
	"reflect"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/fairness"
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/models"
)

// StartPayload 开局日志的载荷
type StartPayload struct {
	Seats  []game.Seat     `json:"seats"`
	Dealer int             `json:"dealer"`
	Rules  json.RawMessage `json:"rules,omitempty"`
}

// Replay 从开局日志起按序重放，随机结果取自日志
func Replay(engine game.Engine, entries []*models.ActionLogEntry) (game.State, error) {
	var state game.State
	for _, e := range entries {
		chance, err := ChanceOf(e)
		if err != nil {
			return nil, err
		}
		src := fairness.NewScripted(chance)

		switch e.ActionType {
		case game.EventCreate, game.EventJoin, game.EventCancel, game.EventSettle:
			continue
		case game.EventStart:
			var p StartPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, errors.Wrapf(err, errors.ErrDataIntegrity, "start payload seq %d", e.Seq)
			}
			eng := engine
			if len(p.Rules) > 0 {
				if eng, err = engine.WithRules(p.Rules); err != nil {
					return nil, err
				}
			}
			state, _, err = eng.Start(p.Seats, p.Dealer, src)
		case game.EventForfeit:
			if state == nil {
				continue
			}
			_, err = state.Forfeit(e.ActorSeat, src)
		default:
			if state == nil {
				return nil, errors.Newf(errors.ErrDataIntegrity, "action before start at seq %d", e.Seq)
			}
			var a game.Action
			if err := json.Unmarshal(e.Payload, &a); err != nil {
				return nil, errors.Wrapf(err, errors.ErrDataIntegrity, "action payload seq %d", e.Seq)
			}
			_, err = state.Apply(e.ActorSeat, a, src)
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrDataIntegrity, "replay seq %d", e.Seq)
		}
	}

	if state == nil {
		return nil, errors.New(errors.ErrDataIntegrity, "no start entry")
	}
	return state, nil
}

// SameState 两份状态 JSON 在语义上相同
func SameState(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
