package room

import (
	"fmt"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/models"
)

// EventComplete 决出赢家
const EventComplete = "complete"

// transitions 房间状态只能向前推进
var transitions = map[string]string{
	transitionKey(models.RoomStatusWaiting, game.EventStart):  models.RoomStatusActive,
	transitionKey(models.RoomStatusWaiting, game.EventCancel): models.RoomStatusCancelled,
	transitionKey(models.RoomStatusActive, EventComplete):     models.RoomStatusCompleted,
}

func transitionKey(status, event string) string {
	return fmt.Sprintf("%s:%s", status, event)
}

// CanTransition 当前状态是否接受该事件
func CanTransition(status, event string) bool {
	_, ok := transitions[transitionKey(status, event)]
	return ok
}

// Transition 按事件推进房间状态
func Transition(room *models.Room, event string) error {
	to, ok := transitions[transitionKey(room.Status, event)]
	if !ok {
		return errors.Newf(errors.ErrInvalidTransition, "status=%s event=%s", room.Status, event)
	}
	room.Status = to
	return nil
}
