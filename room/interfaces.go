package room

import "github.com/wfunc/typerace/models"

// Broadcaster delivers events to connections by player id. Implementations
// must not block; rooms call it while holding their lock so that events for
// one room leave in the order they were produced.
type Broadcaster interface {
	SendTo(playerIDs []string, event string, payload interface{})
}

// Member is the connection-side view of a player that the Manager keeps in
// sync with room membership.
type Member interface {
	GetID() string
	JoinRoom(roomID string)
	LeaveRoom(roomID string)
	Rooms() []string
}

// Observer is told about game lifecycle events. Calls happen under the room
// lock and must return quickly.
type Observer interface {
	GameStarted(roomID string, mode models.Mode)
	RoundAdvanced(roomID string, round int)
	GameFinished(result models.MatchResult)
}

type nopObserver struct{}

func (nopObserver) GameStarted(string, models.Mode) {}
func (nopObserver) RoundAdvanced(string, int)       {}
func (nopObserver) GameFinished(models.MatchResult) {}
