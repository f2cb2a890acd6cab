// Package state models the room lifecycle as an explicit phase machine with a
// declared transition table.
package state

import (
	"errors"
	"fmt"
	"sync"
)

// Phase 房间阶段
type Phase int

const (
	Lobby Phase = iota
	InProgress
	// Transitioning: every active player reported the current wave-rush round
	// and the inter-round delay is running.
	Transitioning
	// Finished is terminal for one game and folds back into Lobby on reset.
	Finished
)

func (p Phase) String() string {
	switch p {
	case Lobby:
		return "lobby"
	case InProgress:
		return "in-progress"
	case Transitioning:
		return "transitioning"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine only permits transitions added with AddTransition.
type BaseStateMachine struct {
	current     Phase
	transitions map[Phase]map[Phase]struct{}
	onChange    func(from, to Phase)
	mutex       sync.RWMutex
}

func NewBaseStateMachine(initial Phase) *BaseStateMachine {
	return &BaseStateMachine{
		current:     initial,
		transitions: make(map[Phase]map[Phase]struct{}),
	}
}

// NewRoomMachine returns a machine in Lobby with the room transition table.
func NewRoomMachine() *BaseStateMachine {
	sm := NewBaseStateMachine(Lobby)

	// start/restart is allowed from every phase a host can observe
	sm.AddTransition(Lobby, InProgress)
	sm.AddTransition(InProgress, InProgress)
	sm.AddTransition(Transitioning, InProgress)

	// stop
	sm.AddTransition(Lobby, Lobby)
	sm.AddTransition(InProgress, Lobby)
	sm.AddTransition(Transitioning, Lobby)

	sm.AddTransition(InProgress, Transitioning)
	sm.AddTransition(InProgress, Finished)
	sm.AddTransition(Transitioning, Finished)
	sm.AddTransition(Finished, Lobby)
	return sm
}

func (sm *BaseStateMachine) AddTransition(from, to Phase) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[Phase]struct{})
	}
	sm.transitions[from][to] = struct{}{}
}

// OnChange registers a callback invoked after every successful transition.
func (sm *BaseStateMachine) OnChange(fn func(from, to Phase)) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.onChange = fn
}

func (sm *BaseStateMachine) ChangeState(to Phase) error {
	sm.mutex.Lock()
	from := sm.current
	if _, ok := sm.transitions[from][to]; !ok {
		sm.mutex.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	sm.current = to
	onChange := sm.onChange
	sm.mutex.Unlock()

	if onChange != nil {
		onChange(from, to)
	}
	return nil
}

func (sm *BaseStateMachine) Current() Phase {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.current
}
