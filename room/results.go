package room

import (
	"time"

	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/models"
	"github.com/wfunc/typerace/network"
	"github.com/wfunc/typerace/state"
)

// SubmitTypeRaceResult stores a player's final stats for the running
// type-race game. The first submission per player wins; later ones are
// ignored. When the number of results reaches the number of connected
// players, the game finishes.
func (r *Room) SubmitTypeRaceResult(playerID string, stats models.PlayerStats) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrRoomNotExist
	}
	if !r.inProgressLocked() || r.config.Mode != models.ModeTypeRace {
		return nil
	}
	if !r.isMemberLocked(playerID) {
		return ErrNotInRoom
	}
	for _, e := range r.typeRace {
		if e.PlayerID == playerID {
			return nil
		}
	}

	r.typeRace = append(r.typeRace, models.TypeRaceResultEntry{PlayerID: playerID, Stats: stats})
	r.broadcastLocked(network.EventTypeRaceResultUpdated, models.TypeRaceResultEntry{
		PlayerID: playerID,
		Stats:    stats,
	})

	if r.completeLocked(len(r.typeRace)) {
		r.finishLocked()
	}
	return nil
}

// SubmitRoundResult stores a player's stats for the current wave-rush round.
// The player id inside result is replaced with playerID. When the round's
// results reach the number of connected players, the room enters the
// transition and arms the round timer.
func (r *Room) SubmitRoundResult(playerID string, result models.RoundResult) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrRoomNotExist
	}
	if !r.inProgressLocked() || r.config.Mode != models.ModeWaveRush {
		return nil
	}
	if !r.isMemberLocked(playerID) {
		return ErrNotInRoom
	}
	if r.machine.Current() != state.InProgress {
		return nil
	}

	result.PlayerID = playerID
	round := r.waveRush.CurrentRound
	for _, e := range r.waveRush.ByRound[round] {
		if e.PlayerID == playerID {
			return nil
		}
	}

	r.waveRush.ByRound[round] = append(r.waveRush.ByRound[round], result)
	r.waveRush.ByPlayer[playerID] = append(r.waveRush.ByPlayer[playerID], result)
	r.broadcastLocked(network.EventWaveRushStateUpdated, r.waveRush.Clone())

	if r.completeLocked(len(r.waveRush.ByRound[round])) {
		if err := r.machine.ChangeState(state.Transitioning); err != nil {
			logger.Log.Errorf("Room %s: %v", r.ID, err)
		}
		r.broadcastLocked(network.EventStartTransition, map[string]int{"round": round})
		r.transition.Arm(r.transitionDelayLocked(), r.onTransitionTimer)
	}
	return nil
}

// completeLocked reports whether entries results cover the active players,
// counted at the moment of the submission. Results stored by players who
// disconnected afterwards still count towards entries.
func (r *Room) completeLocked(entries int) bool {
	active := r.activeCountLocked()
	return active > 0 && entries >= active
}

// isMemberLocked reports whether playerID is listed and still connected.
// Players who left mid-game stay listed until the next reset but may no
// longer submit.
func (r *Room) isMemberLocked(playerID string) bool {
	p := r.findLocked(playerID)
	return p != nil && !p.IsDisconnected
}

// TransitionDelay is the pause between the last result of a round and the
// start of the next one.
func (r *Room) TransitionDelay() time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.transitionDelayLocked()
}

func (r *Room) transitionDelayLocked() time.Duration {
	secs := r.config.TimeBetweenRounds
	if secs <= 0 {
		secs = r.settings.TimeBetweenRounds
	}
	return time.Duration(secs)*time.Second + r.settings.TransitionGrace
}

// onTransitionTimer runs on the scheduler's goroutine. A timer that was
// cancelled or replaced, or whose room is gone, does nothing.
func (r *Room) onTransitionTimer(gen uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed || !r.transition.Claim(gen) {
		return
	}

	r.waveRush.CurrentRound++
	if r.waveRush.CurrentRound >= r.config.Waves {
		r.finishLocked()
		return
	}

	if err := r.machine.ChangeState(state.InProgress); err != nil {
		logger.Log.Errorf("Room %s: %v", r.ID, err)
	}
	logger.Log.Infof("Room %s advanced to round %d", r.ID, r.waveRush.CurrentRound)
	r.broadcastLocked(network.EventWaveRushStateUpdated, r.waveRush.Clone())
	r.broadcastLocked(network.EventNextRoundStarted, map[string]int{"round": r.waveRush.CurrentRound})
	r.settings.Observer.RoundAdvanced(r.ID, r.waveRush.CurrentRound)
}

// finishLocked announces the final results and folds the room back into the
// lobby.
func (r *Room) finishLocked() {
	result := r.matchResultLocked()

	if err := r.machine.ChangeState(state.Finished); err != nil {
		logger.Log.Errorf("Room %s: %v", r.ID, err)
	}
	payload := map[string]interface{}{}
	switch r.config.Mode {
	case models.ModeTypeRace:
		payload["typeRaceGameResult"] = result.TypeRace
	case models.ModeWaveRush:
		payload["waveRushGameResult"] = result.WaveRush
	}
	r.broadcastLocked(network.EventGameFinished, payload)
	logger.Log.Infof("Room %s finished its %s game", r.ID, r.config.Mode)

	pruned := r.resetLocked()
	r.gameStartTime = nil
	if err := r.machine.ChangeState(state.Lobby); err != nil {
		logger.Log.Errorf("Room %s: %v", r.ID, err)
	}
	if pruned {
		r.broadcastLocked(network.EventPlayersUpdated, r.playersLocked())
	}
	r.settings.Observer.GameFinished(result)
}

func (r *Room) matchResultLocked() models.MatchResult {
	res := models.MatchResult{
		RoomID:     r.ID,
		Mode:       r.config.Mode,
		FinishedAt: r.settings.Now(),
	}
	if r.gameStartTime != nil {
		res.StartedAt = *r.gameStartTime
	}

	position := make(map[string]int)
	switch r.config.Mode {
	case models.ModeTypeRace:
		res.TypeRace = append([]models.TypeRaceResultEntry{}, r.typeRace...)
		for i, e := range r.typeRace {
			position[e.PlayerID] = i + 1
		}
	case models.ModeWaveRush:
		wr := r.waveRush.Clone()
		res.WaveRush = &wr
	}

	for _, p := range r.players {
		res.Participants = append(res.Participants, models.MatchParticipant{
			PlayerID:   p.ID,
			PlayerName: p.PlayerName,
			Position:   position[p.ID],
		})
	}
	return res
}
