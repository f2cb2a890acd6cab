package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/typerace/models"
	"github.com/wfunc/typerace/network"
	"github.com/wfunc/typerace/state"
)

func TestTypeRace_DuplicateSubmissionIgnored(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "alice", "bob")
	require.NoError(t, r.Start("alice"))

	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{Wpm: 70}))
	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{Wpm: 99}))

	results := r.Snapshot().TypeRaceGameResult
	require.Len(t, results, 1)
	assert.Equal(t, 70.0, results[0].Stats.Wpm)
	assert.Equal(t, 1, f.broadcaster.count(network.EventTypeRaceResultUpdated))
}

func TestTypeRace_FinishesWhenAllActiveReported(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "alice", "bob")
	require.NoError(t, r.Start("alice"))

	require.NoError(t, r.SubmitTypeRaceResult("alice", models.PlayerStats{Wpm: 60}))
	assert.Zero(t, f.broadcaster.count(network.EventGameFinished))

	f.now = f.now.Add(30 * time.Second)
	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{Wpm: 90}))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))

	msg, _ := f.broadcaster.last(network.EventGameFinished)
	payload := msg.payload.(map[string]interface{})
	assert.Len(t, payload["typeRaceGameResult"], 2)

	// folded back into the lobby
	snap := r.Snapshot()
	assert.Nil(t, snap.GameStartTime)
	assert.Empty(t, snap.TypeRaceGameResult)
	assert.Equal(t, state.Lobby, r.Phase())

	require.Equal(t, 1, f.observer.finishedCount())
	rec := f.observer.finished[0]
	assert.Equal(t, r.ID, rec.RoomID)
	assert.Equal(t, 30*time.Second, rec.FinishedAt.Sub(rec.StartedAt))
	require.Len(t, rec.Participants, 2)
	assert.Equal(t, 1, rec.Participants[0].Position)
	assert.Equal(t, 2, rec.Participants[1].Position)

	// a late submission after the game is over does nothing
	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{}))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))
}

func TestTypeRace_NotInRoom(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "alice")
	require.NoError(t, r.Start("alice"))

	err := r.SubmitTypeRaceResult("mallory", models.PlayerStats{})
	assert.ErrorIs(t, err, ErrNotInRoom)
	assert.Empty(t, r.Snapshot().TypeRaceGameResult)
}

func TestTypeRace_IgnoredOutsideTypeRaceGame(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "alice", "bob")

	// lobby: no-op, even for strangers
	require.NoError(t, r.SubmitTypeRaceResult("mallory", models.PlayerStats{}))
	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{}))

	require.NoError(t, r.ChangeConfig("alice", waveRushConfig(2, 1)))
	require.NoError(t, r.Start("alice"))
	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{}))

	assert.Empty(t, r.Snapshot().TypeRaceGameResult)
	assert.Zero(t, f.broadcaster.count(network.EventTypeRaceResultUpdated))
}

func TestTypeRace_DisconnectedPlayersDoNotBlockCompletion(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "alice", "bob", "carol")
	require.NoError(t, r.Start("alice"))

	require.NoError(t, r.SubmitTypeRaceResult("alice", models.PlayerStats{}))
	r.Disconnect("carol")
	assert.Zero(t, f.broadcaster.count(network.EventGameFinished), "a disconnect never finishes a game by itself")

	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{}))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))
	assert.Len(t, r.Players(), 2, "reset prunes the disconnected player")
}

func TestTypeRace_SubmitterWhoLeftStillCounts(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "alice", "bob", "carol")
	require.NoError(t, r.Start("alice"))

	require.NoError(t, r.SubmitTypeRaceResult("carol", models.PlayerStats{}))
	r.Disconnect("carol")
	assert.Zero(t, f.broadcaster.count(network.EventGameFinished))

	// two results, two connected players
	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{}))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))
	require.Equal(t, 1, f.observer.finishedCount())
	assert.Len(t, f.observer.finished[0].TypeRace, 2)
}

func TestTypeRace_FinishesWhenSubmittersOutnumberRemaining(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "p1", "p2", "p3", "p4")
	require.NoError(t, r.Start("p1"))

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, r.SubmitTypeRaceResult(id, models.PlayerStats{}))
	}
	r.Disconnect("p2")
	r.Disconnect("p3")

	require.NoError(t, r.SubmitTypeRaceResult("p4", models.PlayerStats{}))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))
}

func TestTypeRace_NotCompleteUntilCountReached(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "alice", "bob", "carol")
	require.NoError(t, r.Start("alice"))

	require.NoError(t, r.SubmitTypeRaceResult("alice", models.PlayerStats{}))
	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{}))
	assert.Zero(t, f.broadcaster.count(network.EventGameFinished), "carol is still typing")

	require.NoError(t, r.SubmitTypeRaceResult("carol", models.PlayerStats{}))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))
}

func TestTypeRace_PlayerWhoLeftCannotSubmit(t *testing.T) {
	f := newFixture()
	r := f.roomWith(t, "alice", "bob", "carol")
	require.NoError(t, r.Start("alice"))

	r.Disconnect("carol")
	assert.ErrorIs(t, r.SubmitTypeRaceResult("carol", models.PlayerStats{}), ErrNotInRoom)
	assert.Zero(t, f.broadcaster.count(network.EventTypeRaceResultUpdated))

	require.NoError(t, r.SubmitTypeRaceResult("alice", models.PlayerStats{}))
	assert.Zero(t, f.broadcaster.count(network.EventGameFinished), "bob has not reported")
	require.NoError(t, r.SubmitTypeRaceResult("bob", models.PlayerStats{}))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))
}

func TestTypeRace_ConcurrentDuplicates(t *testing.T) {
	f := newFixture()
	ids := []string{"p1", "p2", "p3", "p4"}
	r := f.roomWith(t, ids...)
	require.NoError(t, r.Start("p1"))

	var wg sync.WaitGroup
	for _, id := range ids {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(id string, wpm int) {
				defer wg.Done()
				_ = r.SubmitTypeRaceResult(id, models.PlayerStats{Wpm: float64(wpm)})
			}(id, i)
		}
	}
	wg.Wait()

	assert.Equal(t, 4, f.broadcaster.count(network.EventTypeRaceResultUpdated))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))
	require.Equal(t, 1, f.observer.finishedCount())

	seen := map[string]int{}
	for _, e := range f.observer.finished[0].TypeRace {
		seen[e.PlayerID]++
	}
	for _, id := range ids {
		assert.Equal(t, 1, seen[id], id)
	}
}

func startWaveRush(t *testing.T, f *fixture, waves, timeBetweenRounds int, ids ...string) *Room {
	t.Helper()
	r := f.roomWith(t, ids...)
	require.NoError(t, r.ChangeConfig(ids[0], waveRushConfig(waves, timeBetweenRounds)))
	require.NoError(t, r.Start(ids[0]))
	f.broadcaster.reset()
	return r
}

func TestWaveRush_RoundTransition(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 3, 3, "alice", "bob")

	require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{PlayerStats: models.PlayerStats{Wpm: 50}}))
	assert.Zero(t, f.broadcaster.count(network.EventStartTransition))
	assert.Zero(t, f.scheduler.armed())

	require.NoError(t, r.SubmitRoundResult("bob", models.RoundResult{PlayerStats: models.PlayerStats{Wpm: 55}}))
	assert.Equal(t, 1, f.broadcaster.count(network.EventStartTransition))
	assert.Equal(t, state.Transitioning, r.Phase())
	require.Equal(t, 1, f.scheduler.armed())
	assert.Equal(t, []time.Duration{4 * time.Second}, f.scheduler.delays)
	assert.True(t, r.TransitionArmed())

	f.scheduler.fireAll()

	snap := r.Snapshot()
	assert.Equal(t, 1, snap.WaveRushGameResult.CurrentRound)
	assert.Len(t, snap.WaveRushGameResult.ByRound[0], 2)
	assert.Equal(t, state.InProgress, r.Phase())
	assert.False(t, r.TransitionArmed())
	assert.Equal(t, 1, f.broadcaster.count(network.EventNextRoundStarted))
	assert.Equal(t, []int{1}, f.observer.advanced)

	// the new round accepts submissions again
	require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
	assert.Len(t, r.Snapshot().WaveRushGameResult.ByRound[1], 1)
	assert.Len(t, r.Snapshot().WaveRushGameResult.ByPlayer["alice"], 2)
}

func TestWaveRush_PlayerIDFromConnection(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 2, 1, "alice", "bob")

	require.NoError(t, r.SubmitRoundResult("bob", models.RoundResult{PlayerID: "alice"}))

	wr := r.Snapshot().WaveRushGameResult
	require.Len(t, wr.ByRound[0], 1)
	assert.Equal(t, "bob", wr.ByRound[0][0].PlayerID)
	assert.Len(t, wr.ByPlayer["bob"], 1)
	assert.Empty(t, wr.ByPlayer["alice"])
}

func TestWaveRush_DuplicateInRoundIgnored(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 2, 1, "alice", "bob", "carol")

	for i := 0; i < 3; i++ {
		require.NoError(t, r.SubmitRoundResult("bob", models.RoundResult{PlayerStats: models.PlayerStats{Correct: i}}))
	}

	wr := r.Snapshot().WaveRushGameResult
	require.Len(t, wr.ByRound[0], 1)
	assert.Equal(t, 0, wr.ByRound[0][0].Correct)
	assert.Len(t, wr.ByPlayer["bob"], 1)
	assert.Equal(t, 1, f.broadcaster.count(network.EventWaveRushStateUpdated))
}

func TestWaveRush_SubmissionsDuringTransitionIgnored(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 3, 1, "alice")

	require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
	require.Equal(t, state.Transitioning, r.Phase())

	require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
	assert.Len(t, r.Snapshot().WaveRushGameResult.ByPlayer["alice"], 1)
	assert.Equal(t, 1, f.broadcaster.count(network.EventStartTransition))
	assert.Equal(t, 1, f.scheduler.armed())
}

func TestWaveRush_FinalWaveFinishes(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 2, 1, "alice", "bob")

	for round := 0; round < 2; round++ {
		require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
		require.NoError(t, r.SubmitRoundResult("bob", models.RoundResult{}))
		f.scheduler.fireAll()
	}

	assert.Equal(t, 1, f.broadcaster.count(network.EventNextRoundStarted))
	assert.Equal(t, 1, f.broadcaster.count(network.EventGameFinished))
	assert.Equal(t, state.Lobby, r.Phase())
	assert.Nil(t, r.Snapshot().GameStartTime)
	assert.Zero(t, r.Snapshot().WaveRushGameResult.CurrentRound)

	require.Equal(t, 1, f.observer.finishedCount())
	rec := f.observer.finished[0]
	require.NotNil(t, rec.WaveRush)
	assert.Len(t, rec.WaveRush.ByRound, 2)
	assert.Equal(t, 2, rec.WaveRush.CurrentRound)
}

func TestWaveRush_DefaultTimeBetweenRounds(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 2, 0, "alice")

	assert.Equal(t, 6*time.Second, r.TransitionDelay())
	require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
	assert.Equal(t, []time.Duration{6 * time.Second}, f.scheduler.delays)
}

func TestWaveRush_StaleTimerAfterResetHasNoEffect(t *testing.T) {
	for _, reset := range []string{"stop", "start"} {
		t.Run(reset, func(t *testing.T) {
			f := newFixture()
			r := startWaveRush(t, f, 3, 1, "alice", "bob")
			require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
			require.NoError(t, r.SubmitRoundResult("bob", models.RoundResult{}))

			// the timer fires, but the room resets before the callback runs
			fired := f.scheduler.take()
			require.Len(t, fired, 1)
			if reset == "stop" {
				require.NoError(t, r.Stop("alice"))
			} else {
				require.NoError(t, r.Start("alice"))
			}
			f.broadcaster.reset()

			fired[0]()

			assert.Zero(t, r.Snapshot().WaveRushGameResult.CurrentRound)
			assert.Zero(t, f.broadcaster.count(network.EventNextRoundStarted))
			assert.Zero(t, f.broadcaster.count(network.EventGameFinished))
			assert.Empty(t, f.observer.advanced)
		})
	}
}

func TestWaveRush_ResetCancelsPendingTimer(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 3, 1, "alice")
	require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
	require.Equal(t, 1, f.scheduler.armed())

	require.NoError(t, r.Stop("alice"))
	assert.Zero(t, f.scheduler.armed())
	assert.False(t, r.TransitionArmed())
}

func TestWaveRush_TimerAfterRoomDeleted(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 3, 1, "alice", "bob")
	require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
	require.NoError(t, r.SubmitRoundResult("bob", models.RoundResult{}))
	fired := f.scheduler.take()
	require.Len(t, fired, 1)

	f.manager.LeaveRoom(r.ID, newMember("alice"))
	f.manager.LeaveRoom(r.ID, newMember("bob"))
	_, exists := f.manager.GetRoom(r.ID)
	require.False(t, exists)
	f.broadcaster.reset()

	assert.NotPanics(t, fired[0])
	assert.Zero(t, len(f.broadcaster.msgs))
	_, exists = f.manager.GetRoom(r.ID)
	assert.False(t, exists, "a late timer must not resurrect the room")
}

func TestWaveRush_NotInRoomAndWrongMode(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 2, 1, "alice")

	assert.ErrorIs(t, r.SubmitRoundResult("mallory", models.RoundResult{}), ErrNotInRoom)

	require.NoError(t, r.Stop("alice"))
	require.NoError(t, r.ChangeConfig("alice", models.NewTypeRaceConfig([]string{"a"})))
	require.NoError(t, r.Start("alice"))
	require.NoError(t, r.SubmitRoundResult("alice", models.RoundResult{}))
	assert.Empty(t, r.Snapshot().WaveRushGameResult.ByRound)
}

func TestWaveRush_SubmitterWhoLeftStillCounts(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 2, 1, "alice", "bob", "carol")

	require.NoError(t, r.SubmitRoundResult("carol", models.RoundResult{}))
	r.Disconnect("carol")
	require.NoError(t, r.SubmitRoundResult("bob", models.RoundResult{}))

	assert.Equal(t, 1, f.broadcaster.count(network.EventStartTransition))
	assert.Equal(t, 1, f.scheduler.armed())
}

func TestWaveRush_PlayerWhoLeftCannotSubmit(t *testing.T) {
	f := newFixture()
	r := startWaveRush(t, f, 2, 1, "alice", "bob")

	r.Disconnect("bob")
	assert.ErrorIs(t, r.SubmitRoundResult("bob", models.RoundResult{}), ErrNotInRoom)
	assert.Empty(t, r.Snapshot().WaveRushGameResult.ByRound[0])
	assert.Zero(t, f.scheduler.armed())
}

func TestWaveRush_AtMostOnePerRoundUnderConcurrency(t *testing.T) {
	f := newFixture()
	ids := []string{"p1", "p2", "p3", "p4"}
	r := startWaveRush(t, f, 2, 1, ids...)

	var wg sync.WaitGroup
	for _, id := range ids {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_ = r.SubmitRoundResult(id, models.RoundResult{PlayerID: fmt.Sprintf("spoof-%s", id)})
			}(id)
		}
	}
	wg.Wait()

	wr := r.Snapshot().WaveRushGameResult
	require.Len(t, wr.ByRound[0], 4)
	for _, id := range ids {
		assert.Len(t, wr.ByPlayer[id], 1, id)
	}
	assert.Equal(t, 1, f.broadcaster.count(network.EventStartTransition))
	assert.Equal(t, 1, f.scheduler.armed())
}
