package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wfunc/typerace/models"
)

type sentMessage struct {
	to      []string
	event   string
	payload interface{}
}

// recordingBroadcaster is a test double for the Broadcaster interface.
type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []sentMessage
}

func (b *recordingBroadcaster) SendTo(ids []string, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, sentMessage{to: append([]string(nil), ids...), event: event, payload: payload})
}

func (b *recordingBroadcaster) count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.msgs {
		if m.event == event {
			n++
		}
	}
	return n
}

// eventsFor lists, in order, the events delivered to playerID.
func (b *recordingBroadcaster) eventsFor(playerID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.msgs {
		for _, id := range m.to {
			if id == playerID {
				out = append(out, m.event)
			}
		}
	}
	return out
}

func (b *recordingBroadcaster) last(event string) (sentMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.msgs) - 1; i >= 0; i-- {
		if b.msgs[i].event == event {
			return b.msgs[i], true
		}
	}
	return sentMessage{}, false
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = nil
}

type pendingTimer struct {
	delay    time.Duration
	callback func()
}

// manualScheduler holds timers until the test fires them.
type manualScheduler struct {
	mu      sync.Mutex
	nextId  int64
	pending map[int64]pendingTimer
	delays  []time.Duration
}

func (s *manualScheduler) AddTimer(delay time.Duration, callback func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[int64]pendingTimer)
	}
	s.nextId++
	s.pending[s.nextId] = pendingTimer{delay: delay, callback: callback}
	s.delays = append(s.delays, delay)
	return s.nextId
}

func (s *manualScheduler) RemoveTimer(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	return ok
}

func (s *manualScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// take removes all pending timers and returns their callbacks without running
// them, as if they had fired but not yet been processed.
func (s *manualScheduler) take() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cbs []func()
	for id, p := range s.pending {
		cbs = append(cbs, p.callback)
		delete(s.pending, id)
	}
	return cbs
}

func (s *manualScheduler) fireAll() {
	for _, cb := range s.take() {
		cb()
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []models.Mode
	advanced []int
	finished []models.MatchResult
}

func (o *recordingObserver) GameStarted(roomID string, mode models.Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, mode)
}

func (o *recordingObserver) RoundAdvanced(roomID string, round int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.advanced = append(o.advanced, round)
}

func (o *recordingObserver) GameFinished(result models.MatchResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, result)
}

func (o *recordingObserver) finishedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.finished)
}

// fakeMember is a test double for the Member interface.
type fakeMember struct {
	id    string
	mu    sync.Mutex
	rooms map[string]bool
}

func newMember(id string) *fakeMember {
	return &fakeMember{id: id, rooms: make(map[string]bool)}
}

func (f *fakeMember) GetID() string { return f.id }

func (f *fakeMember) JoinRoom(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[roomID] = true
}

func (f *fakeMember) LeaveRoom(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomID)
}

func (f *fakeMember) Rooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.rooms {
		ids = append(ids, id)
	}
	return ids
}

type fixture struct {
	manager     *Manager
	broadcaster *recordingBroadcaster
	scheduler   *manualScheduler
	observer    *recordingObserver
	now         time.Time
}

func newFixture() *fixture {
	f := &fixture{
		broadcaster: &recordingBroadcaster{},
		scheduler:   &manualScheduler{},
		observer:    &recordingObserver{},
		now:         time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
	f.manager = NewRoomManager(Settings{
		MaxPlayers:        4,
		TimeBetweenRounds: 5,
		TransitionGrace:   time.Second,
		DefaultConfig:     models.NewTypeRaceConfig([]string{"apple", "bread"}),
		Scheduler:         f.scheduler,
		Broadcaster:       f.broadcaster,
		Observer:          f.observer,
		Now:               func() time.Time { return f.now },
	})
	return f
}

// roomWith creates a room hosted by ids[0] and joins the rest.
func (f *fixture) roomWith(t *testing.T, ids ...string) *Room {
	t.Helper()
	r := f.manager.CreateRoom(newMember(ids[0]), "player-"+ids[0])
	for _, id := range ids[1:] {
		_, err := f.manager.JoinRoom(r.ID, newMember(id), "player-"+id)
		require.NoError(t, err)
	}
	return r
}

func waveRushConfig(waves, timeBetweenRounds int) models.GameConfig {
	words := make([][]string, waves)
	for i := range words {
		words[i] = []string{"ocean", "river"}
	}
	return models.NewWaveRushConfig(words, 30, waves, timeBetweenRounds)
}

func hostCount(players []models.Player) int {
	n := 0
	for _, p := range players {
		if p.IsHost {
			n++
		}
	}
	return n
}
