// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/models"
	"github.com/wfunc/typerace/network"
	"github.com/wfunc/typerace/state"
	"github.com/wfunc/typerace/timer"
)

const DefaultMaxPlayers = 4

// Settings are the process-wide room defaults and collaborators.
type Settings struct {
	MaxPlayers int
	// TimeBetweenRounds (seconds) applies when a wave-rush config leaves it at zero.
	TimeBetweenRounds int
	TransitionGrace   time.Duration
	DefaultConfig     models.GameConfig
	Scheduler         timer.Scheduler
	Broadcaster       Broadcaster
	Observer          Observer
	Now               func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.MaxPlayers <= 0 {
		s.MaxPlayers = DefaultMaxPlayers
	}
	if s.TimeBetweenRounds <= 0 {
		s.TimeBetweenRounds = 5
	}
	if s.DefaultConfig.Mode == "" {
		s.DefaultConfig = models.NewTypeRaceConfig([]string{"about", "after", "again"})
	}
	if s.Observer == nil {
		s.Observer = nopObserver{}
	}
	if s.Scheduler == nil {
		s.Scheduler = timer.NewTimerManager()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// Room is one game session. Every exported method takes the room lock, so all
// mutations of a room are serialized.
type Room struct {
	ID string

	settings      Settings
	players       []*models.Player
	config        models.GameConfig
	gameStartTime *time.Time
	typeRace      []models.TypeRaceResultEntry
	waveRush      models.WaveRushResult
	machine       *state.BaseStateMachine
	transition    *timer.Slot
	closed        bool
	mutex         sync.Mutex
}

// NewRoom builds a room in the lobby with host as its only player. settings
// must already carry defaults (the Manager takes care of that).
func NewRoom(id string, host *models.Player, settings Settings) *Room {
	r := &Room{
		ID:         id,
		settings:   settings,
		config:     settings.DefaultConfig,
		typeRace:   []models.TypeRaceResultEntry{},
		waveRush:   models.NewWaveRushResult(),
		machine:    state.NewRoomMachine(),
		transition: timer.NewSlot(settings.Scheduler),
	}
	host.IsHost = true
	host.Progress.Caret = models.ResetCaret
	r.players = append(r.players, host)

	r.machine.OnChange(func(from, to state.Phase) {
		logger.Log.Debugf("Room %s: %s -> %s", r.ID, from, to)
	})
	return r
}

// --- 查询 ---

func (r *Room) Snapshot() models.RoomSnapshot {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.snapshotLocked()
}

func (r *Room) Players() []models.Player {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.playersLocked()
}

func (r *Room) Phase() state.Phase {
	return r.machine.Current()
}

func (r *Room) Config() models.GameConfig {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.config
}

func (r *Room) Closed() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.closed
}

// TransitionArmed reports whether a round transition is pending.
func (r *Room) TransitionArmed() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.transition.Armed()
}

func (r *Room) snapshotLocked() models.RoomSnapshot {
	snap := models.RoomSnapshot{
		RoomID:             r.ID,
		Players:            r.playersLocked(),
		Config:             r.config,
		TypeRaceGameResult: append([]models.TypeRaceResultEntry{}, r.typeRace...),
		WaveRushGameResult: r.waveRush.Clone(),
	}
	if r.gameStartTime != nil {
		ms := r.gameStartTime.UnixMilli()
		snap.GameStartTime = &ms
	}
	return snap
}

func (r *Room) playersLocked() []models.Player {
	out := make([]models.Player, len(r.players))
	for i, p := range r.players {
		out[i] = *p
	}
	return out
}

func (r *Room) findLocked(playerID string) *models.Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (r *Room) isHostLocked(playerID string) bool {
	p := r.findLocked(playerID)
	return p != nil && p.IsHost
}

func (r *Room) activeCountLocked() int {
	n := 0
	for _, p := range r.players {
		if !p.IsDisconnected {
			n++
		}
	}
	return n
}

func (r *Room) inProgressLocked() bool {
	return r.gameStartTime != nil
}

// --- 广播 ---

// broadcastLocked sends to every connected player in the room.
func (r *Room) broadcastLocked(event string, payload interface{}) {
	if r.settings.Broadcaster == nil {
		return
	}
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		if !p.IsDisconnected {
			ids = append(ids, p.ID)
		}
	}
	r.settings.Broadcaster.SendTo(ids, event, payload)
}

func (r *Room) sendToLocked(playerID, event string, payload interface{}) {
	if r.settings.Broadcaster == nil {
		return
	}
	r.settings.Broadcaster.SendTo([]string{playerID}, event, payload)
}

// --- 生命周期 ---

// announceCreated sends the initial snapshot to the host.
func (r *Room) announceCreated() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.players) > 0 {
		r.sendToLocked(r.players[0].ID, network.EventRoomCreated, r.snapshotLocked())
	}
}

// Join appends a non-host player and sends the snapshot to the whole room.
// Joining a room the player is already in resends the snapshot.
func (r *Room) Join(playerID, playerName string) (models.RoomSnapshot, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return models.RoomSnapshot{}, ErrRoomNotExist
	}
	if p := r.findLocked(playerID); p != nil && !p.IsDisconnected {
		snap := r.snapshotLocked()
		r.sendToLocked(playerID, network.EventRoomJoined, snap)
		return snap, nil
	}
	if len(r.players) >= r.settings.MaxPlayers {
		return models.RoomSnapshot{}, ErrRoomFull
	}
	if r.inProgressLocked() {
		return models.RoomSnapshot{}, ErrGameInProgress
	}

	r.players = append(r.players, &models.Player{
		ID:         playerID,
		PlayerName: playerName,
		Progress:   models.Progress{Caret: models.ResetCaret},
	})
	logger.Log.Infof("Player %s (%s) joined room %s", playerID, playerName, r.ID)

	snap := r.snapshotLocked()
	r.broadcastLocked(network.EventRoomJoined, snap)
	return snap, nil
}

// ChangeConfig replaces the room config. Host only, lobby only.
func (r *Room) ChangeConfig(playerID string, cfg models.GameConfig) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrRoomNotExist
	}
	if !r.isHostLocked(playerID) {
		return ErrUnauthorized
	}
	if r.inProgressLocked() {
		return ErrGameInProgress
	}
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	r.config = cfg
	r.broadcastLocked(network.EventConfigChanged, r.config)
	return nil
}

// Start begins a new game from any phase, discarding whatever was running.
func (r *Room) Start(playerID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrRoomNotExist
	}
	if !r.isHostLocked(playerID) {
		return ErrUnauthorized
	}

	pruned := r.resetLocked()
	now := r.settings.Now()
	r.gameStartTime = &now
	if err := r.machine.ChangeState(state.InProgress); err != nil {
		logger.Log.Errorf("Room %s: %v", r.ID, err)
	}

	logger.Log.Infof("Room %s started a %s game with %d players", r.ID, r.config.Mode, len(r.players))
	r.broadcastLocked(network.EventGameStarted, map[string]interface{}{
		"gameStartTime": now.UnixMilli(),
	})
	if pruned {
		r.broadcastLocked(network.EventPlayersUpdated, r.playersLocked())
	}
	r.settings.Observer.GameStarted(r.ID, r.config.Mode)
	return nil
}

// Stop abandons the running game (if any) and returns to the lobby.
func (r *Room) Stop(playerID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrRoomNotExist
	}
	if !r.isHostLocked(playerID) {
		return ErrUnauthorized
	}

	r.resetLocked()
	r.gameStartTime = nil
	if err := r.machine.ChangeState(state.Lobby); err != nil {
		logger.Log.Errorf("Room %s: %v", r.ID, err)
	}

	logger.Log.Infof("Room %s stopped by host %s", r.ID, playerID)
	r.broadcastLocked(network.EventGameStopped, nil)
	r.broadcastLocked(network.EventPlayersUpdated, r.playersLocked())
	return nil
}

// UpdateCaret records a player's cursor and relays it to the room. Unknown
// players are ignored.
func (r *Room) UpdateCaret(playerID string, caret models.Caret) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrRoomNotExist
	}
	p := r.findLocked(playerID)
	if p == nil {
		return nil
	}
	p.Progress.Caret = caret
	r.broadcastLocked(network.EventCaretUpdated, map[string]interface{}{
		"playerId": playerID,
		"caret":    caret,
	})
	return nil
}

// Disconnect marks the player as gone, hands host to the first connected
// player, and prunes disconnected players when no game is running. It
// reports whether the room is now empty of connected players, in which case
// the room has been closed and the caller must drop it from the registry.
func (r *Room) Disconnect(playerID string) (empty bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return false
	}
	p := r.findLocked(playerID)
	if p == nil || p.IsDisconnected {
		return false
	}

	p.IsDisconnected = true
	if p.IsHost {
		p.IsHost = false
		for _, next := range r.players {
			if !next.IsDisconnected {
				next.IsHost = true
				logger.Log.Infof("Room %s: host moved from %s to %s", r.ID, playerID, next.ID)
				r.sendToLocked(next.ID, network.EventHostChanged, map[string]string{"playerId": next.ID})
				break
			}
		}
	}

	if !r.inProgressLocked() {
		r.pruneLocked()
	}

	if r.activeCountLocked() == 0 {
		r.closeLocked()
		return true
	}
	r.broadcastLocked(network.EventPlayersUpdated, r.playersLocked())
	return false
}

// Close cancels pending work; later calls on the room report ErrRoomNotExist.
func (r *Room) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.closeLocked()
}

func (r *Room) closeLocked() {
	if r.closed {
		return
	}
	r.transition.Cancel()
	r.closed = true
	logger.Log.Infof("Room %s closed", r.ID)
}

// resetLocked clears everything a game leaves behind and drops disconnected
// players. It reports whether any player was dropped.
func (r *Room) resetLocked() bool {
	r.transition.Cancel()
	r.typeRace = []models.TypeRaceResultEntry{}
	r.waveRush = models.NewWaveRushResult()
	for _, p := range r.players {
		p.Progress.Caret = models.ResetCaret
	}
	return r.pruneLocked()
}

func (r *Room) pruneLocked() bool {
	kept := r.players[:0]
	for _, p := range r.players {
		if !p.IsDisconnected {
			kept = append(kept, p)
		}
	}
	pruned := len(kept) != len(r.players)
	for i := len(kept); i < len(r.players); i++ {
		r.players[i] = nil
	}
	r.players = kept
	return pruned
}
