package room

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/models"
)

const (
	roomIDLength   = 6
	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewRoomID returns a random base36 id of roomIDLength characters.
func NewRoomID() string {
	u := uuid.New()
	b := make([]byte, roomIDLength)
	for i := range b {
		b[i] = roomIDAlphabet[int(u[i])%len(roomIDAlphabet)]
	}
	return string(b)
}

// --- 房间管理器 ---

// Manager is the registry of live rooms. It also keeps each Member's room set
// in step with the rooms it joins and leaves.
type Manager struct {
	rooms    map[string]*Room
	settings Settings
	newID    func() string
	mutex    sync.RWMutex
}

func NewRoomManager(settings Settings) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		settings: settings.withDefaults(),
		newID:    NewRoomID,
	}
}

// Settings returns the effective settings rooms are created with.
func (m *Manager) Settings() Settings {
	return m.settings
}

// CreateRoom registers a new room hosted by member and sends the host the
// initial snapshot.
func (m *Manager) CreateRoom(member Member, playerName string) *Room {
	host := &models.Player{ID: member.GetID(), PlayerName: playerName}

	m.mutex.Lock()
	id := m.newID()
	for _, taken := m.rooms[id]; taken; _, taken = m.rooms[id] {
		id = m.newID()
	}
	room := NewRoom(id, host, m.settings)
	m.rooms[id] = room
	m.mutex.Unlock()

	member.JoinRoom(id)
	logger.Log.Infof("Player %s (%s) created room %s", member.GetID(), playerName, id)
	room.announceCreated()
	return room
}

// JoinRoom adds member to an existing room.
func (m *Manager) JoinRoom(roomID string, member Member, playerName string) (*Room, error) {
	room, ok := m.GetRoom(roomID)
	if !ok {
		return nil, ErrRoomNotExist
	}
	if _, err := room.Join(member.GetID(), playerName); err != nil {
		return nil, err
	}
	member.JoinRoom(roomID)
	return room, nil
}

// LeaveRoom runs the disconnect transition for member in one room and drops
// the room once nobody connected is left.
func (m *Manager) LeaveRoom(roomID string, member Member) {
	member.LeaveRoom(roomID)

	room, ok := m.GetRoom(roomID)
	if !ok {
		return
	}
	if room.Disconnect(member.GetID()) {
		m.RemoveRoom(roomID)
	}
}

// Disconnect leaves every room member belongs to.
func (m *Manager) Disconnect(member Member) {
	for _, roomID := range member.Rooms() {
		m.LeaveRoom(roomID, member)
	}
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	room, exists := m.rooms[id]
	delete(m.rooms, id)
	m.mutex.Unlock()

	if exists {
		room.Close()
		logger.Log.Infof("Room %s deleted", id)
	}
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// RoomIDs returns the ids of all live rooms, sorted.
func (m *Manager) RoomIDs() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every room, cancelling pending transitions.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mutex.Unlock()

	for _, r := range rooms {
		r.Close()
	}
}
