// session/session.go
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wfunc/typerace/network"
)

const DefaultOutboxSize = 256

var (
	ErrOutboxFull    = errors.New("session outbox full")
	ErrSessionClosed = errors.New("session closed")
)

// Session is one live connection. Its ID doubles as the player id in every
// room the connection joins.
type Session struct {
	ID        string
	Conn      network.Connection
	rooms     map[string]struct{}
	limiter   *rate.Limiter
	outbox    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	mutex     sync.RWMutex
}

type Option func(*Session)

// WithRateLimit bounds inbound events to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Session) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithOutboxSize(n int) Option {
	return func(s *Session) {
		s.outbox = make(chan []byte, n)
	}
}

func NewSession(id string, conn network.Connection, opts ...Option) *Session {
	s := &Session{
		ID:     id,
		Conn:   conn,
		rooms:  make(map[string]struct{}),
		outbox: make(chan []byte, DefaultOutboxSize),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) GetID() string {
	return s.ID
}

// Send encodes an event and queues it for the writer. It never blocks.
func (s *Session) Send(event string, payload interface{}) error {
	frame, err := network.Encode(event, payload)
	if err != nil {
		return err
	}
	return s.SendFrame(frame)
}

// SendFrame queues an encoded frame. It never blocks: a full queue drops the
// frame and returns ErrOutboxFull.
func (s *Session) SendFrame(frame []byte) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	select {
	case s.outbox <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Outbox exposes queued frames. WritePump is the only reader in production.
func (s *Session) Outbox() <-chan []byte {
	return s.outbox
}

// WritePump drains the outbox to the connection until the session closes or
// a write fails.
func (s *Session) WritePump(pingInterval time.Duration) {
	var ping <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-s.closed:
			return
		case frame := <-s.outbox:
			if err := s.Conn.Send(frame); err != nil {
				s.Close()
				return
			}
		case <-ping:
			if err := s.Conn.Ping(); err != nil {
				s.Close()
				return
			}
		}
	}
}

// Allow reports whether another inbound event fits the rate limit.
func (s *Session) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// JoinRoom records room membership.
func (s *Session) JoinRoom(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rooms[roomID] = struct{}{}
}

func (s *Session) LeaveRoom(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.rooms, roomID)
}

func (s *Session) InRoom(roomID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Rooms returns the joined room ids, sorted.
func (s *Session) Rooms() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops the writer and closes the connection. Idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.Conn != nil {
			err = s.Conn.Close()
		}
	})
	return err
}

func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every registered session. Read loops blocked on their
// connection return once it is closed.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
