package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/typerace/config"
	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/monitor"
	"github.com/wfunc/typerace/network"
	"github.com/wfunc/typerace/room"
	"github.com/wfunc/typerace/session"
)

const (
	heartbeatInterval = 30 * time.Second
	pingInterval      = 25 * time.Second
)

type GameServer struct {
	cfg            config.Config
	roomManager    *room.Manager
	sessionManager *session.Manager
	monitor        *monitor.Monitor
	upgrader       websocket.Upgrader
	httpServer     *http.Server
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
	connections    sync.WaitGroup
}

func NewGameServer(cfg config.Config, rooms *room.Manager, sessions *session.Manager, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    rooms,
		sessionManager: sessions,
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the HTTP surface: the websocket endpoint, metrics and a
// health probe.
func (s *GameServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	if path := s.cfg.Server.MetricsPath; path != "" && s.monitor != nil {
		r.Method(http.MethodGet, path, s.monitor.Handler())
	}
	return r
}

// 只允许配置的前端地址, "*" 表示不限制
func (s *GameServer) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Server.AllowedOrigin
	if allowed == "" || allowed == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == allowed
}

// Start blocks serving HTTP until Shutdown is called.
func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every live session and waits
// for their read loops to finish or ctx to expire.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		err = s.httpServer.Shutdown(ctx)
		s.sessionManager.CloseAll()

		done := make(chan struct{})
		go func() {
			s.connections.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	})
	return err
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"rooms":    s.roomManager.Count(),
		"sessions": s.sessionManager.Count(),
	})
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdownChan:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	s.handleConnection(wsConn)
}

func (s *GameServer) newSession(conn network.Connection) *session.Session {
	game := s.cfg.Game
	sess := session.NewSession(uuid.New().String(), conn,
		session.WithRateLimit(game.EventsPerSecond, game.EventBurst))
	s.sessionManager.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}
	return sess
}

// handleConnection owns one connection until it fails or the server shuts
// down, then runs the disconnect transition for every room it joined.
func (s *GameServer) handleConnection(conn network.Connection) {
	s.connections.Add(1)
	defer s.connections.Done()

	sess := s.newSession(conn)
	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
	go sess.WritePump(pingInterval)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		s.roomManager.Disconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		sess.Close()
		if s.monitor != nil {
			s.monitor.DecOnlinePlayers()
		}
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		case <-sess.Done():
			return
		default:
		}

		packet, err := conn.ReadPacket()
		if err != nil {
			if isMalformed(err) {
				logger.Log.Debugf("Session %s sent a malformed frame: %v", sess.GetID(), err)
				s.reject("MALFORMED")
				continue
			}
			return
		}
		s.Dispatch(sess, packet)
	}
}

func isMalformed(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, network.ErrEmptyEvent) ||
		errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr)
}

func (s *GameServer) reject(reason string) {
	if s.monitor != nil {
		s.monitor.IncRejected(reason)
	}
}
