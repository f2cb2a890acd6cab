package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/models"
	"github.com/wfunc/typerace/persistence"
	"github.com/wfunc/typerace/room"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and serves the given receivers. Each receiver is
// registered under its type name.
func NewServer(addr string, services ...interface{}) (*Server, error) {
	srv := rpc.NewServer()
	for _, svc := range services {
		if err := srv.Register(svc); err != nil {
			return nil, err
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Counter reports a size; session.Manager satisfies it.
type Counter interface {
	Count() int
}

// History is the match lookup the service exposes.
type History interface {
	History(ctx context.Context, roomID string, limit int) ([]models.MatchResult, error)
	TotalMatches(ctx context.Context) (int64, error)
}

// RoomService is the admin view of live rooms. Methods follow the net/rpc
// signature: exported args, pointer reply, error result.
type RoomService struct {
	rooms    *room.Manager
	sessions Counter
	history  History
}

func NewRoomService(rooms *room.Manager, sessions Counter, history History) *RoomService {
	return &RoomService{rooms: rooms, sessions: sessions, history: history}
}

// StatsArgs needs at least one exported field for gob.
type StatsArgs struct {
	WithRoomIDs bool
}

type StatsReply struct {
	Rooms    int
	Sessions int
	RoomIDs  []string
	Matches  int64
}

func (rs *RoomService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.Rooms = rs.rooms.Count()
	reply.Sessions = rs.sessions.Count()
	if args.WithRoomIDs {
		reply.RoomIDs = rs.rooms.RoomIDs()
	}
	if rs.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		n, err := rs.history.TotalMatches(ctx)
		if err != nil {
			return err
		}
		reply.Matches = n
	}
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room  models.RoomSnapshot
	Phase string
}

func (rs *RoomService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	r, ok := rs.rooms.GetRoom(args.RoomID)
	if !ok {
		return persistence.ErrRecordNotFound
	}
	reply.Room = r.Snapshot()
	reply.Phase = r.Phase().String()
	return nil
}

type MatchHistoryArgs struct {
	RoomID string
	Limit  int
}

type MatchHistoryReply struct {
	Matches []models.MatchResult
}

func (rs *RoomService) MatchHistory(args *MatchHistoryArgs, reply *MatchHistoryReply) error {
	if rs.history == nil {
		return persistence.ErrRecordNotFound
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	matches, err := rs.history.History(ctx, args.RoomID, args.Limit)
	if err != nil {
		return err
	}
	reply.Matches = matches
	return nil
}
