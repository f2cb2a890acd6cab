package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/models"
	"github.com/wfunc/typerace/network"
	"github.com/wfunc/typerace/room"
	"github.com/wfunc/typerace/session"
)

// Inbound payloads.
type (
	createRoomRequest struct {
		PlayerName string `json:"playerName"`
	}
	joinRoomRequest struct {
		RoomID     string `json:"roomId"`
		PlayerName string `json:"playerName"`
	}
	roomRequest struct {
		RoomID string `json:"roomId"`
	}
	configChangeRequest struct {
		RoomID string            `json:"roomId"`
		Config models.GameConfig `json:"config"`
	}
	updateCaretRequest struct {
		RoomID   string `json:"roomId"`
		CaretIdx int    `json:"caretIdx"`
		WordIdx  int    `json:"wordIdx"`
	}
	playerFinishedRequest struct {
		RoomID string             `json:"roomId"`
		Stats  models.PlayerStats `json:"stats"`
	}
	playerFinishRoundRequest struct {
		RoomID  string             `json:"roomId"`
		Results models.RoundResult `json:"results"`
	}
)

// Dispatch routes one inbound packet. Recoverable failures become an
// errorEvent to the caller only.
func (s *GameServer) Dispatch(sess *session.Session, packet *network.Packet) {
	start := time.Now()

	if !sess.Allow() {
		logger.Log.Debugf("Session %s rate limited on %s", sess.GetID(), packet.Event)
		s.reject("RATE_LIMITED")
		return
	}
	if s.monitor != nil {
		s.monitor.IncMessagesReceived(packet.Event)
		defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()
	}

	var err error
	switch packet.Event {
	case network.EventCreateRoom:
		err = s.handleCreateRoom(sess, packet.Data)
	case network.EventJoinRoom:
		err = s.handleJoinRoom(sess, packet.Data)
	case network.EventLeaveRoom:
		err = s.handleLeaveRoom(sess, packet.Data)
	case network.EventConfigChange:
		err = s.handleConfigChange(sess, packet.Data)
	case network.EventStartGame:
		err = s.withRoom(packet.Data, func(r *room.Room) error { return r.Start(sess.GetID()) })
	case network.EventStopGame:
		err = s.withRoom(packet.Data, func(r *room.Room) error { return r.Stop(sess.GetID()) })
	case network.EventUpdateCaret:
		err = s.handleUpdateCaret(sess, packet.Data)
	case network.EventPlayerFinished:
		err = s.handlePlayerFinished(sess, packet.Data)
	case network.EventPlayerFinishRound:
		err = s.handlePlayerFinishRound(sess, packet.Data)
	default:
		logger.Log.Infof("Unknown event %q from session %s", packet.Event, sess.GetID())
		s.reject("UNKNOWN_EVENT")
		return
	}

	s.report(sess, packet.Event, err)
}

// report sends GameErrors back to the caller. A missing room is only
// reported for joinRoom; for everything else it is a routine race.
func (s *GameServer) report(sess *session.Session, event string, err error) {
	if err == nil {
		return
	}

	var gameErr *room.GameError
	if !errors.As(err, &gameErr) {
		logger.Log.Warnf("Session %s: %s failed: %v", sess.GetID(), event, err)
		s.reject("MALFORMED")
		return
	}
	s.reject(gameErr.Type)
	if errors.Is(err, room.ErrRoomNotExist) && event != network.EventJoinRoom {
		logger.Log.Debugf("Session %s: %s for a missing room ignored", sess.GetID(), event)
		return
	}
	if sendErr := sess.Send(network.EventError, gameErr); sendErr != nil {
		logger.Log.Warnf("Failed to send error to session %s: %v", sess.GetID(), sendErr)
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}

// withRoom decodes {roomId} and runs fn against that room.
func (s *GameServer) withRoom(data json.RawMessage, fn func(*room.Room) error) error {
	var req roomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	r, ok := s.roomManager.GetRoom(req.RoomID)
	if !ok {
		return room.ErrRoomNotExist
	}
	return fn(r)
}

func (s *GameServer) handleCreateRoom(sess *session.Session, data json.RawMessage) error {
	var req createRoomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	s.roomManager.CreateRoom(sess, req.PlayerName)
	return nil
}

func (s *GameServer) handleJoinRoom(sess *session.Session, data json.RawMessage) error {
	var req joinRoomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	_, err := s.roomManager.JoinRoom(req.RoomID, sess, req.PlayerName)
	return err
}

func (s *GameServer) handleLeaveRoom(sess *session.Session, data json.RawMessage) error {
	var req roomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	s.roomManager.LeaveRoom(req.RoomID, sess)
	return nil
}

func (s *GameServer) handleConfigChange(sess *session.Session, data json.RawMessage) error {
	var req configChangeRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	r, ok := s.roomManager.GetRoom(req.RoomID)
	if !ok {
		return room.ErrRoomNotExist
	}
	return r.ChangeConfig(sess.GetID(), req.Config)
}

func (s *GameServer) handleUpdateCaret(sess *session.Session, data json.RawMessage) error {
	var req updateCaretRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	r, ok := s.roomManager.GetRoom(req.RoomID)
	if !ok {
		return room.ErrRoomNotExist
	}
	return r.UpdateCaret(sess.GetID(), models.Caret{CaretIdx: req.CaretIdx, WordIdx: req.WordIdx})
}

func (s *GameServer) handlePlayerFinished(sess *session.Session, data json.RawMessage) error {
	var req playerFinishedRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	r, ok := s.roomManager.GetRoom(req.RoomID)
	if !ok {
		return room.ErrRoomNotExist
	}
	return r.SubmitTypeRaceResult(sess.GetID(), req.Stats)
}

func (s *GameServer) handlePlayerFinishRound(sess *session.Session, data json.RawMessage) error {
	var req playerFinishRoundRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	r, ok := s.roomManager.GetRoom(req.RoomID)
	if !ok {
		return room.ErrRoomNotExist
	}
	return r.SubmitRoundResult(sess.GetID(), req.Results)
}
