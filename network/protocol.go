package network

import "encoding/json"

// Inbound events
const (
	EventCreateRoom        = "createRoom"
	EventJoinRoom          = "joinRoom"
	EventLeaveRoom         = "leaveRoom"
	EventConfigChange      = "configChange"
	EventStartGame         = "startGame"
	EventStopGame          = "stopGame"
	EventUpdateCaret       = "updateCaret"
	EventPlayerFinished    = "playerFinished"
	EventPlayerFinishRound = "playerFinishRound"
)

// Outbound events
const (
	EventRoomCreated           = "roomCreated"
	EventRoomJoined            = "roomJoined"
	EventError                 = "errorEvent"
	EventConfigChanged         = "configChanged"
	EventGameStarted           = "gameStarted"
	EventGameStopped           = "gameStopped"
	EventPlayersUpdated        = "playersUpdated"
	EventCaretUpdated          = "caretUpdated"
	EventTypeRaceResultUpdated = "typeRaceResultUpdated"
	EventWaveRushStateUpdated  = "waveRushStateUpdated"
	EventStartTransition       = "startTransition"
	EventNextRoundStarted      = "nextRoundStarted"
	EventGameFinished          = "gameFinished"
	EventHostChanged           = "hostChanged"
)

// Packet is the envelope for every message in either direction.
type Packet struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in a Packet and marshals it.
func Encode(event string, payload interface{}) ([]byte, error) {
	p := Packet{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		p.Data = data
	}
	return json.Marshal(p)
}

// Decode parses a raw frame into a Packet.
func Decode(frame []byte) (*Packet, error) {
	var p Packet
	if err := json.Unmarshal(frame, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
