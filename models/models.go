// Package models holds the room, player and result types shared by the room
// logic, the gateway and persistence. JSON tags are the wire names.
package models

import "encoding/json"

// Mode selects the game played in a room.
type Mode string

const (
	ModeTypeRace Mode = "type-race"
	ModeWaveRush Mode = "wave-rush"
)

type Caret struct {
	CaretIdx int `json:"caretIdx"`
	WordIdx  int `json:"wordIdx"`
}

// ResetCaret is the caret every player starts a game with.
var ResetCaret = Caret{CaretIdx: -1, WordIdx: 0}

type Progress struct {
	Caret Caret `json:"caret"`
}

type Player struct {
	ID             string   `json:"id"`
	PlayerName     string   `json:"playerName"`
	Progress       Progress `json:"progress"`
	IsHost         bool     `json:"isHost"`
	IsDisconnected bool     `json:"isDisconnected"`
}

// GameConfig is a tagged union over Mode. Words is a flat list for type-race
// and one list per round for wave-rush; the remaining fields only apply to
// wave-rush.
type GameConfig struct {
	Mode              Mode            `json:"mode"`
	Words             json.RawMessage `json:"words"`
	Duration          int             `json:"duration,omitempty"`
	Waves             int             `json:"waves,omitempty"`
	TimeBetweenRounds int             `json:"timeBetweenRounds,omitempty"`
}

// NewTypeRaceConfig builds a type-race config over words.
func NewTypeRaceConfig(words []string) GameConfig {
	raw, _ := json.Marshal(words)
	return GameConfig{Mode: ModeTypeRace, Words: raw}
}

// NewWaveRushConfig builds a wave-rush config with one word list per round.
func NewWaveRushConfig(words [][]string, duration, waves, timeBetweenRounds int) GameConfig {
	raw, _ := json.Marshal(words)
	return GameConfig{
		Mode:              ModeWaveRush,
		Words:             raw,
		Duration:          duration,
		Waves:             waves,
		TimeBetweenRounds: timeBetweenRounds,
	}
}

type PlayerStats struct {
	Accuracy    float64 `json:"accuracy"`
	Wpm         float64 `json:"wpm"`
	RawWpm      float64 `json:"rawWpm"`
	Correct     int     `json:"correct"`
	Incorrect   int     `json:"incorrect"`
	Overflow    int     `json:"overflow"`
	Missed      int     `json:"missed"`
	TimeElapsed float64 `json:"timeElapsed"`
}

type TypeRaceResultEntry struct {
	PlayerID string      `json:"playerId"`
	Stats    PlayerStats `json:"stats"`
}

// RoundResult is one player's stats for one wave-rush round. PlayerID is
// always set by the server from the submitting connection.
type RoundResult struct {
	PlayerStats
	PlayerID string `json:"playerId"`
}

type WaveRushResult struct {
	ByPlayer     map[string][]RoundResult `json:"byPlayer"`
	ByRound      map[int][]RoundResult    `json:"byRound"`
	CurrentRound int                      `json:"currentRound"`
}

// NewWaveRushResult returns an empty aggregator positioned at round 0.
func NewWaveRushResult() WaveRushResult {
	return WaveRushResult{
		ByPlayer: make(map[string][]RoundResult),
		ByRound:  make(map[int][]RoundResult),
	}
}

// Clone deep-copies the aggregator so it can leave the room's lock.
func (w WaveRushResult) Clone() WaveRushResult {
	out := WaveRushResult{
		ByPlayer:     make(map[string][]RoundResult, len(w.ByPlayer)),
		ByRound:      make(map[int][]RoundResult, len(w.ByRound)),
		CurrentRound: w.CurrentRound,
	}
	for k, v := range w.ByPlayer {
		out.ByPlayer[k] = append([]RoundResult(nil), v...)
	}
	for k, v := range w.ByRound {
		out.ByRound[k] = append([]RoundResult(nil), v...)
	}
	return out
}

// RoomSnapshot is the full room view sent on create and join.
type RoomSnapshot struct {
	RoomID             string                `json:"roomId"`
	Players            []Player              `json:"players"`
	Config             GameConfig            `json:"config"`
	TypeRaceGameResult []TypeRaceResultEntry `json:"typeRaceGameResult"`
	WaveRushGameResult WaveRushResult        `json:"waveRushGameResult"`
	GameStartTime      *int64                `json:"gameStartTime"`
}
