package models

import (
	"time"

	"gorm.io/gorm"
)

// MatchParticipant is a player as recorded in match history.
type MatchParticipant struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Position   int    `json:"position"`
}

// MatchResult describes a finished game. Exactly one of TypeRace and WaveRush
// is set, depending on Mode.
type MatchResult struct {
	RoomID       string                `json:"roomId"`
	Mode         Mode                  `json:"mode"`
	StartedAt    time.Time             `json:"startedAt"`
	FinishedAt   time.Time             `json:"finishedAt"`
	Participants []MatchParticipant    `json:"participants"`
	TypeRace     []TypeRaceResultEntry `json:"typeRace,omitempty"`
	WaveRush     *WaveRushResult       `json:"waveRush,omitempty"`
}

// GormMatchRecord 对局记录
type GormMatchRecord struct {
	gorm.Model
	RoomID       string             `gorm:"index;not null"`
	Mode         string             `gorm:"not null"`
	StartedAt    time.Time          `gorm:"not null"`
	FinishedAt   time.Time          `gorm:"index;not null"`
	DurationMs   int64              `gorm:"default:0"`
	Participants []MatchParticipant `gorm:"serializer:json;type:jsonb;not null"`
	Result       MatchResult        `gorm:"serializer:json;type:jsonb;not null"`
}

func (GormMatchRecord) TableName() string {
	return "match_records"
}

// NewGormMatchRecord flattens a MatchResult into a row.
func NewGormMatchRecord(m MatchResult) GormMatchRecord {
	return GormMatchRecord{
		RoomID:       m.RoomID,
		Mode:         string(m.Mode),
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
		DurationMs:   m.FinishedAt.Sub(m.StartedAt).Milliseconds(),
		Participants: m.Participants,
		Result:       m,
	}
}
