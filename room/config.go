package room

import (
	"encoding/json"

	"github.com/wfunc/typerace/models"
)

// ValidateConfig checks that cfg is a well-formed member of the config union.
func ValidateConfig(cfg models.GameConfig) error {
	switch cfg.Mode {
	case models.ModeTypeRace:
		var words []string
		if err := json.Unmarshal(cfg.Words, &words); err != nil || len(words) == 0 {
			return invalidConfig("type-race needs a non-empty word list")
		}
	case models.ModeWaveRush:
		var words [][]string
		if err := json.Unmarshal(cfg.Words, &words); err != nil || len(words) == 0 {
			return invalidConfig("wave-rush needs one word list per round")
		}
		if cfg.Waves < 1 {
			return invalidConfig("wave-rush needs at least one wave")
		}
		if len(words) < cfg.Waves {
			return invalidConfig("wave-rush needs a word list for every wave")
		}
		if cfg.Duration <= 0 {
			return invalidConfig("wave-rush round duration must be positive")
		}
		if cfg.TimeBetweenRounds < 0 {
			return invalidConfig("time between rounds cannot be negative")
		}
	default:
		return invalidConfig("unknown mode " + string(cfg.Mode))
	}
	return nil
}
