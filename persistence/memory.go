package persistence

import (
	"context"
	"sync"

	"github.com/wfunc/typerace/models"
)

// Memory keeps match history in process. Used when no database is configured.
type Memory struct {
	matches []models.MatchResult
	mutex   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveMatch(ctx context.Context, match models.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.matches = append(m.matches, match)
	return nil
}

func (m *Memory) RecentMatches(ctx context.Context, roomID string, limit int) ([]models.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []models.MatchResult
	for i := len(m.matches) - 1; i >= 0; i-- {
		if m.matches[i].RoomID != roomID {
			continue
		}
		out = append(out, m.matches[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrRecordNotFound
	}
	return out, nil
}

func (m *Memory) CountMatches(ctx context.Context) (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return int64(len(m.matches)), nil
}

func (m *Memory) Close() error {
	return nil
}
