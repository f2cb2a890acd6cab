// services/match_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/models"
	"github.com/wfunc/typerace/persistence"
)

// GameMetrics is the part of the monitor the service reports to.
type GameMetrics interface {
	IncGamesStarted(mode string)
	IncGamesFinished(mode string)
	IncRoundTransitions()
}

// MatchService observes room lifecycles, counts them and writes finished
// matches to the database. Observer callbacks run under a room lock, so
// saving happens on a background worker fed through a bounded queue.
type MatchService struct {
	db          persistence.Database
	metrics     GameMetrics
	queue       chan models.MatchResult
	saveTimeout time.Duration

	stopped  bool
	stopOnce sync.Once
	mutex    sync.RWMutex
	wg       sync.WaitGroup
}

func NewMatchService(db persistence.Database, metrics GameMetrics, queueSize int) *MatchService {
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &MatchService{
		db:          db,
		metrics:     metrics,
		queue:       make(chan models.MatchResult, queueSize),
		saveTimeout: 5 * time.Second,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *MatchService) GameStarted(roomID string, mode models.Mode) {
	s.metrics.IncGamesStarted(string(mode))
	logger.Log.Debugf("room %s started %s", roomID, mode)
}

func (s *MatchService) RoundAdvanced(roomID string, round int) {
	s.metrics.IncRoundTransitions()
	logger.Log.Debugf("room %s advanced to round %d", roomID, round)
}

func (s *MatchService) GameFinished(result models.MatchResult) {
	s.metrics.IncGamesFinished(string(result.Mode))

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.stopped {
		logger.Log.Warnf("match service stopped, result for room %s not recorded", result.RoomID)
		return
	}
	select {
	case s.queue <- result:
	default:
		logger.Log.Warnf("match queue full, dropping result for room %s", result.RoomID)
	}
}

func (s *MatchService) run() {
	defer s.wg.Done()
	for result := range s.queue {
		s.save(result)
	}
}

func (s *MatchService) save(result models.MatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	if err := s.db.SaveMatch(ctx, result); err != nil {
		logger.Log.Errorf("save match for room %s: %v", result.RoomID, err)
		return
	}
	logger.Log.Infof("recorded %s match for room %s (%d players)",
		result.Mode, result.RoomID, len(result.Participants))
}

// History returns recent matches played in a room.
func (s *MatchService) History(ctx context.Context, roomID string, limit int) ([]models.MatchResult, error) {
	return s.db.RecentMatches(ctx, roomID, limit)
}

func (s *MatchService) TotalMatches(ctx context.Context) (int64, error) {
	return s.db.CountMatches(ctx)
}

// Stop drains queued results and waits for the worker. Results reported
// after Stop are logged and discarded.
func (s *MatchService) Stop() {
	s.stopOnce.Do(func() {
		s.mutex.Lock()
		s.stopped = true
		close(s.queue)
		s.mutex.Unlock()
		s.wg.Wait()
	})
}
