package monitor

import (
	"github.com/robfig/cron/v3"

	"github.com/wfunc/typerace/logger"
)

// Counter is anything that can report how many items it holds.
type Counter interface {
	Count() int
}

// Sampler periodically copies room and session counts into the gauges, so
// they stay exact even if an Inc/Dec pair is ever missed.
type Sampler struct {
	monitor  *Monitor
	rooms    Counter
	sessions Counter
	cron     *cron.Cron
}

func NewSampler(m *Monitor, rooms, sessions Counter) *Sampler {
	return &Sampler{
		monitor:  m,
		rooms:    rooms,
		sessions: sessions,
		cron:     cron.New(),
	}
}

// Start schedules sampling with a cron spec such as "@every 15s".
func (s *Sampler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.SampleNow); err != nil {
		return err
	}
	s.cron.Start()
	logger.Log.Infof("Metrics sampler running %q", spec)
	return nil
}

func (s *Sampler) SampleNow() {
	s.monitor.SetActiveRooms(s.rooms.Count())
	s.monitor.SetOnlinePlayers(s.sessions.Count())
}

// Stop halts the schedule and waits for a running sample to finish.
func (s *Sampler) Stop() {
	<-s.cron.Stop().Done()
}
