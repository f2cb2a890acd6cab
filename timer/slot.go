package timer

import "time"

// Slot holds at most one armed timer for its owner. Arming cancels whatever
// was armed before. A Slot is not safe for concurrent use; the owner
// serializes calls (a room calls it under its own lock).
type Slot struct {
	sched Scheduler
	id    int64
	gen   uint64
}

func NewSlot(sched Scheduler) *Slot {
	return &Slot{sched: sched}
}

// Arm schedules fn after delay, replacing any armed timer. fn receives the
// generation it was armed with and should pass it to Claim once it holds the
// owner's lock.
func (s *Slot) Arm(delay time.Duration, fn func(gen uint64)) {
	s.Cancel()
	s.gen++
	gen := s.gen
	s.id = s.sched.AddTimer(delay, func() { fn(gen) })
}

// Claim reports whether gen is still the armed generation and, if so,
// disarms the slot. A cancelled or superseded callback gets false.
func (s *Slot) Claim(gen uint64) bool {
	if s.id == 0 || gen != s.gen {
		return false
	}
	s.id = 0
	return true
}

// Cancel disarms the slot. Safe to call when nothing is armed.
func (s *Slot) Cancel() {
	if s.id == 0 {
		return
	}
	s.sched.RemoveTimer(s.id)
	s.id = 0
}

func (s *Slot) Armed() bool {
	return s.id != 0
}
