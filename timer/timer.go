// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// Scheduler runs one-shot callbacks after a delay. Callbacks run on their own
// goroutine and must do their own locking.
type Scheduler interface {
	AddTimer(delay time.Duration, callback func()) int64
	RemoveTimer(timerId int64) bool
}

// TimerManager is a Scheduler backed by a min-heap and a single wake-up timer.
type TimerManager struct {
	queue  TimerQueue
	byId   map[int64]*TimerTask
	mutex  sync.Mutex
	nextId int64
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewTimerManager() *TimerManager {
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		byId:   make(map[int64]*TimerTask),
		nextId: 1,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

func (m *TimerManager) AddTimer(delay time.Duration, callback func()) int64 {
	m.mutex.Lock()
	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Callback: callback,
	}
	m.nextId++
	heap.Push(&m.queue, task)
	m.byId[task.Id] = task
	m.mutex.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return task.Id
}

// RemoveTimer cancels a pending timer. It reports false if the timer already
// fired or never existed.
func (m *TimerManager) RemoveTimer(timerId int64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task, ok := m.byId[timerId]
	if !ok {
		return false
	}
	heap.Remove(&m.queue, task.index)
	delete(m.byId, timerId)
	return true
}

// Pending returns the number of armed timers.
func (m *TimerManager) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop halts the manager. Pending timers never fire.
func (m *TimerManager) Stop() {
	m.once.Do(func() { close(m.done) })
}

// popDue removes every task due at now and returns the delay until the next one.
func (m *TimerManager) popDue(now time.Time) ([]*TimerTask, time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var due []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			return due, task.Execute.Sub(now)
		}
		heap.Pop(&m.queue)
		delete(m.byId, task.Id)
		due = append(due, task)
	}
	return due, time.Hour
}

func (m *TimerManager) process() {
	t := time.NewTimer(time.Hour)
	defer t.Stop()

	for {
		due, next := m.popDue(time.Now())
		for _, task := range due {
			go task.Callback()
		}
		t.Reset(next)

		select {
		case <-m.done:
			return
		case <-m.wake:
		case <-t.C:
		}
	}
}
