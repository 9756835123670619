package dispatch

import (
	"sync"
	"time"
)

// TimerRegistry schedules the low-latency in-process reap timer. It is only
// a fast path: the shared-store timeout flag is the ground truth at fire
// time, so a lost timer (process restart) at worst delays the reap until
// another instance runs it.
type TimerRegistry interface {
	Schedule(tripID string, d time.Duration, fn func())
	Cancel(tripID string)
}

// LocalTimers is the in-process TimerRegistry.
type LocalTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewLocalTimers() *LocalTimers {
	return &LocalTimers{timers: make(map[string]*time.Timer)}
}

func (l *LocalTimers) Schedule(tripID string, d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[tripID]; ok {
		t.Stop()
	}
	l.timers[tripID] = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, tripID)
		l.mu.Unlock()
		fn()
	})
}

func (l *LocalTimers) Cancel(tripID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[tripID]; ok {
		t.Stop()
		delete(l.timers, tripID)
	}
}
