package dispatch

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalTimersFire(t *testing.T) {
	reg := NewLocalTimers()
	var fired atomic.Int32
	reg.Schedule("t1", 10*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("fired = %d", fired.Load())
	}
}

func TestLocalTimersCancel(t *testing.T) {
	reg := NewLocalTimers()
	var fired atomic.Int32
	reg.Schedule("t1", 20*time.Millisecond, func() { fired.Add(1) })
	reg.Cancel("t1")

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("canceled timer fired %d times", fired.Load())
	}
}

func TestLocalTimersRescheduleReplaces(t *testing.T) {
	reg := NewLocalTimers()
	var first, second atomic.Int32
	reg.Schedule("t1", 10*time.Millisecond, func() { first.Add(1) })
	reg.Schedule("t1", 20*time.Millisecond, func() { second.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if first.Load() != 0 || second.Load() != 1 {
		t.Fatalf("first=%d second=%d", first.Load(), second.Load())
	}
}
