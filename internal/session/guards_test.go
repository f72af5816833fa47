package session

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestLatchTripsExactlyOnce(t *testing.T) {
	var l Latch
	var tripped atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Trip() {
				tripped.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := tripped.Load(); got != 1 {
		t.Errorf("expected exactly one winner across re-entrant triggers, got %d", got)
	}
	if !l.Tripped() {
		t.Error("latch should report tripped")
	}

	l.Reset()
	if l.Tripped() {
		t.Error("reset latch should not report tripped")
	}
	if !l.Trip() {
		t.Error("latch should trip again after reset")
	}
}

func TestSessionLockAcquireRelease(t *testing.T) {
	var l SessionLock

	if !l.Acquire() {
		t.Fatal("first acquire should succeed")
	}
	if l.Acquire() {
		t.Error("second acquire while held should fail")
	}
	if !l.Held() {
		t.Error("lock should report held")
	}

	l.Release()
	if l.Held() {
		t.Error("released lock should not report held")
	}
	if !l.Acquire() {
		t.Error("acquire after release should succeed")
	}

	// Release when not held is safe.
	l.Release()
	l.Release()
}
