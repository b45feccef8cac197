package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestWait_FirstCallImmediate(t *testing.T) {
	l := New(100 * time.Millisecond)

	start := time.Now()
	l.Wait()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("first Wait blocked for %v", elapsed)
	}
}

func TestWait_EnforcesMinDelay(t *testing.T) {
	l := New(80 * time.Millisecond)

	l.Wait()
	start := time.Now()
	l.Wait()
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Fatalf("second Wait returned after %v, want >= ~80ms", elapsed)
	}
}

func TestWait_ConcurrentCallersSerialized(t *testing.T) {
	l := New(30 * time.Millisecond)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Wait()
		}()
	}
	wg.Wait()

	// 4 callers, 3 enforced gaps.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("4 concurrent Waits finished in %v, want >= ~90ms", elapsed)
	}
}

func TestNew_DefaultDelay(t *testing.T) {
	l := New(0)
	if l.minDelay != DefaultMinDelay {
		t.Fatalf("default delay = %v, want %v", l.minDelay, DefaultMinDelay)
	}
}
