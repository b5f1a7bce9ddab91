package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestLimiterZeroIntervalNeverBlocks(t *testing.T) {
	l := New(0)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("1000 permits took %v, zero interval should not block", elapsed)
	}
}

func TestLimiterNegativeIntervalTreatedAsZero(t *testing.T) {
	l := New(-time.Second)
	if got := l.Interval(); got != 0 {
		t.Fatalf("interval = %v, want 0", got)
	}
}

func TestLimiterSpacing(t *testing.T) {
	const interval = 30 * time.Millisecond
	l := New(interval)

	start := time.Now()
	const permits = 4
	for i := 0; i < permits; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}

	// First permit is immediate, each later one waits a full interval.
	if elapsed := time.Since(start); elapsed < (permits-1)*interval {
		t.Fatalf("%d permits took %v, want at least %v", permits, elapsed, (permits-1)*interval)
	}
}

func TestLimiterConcurrentCallersSpaced(t *testing.T) {
	const interval = 25 * time.Millisecond
	l := New(interval)

	var mu sync.Mutex
	var grants []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			now := time.Now()
			mu.Lock()
			grants = append(grants, now)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })
	const tolerance = 5 * time.Millisecond
	for i := 1; i < len(grants); i++ {
		if gap := grants[i].Sub(grants[i-1]); gap < interval-tolerance {
			t.Fatalf("grants %d and %d only %v apart, want at least %v", i-1, i, gap, interval)
		}
	}
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	l := New(time.Hour)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := l.Wait(ctx)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled wait took %v", elapsed)
	}
}
