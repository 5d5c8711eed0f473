package timectrl

import (
	"sync"
	"testing"
	"time"
)

func TestAcceleratedRunDeliversEveryTick(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, Accelerated)

	var mu sync.Mutex
	var times []time.Time
	var dts []float64
	tc.AddListener(func(simTime time.Time, dt float64) {
		mu.Lock()
		times = append(times, simTime)
		dts = append(dts, dt)
		mu.Unlock()
	})

	select {
	case <-tc.Start(5 * time.Second):
	case <-time.After(5 * time.Second):
		t.Fatalf("accelerated run did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(times) != 5 {
		t.Fatalf("listener fired %d times, want 5", len(times))
	}
	for i, dt := range dts {
		if dt != 1 {
			t.Fatalf("tick %d dt = %v, want 1", i, dt)
		}
	}
	if want := start.Add(5 * time.Second); !times[4].Equal(want) {
		t.Fatalf("final sim time = %v, want %v", times[4], want)
	}
	if !tc.Now().Equal(start.Add(5 * time.Second)) {
		t.Fatalf("Now() = %v after run", tc.Now())
	}
}

func TestNowBeforeStart(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)
	if !tc.Now().Equal(start) {
		t.Fatalf("Now() = %v before start, want %v", tc.Now(), start)
	}
}

func TestRealTimePacing(t *testing.T) {
	if testing.Short() {
		t.Skip("wall-clock pacing test")
	}
	start := time.Now().UTC()
	tc := NewTimeController(start, 10*time.Millisecond, RealTime)

	var mu sync.Mutex
	ticks := 0
	tc.AddListener(func(time.Time, float64) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	began := time.Now()
	select {
	case <-tc.Start(50 * time.Millisecond):
	case <-time.After(2 * time.Second):
		t.Fatalf("real-time run did not finish")
	}
	wall := time.Since(began)

	mu.Lock()
	defer mu.Unlock()
	if ticks != 5 {
		t.Fatalf("listener fired %d times, want 5", ticks)
	}
	// Five 10ms ticks should take at least the simulated span of wall
	// time; allow generous slack on loaded machines.
	if wall < 40*time.Millisecond {
		t.Fatalf("run finished in %v, faster than real time", wall)
	}
}
