package fiberloop

import (
	"sync"
	"testing"
	"time"
)

func TestRuntime_RoundRobinSpawnDistributesEvenly(t *testing.T) {
	const poolSize = 4
	const perLoop = 10

	rt, err := NewRuntime(WithPoolSize(poolSize))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	if rt.NumLoops() != poolSize {
		t.Fatalf("NumLoops() = %d; want %d", rt.NumLoops(), poolSize)
	}

	counts := make([]int, poolSize)
	var mu sync.Mutex
	var wg sync.WaitGroup

	total := poolSize * perLoop
	wg.Add(total)
	for i := 0; i < total; i++ {
		if err := rt.Spawn(func() {
			defer wg.Done()
			loopID, _, _ := currentLoopAndFiber("test")
			mu.Lock()
			counts[loopID]++
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not all spawned fibers ran")
	}

	for i, c := range counts {
		if c != perLoop {
			t.Fatalf("loop %d ran %d fibers; want %d (counts=%v)", i, c, perLoop, counts)
		}
	}
}

func TestRuntime_SpawnOnSpecificLoop(t *testing.T) {
	rt, err := NewRuntime(WithPoolSize(2))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	seen := make(chan int, 1)
	if err := rt.SpawnOn(1, func() {
		loopID, _, _ := currentLoopAndFiber("test")
		seen <- loopID
	}); err != nil {
		t.Fatalf("SpawnOn: %v", err)
	}

	select {
	case loopID := <-seen:
		if loopID != 1 {
			t.Fatalf("fiber ran on loop %d; want 1", loopID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fiber spawned via SpawnOn never ran")
	}
}

func TestRuntime_SpawnOnOutOfRangeFails(t *testing.T) {
	rt, err := NewRuntime(WithPoolSize(2))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	if err := rt.SpawnOn(5, func() {}); err != ErrLoopClosed {
		t.Fatalf("SpawnOn(5, ...) = %v; want ErrLoopClosed", err)
	}
}

func TestRuntime_CloseIsIdempotent(t *testing.T) {
	rt, err := NewRuntime(WithPoolSize(1))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
