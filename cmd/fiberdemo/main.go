// Command fiberdemo is a minimal smoke test for the fiberloop runtime: it
// spawns ten fibers printing their index, waits, then spawns one more -
// the Go translation of the source's `it_works` test
// (original_source/src/lib.rs).
//
// Run with: go run ./cmd/fiberdemo
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/fiberloop"
)

func main() {
	var wg sync.WaitGroup
	wg.Add(10)

	if err := fiberloop.Spawn(func() {
		for i := 0; i < 10; i++ {
			i := i
			if err := fiberloop.Spawn(func() {
				defer wg.Done()
				fmt.Fprintln(os.Stderr, i)
			}); err != nil {
				fmt.Fprintln(os.Stderr, "spawn failed:", err)
				wg.Done()
			}
		}
	}); err != nil {
		panic(err)
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)

	var wg2 sync.WaitGroup
	wg2.Add(1)
	if err := fiberloop.Spawn(func() {
		defer wg2.Done()
		fmt.Fprintln(os.Stderr, "It works2")
	}); err != nil {
		panic(err)
	}
	wg2.Wait()
}
