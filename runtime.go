package fiberloop

import (
	"sync"
	"sync/atomic"
)

// defaultPoolSize is the fixed number of worker loops a Runtime starts with
// when WithPoolSize isn't given, the Go analogue of the source's small
// fixed thread pool (one Miofib per kernel worker thread).
const defaultPoolSize = 8

// runtimeOptions holds Runtime construction settings, resolved by applying
// a RuntimeOption slice - the pattern is ported directly from the
// teacher's LoopOption/loopOptions (eventloop/options.go).
type runtimeOptions struct {
	poolSize     int
	slabCapacity int
	log          *Logger
}

// RuntimeOption configures a Runtime at construction time.
type RuntimeOption interface {
	applyRuntime(*runtimeOptions)
}

type runtimeOptionFunc func(*runtimeOptions)

func (f runtimeOptionFunc) applyRuntime(o *runtimeOptions) { f(o) }

// WithPoolSize sets the number of worker loops (kernel-thread-bound event
// loops) the Runtime starts. The default is defaultPoolSize.
func WithPoolSize(n int) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) {
		if n > 0 {
			o.poolSize = n
		}
	})
}

// WithSlabCapacity sets the per-loop fiber slab capacity (§6). The default
// is defaultSlabCapacity.
func WithSlabCapacity(n int) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) {
		if n > 0 {
			o.slabCapacity = n
		}
	})
}

// WithStackLogger sets the root Logger every loop derives its child
// logger from.
func WithStackLogger(log *Logger) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) {
		if log != nil {
			o.log = log
		}
	})
}

func resolveRuntimeOptions(opts []RuntimeOption) *runtimeOptions {
	cfg := &runtimeOptions{
		poolSize:     defaultPoolSize,
		slabCapacity: defaultSlabCapacity,
		log:          NewNoopLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyRuntime(cfg)
	}
	return cfg
}

// Runtime is the process-wide fiber scheduler: a fixed pool of Loops, each
// bound to its own dedicated goroutine (standing in for the source's
// kernel worker thread), spawned into round-robin. It is the Go surface
// for the source's implicit "the pool of Miofib threads" concept, which
// the original never named as a type of its own.
type Runtime struct {
	loops []*Loop
	next  atomic.Uint64

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRuntime constructs and starts a Runtime: every loop gets its own
// goroutine running Loop.Run, locked to its own OS thread.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	cfg := resolveRuntimeOptions(opts)

	r := &Runtime{loops: make([]*Loop, cfg.poolSize)}
	for i := range r.loops {
		loop, err := NewLoop(i, cfg.slabCapacity, cfg.log)
		if err != nil {
			for j := 0; j < i; j++ {
				_ = r.loops[j].Close()
			}
			return nil, err
		}
		r.loops[i] = loop
	}

	r.wg.Add(len(r.loops))
	for _, loop := range r.loops {
		loop := loop
		go func() {
			defer r.wg.Done()
			loop.Run()
		}()
	}

	return r, nil
}

// Spawn places task on one of the Runtime's loops, chosen round-robin, to
// run as a new Fiber - the translation of the source's LoopTx::spawn,
// generalized from "spawn on my own loop" to "spawn on the pool."
func (r *Runtime) Spawn(task func()) error {
	idx := r.next.Add(1) % uint64(len(r.loops))
	return r.loops[idx].Mailbox().Push(task)
}

// SpawnOn places task specifically on loop loopID instead of the
// round-robin choice. It returns ErrLoopClosed if loopID names no loop of
// this Runtime.
func (r *Runtime) SpawnOn(loopID int, task func()) error {
	if loopID < 0 || loopID >= len(r.loops) {
		return ErrLoopClosed
	}
	return r.loops[loopID].Mailbox().Push(task)
}

// PollerFor returns the Poller owned by loop loopID, so an AsyncIO adapter
// can deregister a handle from its previous loop during migration.
func (r *Runtime) PollerFor(loopID int) Poller {
	if loopID < 0 || loopID >= len(r.loops) {
		return nil
	}
	return r.loops[loopID].Poller()
}

// NumLoops returns the number of worker loops in the pool.
func (r *Runtime) NumLoops() int { return len(r.loops) }

// Close signals every loop to shut down after its current Poll wakes, and
// waits for all loop goroutines to exit.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		for _, loop := range r.loops {
			_ = loop.Close()
		}
		r.wg.Wait()
	})
	return nil
}
