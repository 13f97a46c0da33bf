package fiberloop

import (
	"sync"

	"github.com/petermattis/goid"
)

// execContext is the ambient "who is running right now?" record, the Go
// analogue of the source's thread-local current-loop-id/current-fiber-id/
// current-loop-logger cells. Since a Fiber here is a dedicated goroutine
// rather than a thread the loop itself switches onto, the equivalent
// storage is keyed by goroutine id (via github.com/petermattis/goid) instead
// of being a literal thread-local. It additionally carries the owning
// *Fiber, so that package-level helpers like YieldNow can find their way
// back to the channel pair that implements the coroutine transfer.
type execContext struct {
	loopID  int
	fiberID int
	log     *Logger
	fiber   *Fiber
}

var currentExec sync.Map // map[int64]execContext

// setCurrent records the ambient execution context for the calling
// goroutine. Called only from inside a fiber's own goroutine, immediately
// after it wakes up from a resume.
func setCurrent(loopID, fiberID int, log *Logger, fiber *Fiber) {
	currentExec.Store(goid.Get(), execContext{loopID: loopID, fiberID: fiberID, log: log, fiber: fiber})
}

// clearCurrent removes the ambient execution context for the calling
// goroutine, called immediately before a fiber parks itself again (or
// terminates).
func clearCurrent() {
	currentExec.Delete(goid.Get())
}

// getCurrent returns the ambient execution context for the calling
// goroutine, and whether one is set.
func getCurrent() (execContext, bool) {
	v, ok := currentExec.Load(goid.Get())
	if !ok {
		return execContext{}, false
	}
	return v.(execContext), true
}

// currentLoopAndFiber returns the current loop/fiber ids and logger,
// panicking with a *NotInFiberError if the calling goroutine isn't running
// as a fiber. Per §9's resolution of the source's TODO ("handle out-of-loop
// condition"), calling ambient-context-dependent operations outside of any
// fiber is a programmer error.
func currentLoopAndFiber(op string) (loopID, fiberID int, log *Logger) {
	ec, ok := getCurrent()
	if !ok {
		panic(&NotInFiberError{Op: op})
	}
	return ec.loopID, ec.fiberID, ec.log
}

// currentFiber returns the Fiber owning the calling goroutine, panicking
// with a *NotInFiberError if there isn't one.
func currentFiber(op string) *Fiber {
	ec, ok := getCurrent()
	if !ok {
		panic(&NotInFiberError{Op: op})
	}
	return ec.fiber
}
