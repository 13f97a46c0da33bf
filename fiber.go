package fiberloop

import "sync/atomic"

// resumeMsg is sent on a Fiber's resumeCh each time it is resumed; it
// carries the ambient execution context the fiber's own goroutine must
// install for the duration of the run, mirroring the source's
// TL_LOOP_ID/TL_FIBER_ID/TL_LOOP_LOG being set immediately before every
// context.resume.
type resumeMsg struct {
	loopID  int
	fiberID int
	log     *Logger
}

// Fiber owns one goroutine-backed "stack" (Go's own growable goroutine
// stack stands in for the source's guarded fixed-size stack), the saved
// point of execution (implicit in the parked goroutine, rather than an
// explicit ExecutionContext value), and a finished flag. It exposes Resume
// and IsFinished, per §4.2.
//
// A Fiber must only ever be resumed from the single loop goroutine that
// owns it; concurrent resumes are a programmer error (see
// *TransferProtocolError).
type Fiber struct {
	resumeCh   chan resumeMsg
	transferCh chan Transfer

	// finished is read/written only by the owning loop's goroutine, via
	// Resume/IsFinished; it is never touched from the fiber's own
	// goroutine.
	finished bool

	// resuming guards against concurrent Resume calls, the one failure
	// mode the source's save_transfer/pop_transfer discipline exists to
	// catch (double-save, i.e. two resumes racing on the same context).
	resuming atomic.Bool
}

// NewFiber constructs a Fiber around task and starts its dedicated
// goroutine, parked immediately on the first resume - the translation of
// the source's Fiber::new, which resumes the freshly built ExecutionContext
// once to hand the boxed task into the trampoline and get back the context
// the constructor stores as the fiber's saved context. Here, "handing in
// the task" and "starting the goroutine" are the same step, so NewFiber
// does not itself block; the first real Resume call is what runs task.
func NewFiber(task func()) *Fiber {
	f := &Fiber{
		resumeCh:   make(chan resumeMsg),
		transferCh: make(chan Transfer),
	}
	cell := newTaskCell(task)
	go f.trampoline(cell)
	return f
}

// trampoline is the fiber's dedicated goroutine body: the translation of
// the source's extern "C" fn context_function. It waits for the first
// resume, runs the boxed task to completion (or until it panics), and then
// - mirroring the source's terminal `loop { resume(1) }` that guards against
// accidental re-entry of finished user code - reports TagReturn forever for
// any further signal it receives.
func (f *Fiber) trampoline(cell *taskCell) {
	msg := <-f.resumeCh
	setCurrent(msg.loopID, msg.fiberID, msg.log, f)

	func() {
		defer func() {
			// A panicking fiber body still "returns" to the loop: resources
			// it owns are released by ordinary Go scope/defer unwinding
			// before we get here.
			recover()
		}()
		if task, ok := cell.take(); ok && task != nil {
			task()
		}
	}()

	clearCurrent()
	for {
		f.transferCh <- Transfer{Tag: TagReturn}
		<-f.resumeCh
	}
}

// yield is invoked from inside the fiber's own goroutine (via the
// package-level coSwitchOut) to cooperatively suspend: report TagYield to
// whichever loop goroutine is blocked in Resume, then park until resumed
// again, re-establishing the ambient execution context for the
// continuation.
func (f *Fiber) yield() {
	clearCurrent()
	f.transferCh <- Transfer{Tag: TagYield}
	msg := <-f.resumeCh
	setCurrent(msg.loopID, msg.fiberID, msg.log, f)
}

// Resume runs the fiber for one turn: it sets the ambient execution context
// the fiber's goroutine will see, wakes it, and blocks until it yields or
// returns - a synchronous handshake standing in for the source's raw
// context.resume(0). Must only be called from the fiber's owning loop
// goroutine.
func (f *Fiber) Resume(loopID, fiberID int, log *Logger) Transfer {
	if !f.resuming.CompareAndSwap(false, true) {
		panic(&TransferProtocolError{Reason: "concurrent resume of the same fiber"})
	}
	defer f.resuming.Store(false)

	f.resumeCh <- resumeMsg{loopID: loopID, fiberID: fiberID, log: log}
	t := <-f.transferCh
	if t.Tag == TagReturn {
		f.finished = true
	}
	return t
}

// IsFinished reports whether the fiber's body has returned.
func (f *Fiber) IsFinished() bool {
	return f.finished
}

// coSwitchOut implements cooperative yield from fiber context: find the
// ambient Fiber and ask it to suspend. Panics with *NotInFiberError if
// called from a goroutine that isn't running as a fiber.
func coSwitchOut() {
	currentFiber("yield").yield()
}
