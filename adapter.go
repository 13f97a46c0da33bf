package fiberloop

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// Handle is anything an AsyncIO adapter can multiplex: a non-blocking file
// descriptor capable of read and write, the Go stand-in for the source's
// `T: mio::Evented + io::Read + io::Write` bound. Callers are expected to
// put the underlying fd in non-blocking mode themselves before wrapping it
// (mirroring mio's own expectation of its Evented sources).
type Handle interface {
	Fd() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// registration is the (loop, fiber, interests) triple an AsyncIO handle is
// currently registered under, the Go translation of the source's
// `registered_on: RefCell<Option<(usize, usize, mio::Ready)>>`.
type registration struct {
	loopID    int
	fiberID   int
	interests Interests
}

// AsyncIO wraps a Handle so it can be driven from fiber code: NotifyOn
// registers (or migrates) the handle's poller registration against the
// currently running fiber, and Read/Write/Flush retry-on-would-block by
// cooperatively yielding until the adapter's BlockOn-registered interest
// fires. This is §4.6's handle-migration state machine, ported from the
// source's AsyncIO<T>/Evented impl (original_source/src/lib.rs).
type AsyncIO[T Handle] struct {
	io T

	rt *Runtime

	mu  sync.Mutex
	reg *registration
}

// NewAsyncIO wraps handle for use from fibers running on rt.
func NewAsyncIO[T Handle](rt *Runtime, handle T) *AsyncIO[T] {
	return &AsyncIO[T]{io: handle, rt: rt}
}

// Unwrap returns the underlying handle, e.g. to Close it once no fiber
// holds a reference.
func (a *AsyncIO[T]) Unwrap() T { return a.io }

// NotifyOn ensures the handle is registered against the poller belonging
// to the currently running fiber's loop, for the given interests,
// migrating (deregister old loop, register new loop) or reregistering
// (same loop, different fiber/interests) as needed. Panics with
// *NotInFiberError if called outside of a running fiber, per §9's Open
// Question resolution.
func (a *AsyncIO[T]) NotifyOn(interests Interests) {
	loopID, fiberID, log := currentLoopAndFiber("NotifyOn")
	fd := a.io.Fd()

	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.reg
	poller := a.rt.PollerFor(loopID)

	switch {
	case prev == nil:
		log.Tracef("register", Field("fiber-id", fiberID), Field("interests", int(interests)))
		mustRegister(poller.Register(fd, fiberID, interests))

	case prev.loopID == loopID:
		if prev.fiberID != fiberID || prev.interests != interests {
			log.Tracef("reregister", Field("fiber-id", fiberID), Field("interests", int(interests)))
			mustRegister(poller.Reregister(fd, fiberID, interests))
		}

	default:
		log.Tracef("migrate", Field("fiber-id", fiberID), Field("old-loop", prev.loopID), Field("old-fiber-id", prev.fiberID))
		oldPoller := a.rt.PollerFor(prev.loopID)
		mustRegister(oldPoller.Deregister(fd))
		mustRegister(poller.Register(fd, fiberID, interests))
	}

	a.reg = &registration{loopID: loopID, fiberID: fiberID, interests: interests}
}

// mustRegister panics with the given *PollError rather than returning it:
// the source treats register/reregister/deregister failures as
// unrecoverable (it `.unwrap()`s every one).
func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// BlockOn registers interests and cooperatively yields until the owning
// loop resumes this fiber in response to that readiness.
func (a *AsyncIO[T]) BlockOn(interests Interests) {
	a.NotifyOn(interests)
	coSwitchOut()
}

// Read blocks (by cooperative yield, never the OS thread) until the
// handle has data, retrying on EAGAIN/EWOULDBLOCK exactly like the
// source's AsyncIO<MT>::read.
func (a *AsyncIO[T]) Read(buf []byte) (int, error) {
	for {
		n, err := a.io.Read(buf)
		if isWouldBlock(err) {
			a.BlockOn(InterestRead)
			continue
		}
		return n, err
	}
}

// Write blocks (by cooperative yield) until the handle accepts data,
// retrying on EAGAIN/EWOULDBLOCK exactly like the source's
// AsyncIO<MT>::write.
func (a *AsyncIO[T]) Write(buf []byte) (int, error) {
	for {
		n, err := a.io.Write(buf)
		if isWouldBlock(err) {
			a.BlockOn(InterestWrite)
			continue
		}
		return n, err
	}
}

// Flush blocks until the underlying handle's Flush (if it has one)
// succeeds, retrying on EAGAIN/EWOULDBLOCK like the source's
// AsyncIO<MT>::flush. Handles with no Flush method are a no-op.
func (a *AsyncIO[T]) Flush() error {
	f, ok := any(a.io).(interface{ Flush() error })
	if !ok {
		return nil
	}
	for {
		err := f.Flush()
		if isWouldBlock(err) {
			a.BlockOn(InterestWrite)
			continue
		}
		return err
	}
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
