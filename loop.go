package fiberloop

import (
	"runtime"
	"sync"
)

// maxPollEvents bounds each Poll call's event batch, mirroring the
// teacher's preallocated eventBuf (eventloop/poller_linux.go).
const maxPollEvents = 256

// Loop is one kernel-worker's event loop, owning exactly one Poller, one
// Mailbox, and a Slab of the Fibers it has spawned - the Go translation of
// §4.4's worker thread: "the poller, the mailbox receiver, and the slab of
// fibers it owns" all live here, and Run implements the three-step main
// algorithm (poll, drain mailbox, dispatch readiness) directly.
type Loop struct {
	id int

	log     *Logger
	poller  Poller
	mailbox *Mailbox
	fibers  *Slab[*Fiber]

	wakeReadFD  int
	wakeWriteFD int

	mu     sync.Mutex
	closed bool

	eventBuf []Event
}

// NewLoop constructs Loop id with its own platform poller, mailbox, and
// fiber slab. slabCapacity <= 0 uses defaultSlabCapacity.
func NewLoop(id int, slabCapacity int, log *Logger) (*Loop, error) {
	if log == nil {
		log = NewNoopLogger()
	}
	log = log.With("loop-id", id)

	poller, err := newPoller()
	if err != nil {
		return nil, err
	}

	readFD, writeFD, err := newWakeupFD()
	if err != nil {
		_ = poller.Close()
		return nil, err
	}
	if err := poller.Register(readFD, mailboxToken, InterestRead); err != nil {
		closeWakeupFD(readFD, writeFD)
		_ = poller.Close()
		return nil, err
	}

	return &Loop{
		id:          id,
		log:         log,
		poller:      poller,
		mailbox:     NewMailbox(writeFD),
		fibers:      NewSlab[*Fiber](slabCapacity),
		wakeReadFD:  readFD,
		wakeWriteFD: writeFD,
		eventBuf:    make([]Event, maxPollEvents),
	}, nil
}

// Mailbox exposes the loop's spawn inbox for Runtime.Spawn's round-robin
// dispatch.
func (l *Loop) Mailbox() *Mailbox { return l.mailbox }

// Poller exposes the loop's readiness poller, so AsyncIO can register and
// reregister handles against it directly (§4.6), and deregister a handle
// from its old loop during migration (via Runtime.PollerFor).
func (l *Loop) Poller() Poller { return l.poller }

// ID returns the loop's identity, used as the ambient loopID fibers see.
func (l *Loop) ID() int { return l.id }

// spawnFiber inserts task as a new Fiber into the slab and returns its id.
// Must only be called from the loop's own goroutine.
func (l *Loop) spawnFiber(task func()) int {
	fiber := NewFiber(task)
	return l.fibers.Insert(fiber)
}

// Run executes the loop's body until Close is called: it repeatedly polls
// for readiness, drains and spawns whatever arrived on the mailbox, and
// resumes every fiber whose registered interest just became ready,
// reaping any that finish. Run must be called from a goroutine dedicated
// to this loop; it locks that goroutine to its OS thread itself
// (runtime.LockOSThread, the Go stand-in for the source's "each loop owns
// one kernel worker thread"). A Poll failure is logged and ends Run.
func (l *Loop) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		_ = l.poller.Close()
		closeWakeupFD(l.wakeReadFD, l.wakeWriteFD)
	}()

	for {
		if l.isClosed() {
			return
		}

		n, err := l.poller.Poll(l.eventBuf, -1)
		if err != nil {
			l.log.Errorf(err, "poll failed")
			return
		}

		for i := 0; i < n; i++ {
			ev := l.eventBuf[i]
			if ev.Token == mailboxToken {
				drainWakeupFD(l.wakeReadFD)
				l.drainMailbox()
				continue
			}
			l.resumeFiber(ev.Token)
		}
	}
}

// drainMailbox spawns a Fiber for every message waiting in the mailbox and
// resumes each one once, per §4.4 step 2 ("insert into the slab and resume
// it once") - without this first resume a freshly spawned fiber's goroutine
// never leaves its initial park on resumeCh.
func (l *Loop) drainMailbox() {
	for _, msg := range l.mailbox.Drain() {
		id := l.spawnFiber(msg.task)
		l.resumeFiber(id)
	}
}

// resumeFiber resumes the fiber stored at token for one turn, reaping it
// from the slab if it has finished.
func (l *Loop) resumeFiber(token int) {
	fiber, ok := l.fibers.Get(token)
	if !ok {
		return
	}
	t := fiber.Resume(l.id, token, l.log)
	if t.Tag == TagReturn {
		l.fibers.Remove(token)
	}
}

// Close marks the loop for shutdown; the running Run goroutine observes it
// after its next Poll wakes (Close itself pings the wakeup fd so a blocked
// Poll returns promptly), and the mailbox stops accepting new spawns.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.mailbox.Close()
	_ = notifyWakeupFD(l.wakeWriteFD)
	return nil
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
