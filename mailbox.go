package fiberloop

import (
	"sync"
)

// spawnMsg is one message placed in a Loop's mailbox: a task to start as a
// brand-new Fiber on that loop, the Go analogue of the source's LoopMsg::NewFiber(Box<FnOnce>).
type spawnMsg struct {
	task func()
}

// Mailbox is the MPSC (many spawning goroutines, one owning Loop goroutine)
// inbox described by §4.3, grounded on the teacher's ChunkedIngress
// (eventloop/ingress.go): a simple mutex-guarded slice standing in for its
// chunked linked list, since a fiber runtime's spawn volume never demands
// ChunkedIngress's lock-free ring-buffer machinery. Every Push also pings
// the Loop's wakeup fd, so a Poll blocked with no ready I/O still wakes up
// promptly to drain newly spawned work.
type Mailbox struct {
	mu     sync.Mutex
	queue  []spawnMsg
	closed bool

	wakeWriteFD int
}

// NewMailbox constructs an empty mailbox that pings wakeWriteFD on every
// Push.
func NewMailbox(wakeWriteFD int) *Mailbox {
	return &Mailbox{wakeWriteFD: wakeWriteFD}
}

// Push enqueues task for spawning on the mailbox's owning loop. Returns
// ErrMailboxClosed if the owning loop has already shut down.
func (m *Mailbox) Push(task func()) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.queue = append(m.queue, spawnMsg{task: task})
	m.mu.Unlock()

	return notifyWakeupFD(m.wakeWriteFD)
}

// Drain removes and returns every message currently queued, for the owning
// Loop goroutine to process after waking from Poll.
func (m *Mailbox) Drain() []spawnMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	out := m.queue
	m.queue = nil
	return out
}

// Close marks the mailbox closed; further Push calls fail.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
