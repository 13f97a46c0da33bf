package fiberloop

// Package-wide readiness poller abstraction. §6 asks for "an object the
// Loop can Register(handle, interests)/Deregister(handle) against, and
// Poll(timeout) a batch of (token, readiness) pairs from" - the Go
// translation of mio's Poll/Evented/Token trio used throughout the source.
//
// Unlike the source, this is NOT indexed purely by raw fd: the caller
// supplies a Token (an arbitrary small int, here always a Slab id) at
// Register time, and Poll hands that same Token back alongside the
// readiness that fired. That, in turn, is why this package's poller
// restructures the teacher's inline-callback FastPoller (poller_linux.go)
// into a token+event-batch return shape: the Loop, not the poller, owns
// the token -> fiber dispatch table (the Slab), matching how mio itself
// separates "what fired" from "who handles it."

// Interests is a bitmask of readiness conditions to watch for.
type Interests uint32

const (
	// InterestRead is readability, mio's Ready::readable().
	InterestRead Interests = 1 << iota
	// InterestWrite is writability, mio's Ready::writable().
	InterestWrite
)

// Event is one readiness notification returned by a Poller.Poll call: the
// Token supplied at Register/Reregister time, and which of the registered
// Interests are now ready.
type Event struct {
	Token int
	Ready Interests
}

// mailboxToken is the reserved Token used for the loop's own wakeup source
// (its mailbox notification fd), distinguishing it from Slab-allocated
// fiber/handle tokens, which are always >= 0.
const mailboxToken = -1

// Poller is the minimal readiness-multiplexer surface every Loop needs: the
// Go analogue of mio::Poll, restricted to what §4.6's AsyncIO adapter and
// the Loop's own wakeup registration require.
type Poller interface {
	// Register begins watching fd for interests, to be reported against
	// token on future Poll calls.
	Register(fd int, token int, interests Interests) error
	// Reregister updates the interests or token associated with fd,
	// matching mio's Poll::reregister (used by AsyncIO.NotifyOn, §4.6, when
	// a handle stays on the same loop but its fiber or interests change).
	Reregister(fd int, token int, interests Interests) error
	// Deregister stops watching fd entirely.
	Deregister(fd int) error
	// Poll blocks up to timeoutMs (negative blocks indefinitely) and
	// appends ready events into events, returning how many were appended.
	Poll(events []Event, timeoutMs int) (int, error)
	// Close releases the poller's OS resources.
	Close() error
}
