package fiberloop

import (
	"errors"
	"fmt"
)

// Standard errors returned by fiberloop's public surface.
var (
	// ErrLoopClosed is returned by Runtime.SpawnOn when the loop id is out
	// of range. A spawn on a loop that has shut down fails with
	// ErrMailboxClosed instead.
	ErrLoopClosed = errors.New("fiberloop: loop is closed")

	// ErrMailboxClosed is returned when a spawn is attempted against a loop
	// whose mailbox is no longer accepting messages.
	ErrMailboxClosed = errors.New("fiberloop: mailbox is closed")

	// ErrFDOutOfRange names a file descriptor outside the range a poller
	// can index directly. The epoll and kqueue pollers in this package do
	// not return it; they report every failure as a *PollError.
	ErrFDOutOfRange = errors.New("fiberloop: fd out of range")

	// ErrFDAlreadyRegistered names an fd that already has a live
	// registration. The pollers in this package do not return it; a failed
	// Register comes back as a *PollError wrapping the syscall error.
	ErrFDAlreadyRegistered = errors.New("fiberloop: fd already registered")

	// ErrFDNotRegistered names an fd with no live registration. The pollers
	// in this package do not return it; a failed Reregister/Deregister comes
	// back as a *PollError wrapping the syscall error.
	ErrFDNotRegistered = errors.New("fiberloop: fd not registered")

	// ErrPollerClosed names a poller used after Close. The pollers in this
	// package do not return it; they report such failures as a *PollError.
	ErrPollerClosed = errors.New("fiberloop: poller is closed")
)

// SlabFullError is a programmer error: the slab's capacity was exceeded.
// Per the source contract, this is fatal to the owning loop.
type SlabFullError struct {
	Capacity int
}

func (e *SlabFullError) Error() string {
	return fmt.Sprintf("fiberloop: slab out of capacity (%d)", e.Capacity)
}

// NotInFiberError is a programmer error: an operation that requires an
// ambient current fiber (e.g. AsyncIO.NotifyOn) was invoked from a
// goroutine that isn't running as a fiber.
type NotInFiberError struct {
	Op string
}

func (e *NotInFiberError) Error() string {
	return fmt.Sprintf("fiberloop: %s called outside of a running fiber", e.Op)
}

// TransferProtocolError is a programmer error: the current-transfer cell
// discipline described in the design (save exactly once after resume, take
// exactly once before the next resume) was violated.
type TransferProtocolError struct {
	Reason string
}

func (e *TransferProtocolError) Error() string {
	return fmt.Sprintf("fiberloop: transfer protocol violated: %s", e.Reason)
}

// PollError wraps a fatal error returned by the underlying poller
// (register/reregister/deregister/poll). The source treats these as
// unrecoverable; PollError preserves the syscall error via Unwrap.
type PollError struct {
	Op  string
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("fiberloop: poller %s failed: %v", e.Op, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}
