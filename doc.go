// Package fiberloop implements a user-space fiber runtime that multiplexes
// many lightweight, stackful cooperative tasks ("fibers") across a small,
// fixed pool of kernel worker threads, each running its own OS-level
// readiness poller.
//
// # Architecture
//
// The runtime is built around three tightly coupled pieces: a Fiber's
// goroutine-backed coroutine switching (see Fiber and Transfer), a per-loop
// event loop owning a readiness [Poller], a slab of fibers, and an inbound
// spawn mailbox (see Loop), and an [AsyncIO] adapter that binds a handle to
// "the currently running fiber", migrating the handle's poller registration
// when it is used from a different fiber or loop than it was last
// registered with.
//
// Fibers are written in ordinary synchronous style. When an AsyncIO
// operation would block, the fiber transparently suspends: its identity is
// registered with the owning loop's poller for the desired readiness, and
// control returns to that loop, which resumes some other runnable fiber.
// When the poller later reports readiness, the loop resumes the originating
// fiber, and the operation retries.
//
// # Go-native coroutine switching
//
// Go exposes no public primitive for raw stack switching. Rather than
// reach for cgo or hand-rolled assembly, each [Fiber] runs on its own
// goroutine, and "resuming" it is a synchronous, unbuffered-channel
// handshake with the owning [Loop]'s goroutine: the loop blocks on resume
// until the fiber yields or returns, and the fiber blocks on yield until
// the loop resumes it again. Exactly one side of the handshake is runnable
// at any instant, which reproduces the "one fiber of a loop runs at a time"
// invariant without needing a real stack swap.
//
// # Platform support
//
// Readiness polling uses platform-native mechanisms:
//   - Linux: epoll
//   - Darwin: kqueue
//
// # Non-goals
//
// Preemption of fibers, work-stealing between loops, fiber migration across
// threads after spawn, structured return values from fibers, cancellation,
// priorities, and deadlines are all explicitly out of scope. The concrete
// set of I/O handle types (sockets, listeners, timers) is an external
// collaborator: fiberloop treats a handle as an opaque object exposing a
// file descriptor and non-blocking Read/Write, plus Flush when it has one.
package fiberloop
