package fiberloop

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// pipeHandle adapts a raw non-blocking pipe fd to the Handle interface for
// tests, grounded on the source's use of a raw pipe fd for the wake
// mechanism (the same non-blocking-fd discipline AsyncIO itself assumes).
type pipeHandle struct{ fd int }

func (h *pipeHandle) Fd() int { return h.fd }
func (h *pipeHandle) Read(p []byte) (int, error) {
	return unix.Read(h.fd, p)
}
func (h *pipeHandle) Write(p []byte) (int, error) {
	return unix.Write(h.fd, p)
}

func newNonblockingPipe(t *testing.T) (readFD, writeFD int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("SetNonblock(read): %v", err)
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatalf("SetNonblock(write): %v", err)
	}
	return fds[0], fds[1]
}

// countingPoller wraps a Poller and counts Register/Reregister/Deregister
// calls, so migration tests can assert "exactly one deregister and one
// register" without relying on internals of the real epoll/kqueue poller.
type countingPoller struct {
	Poller
	mu                                         sync.Mutex
	registers, reregisters, deregisters, polls int
}

func (c *countingPoller) Register(fd, token int, interests Interests) error {
	c.mu.Lock()
	c.registers++
	c.mu.Unlock()
	return c.Poller.Register(fd, token, interests)
}

func (c *countingPoller) Reregister(fd, token int, interests Interests) error {
	c.mu.Lock()
	c.reregisters++
	c.mu.Unlock()
	return c.Poller.Reregister(fd, token, interests)
}

func (c *countingPoller) Deregister(fd int) error {
	c.mu.Lock()
	c.deregisters++
	c.mu.Unlock()
	return c.Poller.Deregister(fd)
}

func TestAsyncIO_RegistersOnFirstNotify(t *testing.T) {
	loop, err := NewLoop(0, 0, nil)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	defer loop.Close()

	cp := &countingPoller{Poller: loop.poller}
	loop.poller = cp

	rt := &Runtime{loops: []*Loop{loop}}

	readFD, writeFD := newNonblockingPipe(t)
	defer unix.Close(readFD)
	defer unix.Close(writeFD)

	aio := NewAsyncIO(rt, &pipeHandle{fd: readFD})

	setCurrent(0, 3, NewNoopLogger(), nil)
	aio.NotifyOn(InterestRead)
	clearCurrent()

	if cp.registers != 1 || cp.reregisters != 0 || cp.deregisters != 0 {
		t.Fatalf("got registers=%d reregisters=%d deregisters=%d; want 1,0,0",
			cp.registers, cp.reregisters, cp.deregisters)
	}
}

func TestAsyncIO_MigratesBetweenLoopsExactlyOnce(t *testing.T) {
	loopA, err := NewLoop(0, 0, nil)
	if err != nil {
		t.Fatalf("NewLoop(0): %v", err)
	}
	defer loopA.Close()
	loopB, err := NewLoop(1, 0, nil)
	if err != nil {
		t.Fatalf("NewLoop(1): %v", err)
	}
	defer loopB.Close()

	cpA := &countingPoller{Poller: loopA.poller}
	loopA.poller = cpA
	cpB := &countingPoller{Poller: loopB.poller}
	loopB.poller = cpB

	rt := &Runtime{loops: []*Loop{loopA, loopB}}

	readFD, writeFD := newNonblockingPipe(t)
	defer unix.Close(readFD)
	defer unix.Close(writeFD)

	aio := NewAsyncIO(rt, &pipeHandle{fd: readFD})

	setCurrent(0, 3, NewNoopLogger(), nil)
	aio.NotifyOn(InterestRead)
	clearCurrent()

	setCurrent(1, 7, NewNoopLogger(), nil)
	aio.NotifyOn(InterestRead)
	clearCurrent()

	if cpA.registers != 1 || cpA.deregisters != 1 {
		t.Fatalf("loop A: registers=%d deregisters=%d; want 1,1", cpA.registers, cpA.deregisters)
	}
	if cpB.registers != 1 || cpB.deregisters != 0 {
		t.Fatalf("loop B: registers=%d deregisters=%d; want 1,0", cpB.registers, cpB.deregisters)
	}
	if aio.reg.loopID != 1 || aio.reg.fiberID != 7 {
		t.Fatalf("final registration = %+v; want loop 1, fiber 7", aio.reg)
	}
}

func TestAsyncIO_ReregistersOnSameLoopDifferentFiber(t *testing.T) {
	loop, err := NewLoop(0, 0, nil)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	defer loop.Close()

	cp := &countingPoller{Poller: loop.poller}
	loop.poller = cp
	rt := &Runtime{loops: []*Loop{loop}}

	readFD, writeFD := newNonblockingPipe(t)
	defer unix.Close(readFD)
	defer unix.Close(writeFD)

	aio := NewAsyncIO(rt, &pipeHandle{fd: readFD})

	setCurrent(0, 1, NewNoopLogger(), nil)
	aio.NotifyOn(InterestRead)
	clearCurrent()

	setCurrent(0, 2, NewNoopLogger(), nil)
	aio.NotifyOn(InterestRead)
	clearCurrent()

	if cp.registers != 1 || cp.reregisters != 1 || cp.deregisters != 0 {
		t.Fatalf("got registers=%d reregisters=%d deregisters=%d; want 1,1,0",
			cp.registers, cp.reregisters, cp.deregisters)
	}
}

// TestAsyncIO_LargeTransferThroughPipe pushes 1 MiB through a pipe between
// two fibers on a real running Runtime, exercising the would-block retry
// loops in Read/Write without deadlocking - scenario 3 of the design's
// test plan.
func TestAsyncIO_LargeTransferThroughPipe(t *testing.T) {
	rt, err := NewRuntime(WithPoolSize(2))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	readFD, writeFD := newNonblockingPipe(t)

	const size = 1 << 20
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i)
	}

	done := make(chan error, 2)

	if err := rt.Spawn(func() {
		w := NewAsyncIO(rt, &pipeHandle{fd: writeFD})
		defer unix.Close(writeFD)
		sent := 0
		for sent < size {
			n, err := w.Write(payload[sent:])
			if err != nil {
				done <- err
				return
			}
			sent += n
		}
		done <- nil
	}); err != nil {
		t.Fatalf("Spawn(writer): %v", err)
	}

	if err := rt.Spawn(func() {
		r := NewAsyncIO(rt, &pipeHandle{fd: readFD})
		defer unix.Close(readFD)
		got := make([]byte, 0, size)
		buf := make([]byte, 32*1024)
		for len(got) < size {
			n, err := r.Read(buf)
			if n > 0 {
				got = append(got, buf[:n]...)
			}
			if err != nil {
				done <- err
				return
			}
		}
		for i := range payload {
			if got[i] != payload[i] {
				done <- &TransferProtocolError{Reason: "payload mismatch"}
				return
			}
		}
		done <- nil
	}); err != nil {
		t.Fatalf("Spawn(reader): %v", err)
	}

	timeout := time.After(10 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("transfer failed: %v", err)
			}
		case <-timeout:
			t.Fatal("timed out transferring 1 MiB through the pipe")
		}
	}
}
