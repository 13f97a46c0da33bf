package fiberloop

import (
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

func TestMailbox_PushDrainWakesUp(t *testing.T) {
	readFD, writeFD, err := newWakeupFD()
	if err != nil {
		t.Fatalf("newWakeupFD: %v", err)
	}
	defer closeWakeupFD(readFD, writeFD)

	m := NewMailbox(writeFD)

	if err := m.Push(func() {}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := m.Push(func() {}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	var buf [8]byte
	n, err := unix.Read(readFD, buf[:])
	if err != nil || n == 0 {
		t.Fatalf("expected a wakeup byte to be readable, got n=%d err=%v", n, err)
	}

	msgs := m.Drain()
	if len(msgs) != 2 {
		t.Fatalf("Drain() returned %d messages; want 2", len(msgs))
	}
	if more := m.Drain(); more != nil {
		t.Fatalf("second Drain() returned %d messages; want 0", len(more))
	}
}

func TestMailbox_PushAfterCloseFails(t *testing.T) {
	readFD, writeFD, err := newWakeupFD()
	if err != nil {
		t.Fatalf("newWakeupFD: %v", err)
	}
	defer closeWakeupFD(readFD, writeFD)

	m := NewMailbox(writeFD)
	m.Close()

	if err := m.Push(func() {}); err != ErrMailboxClosed {
		t.Fatalf("Push after Close = %v; want ErrMailboxClosed", err)
	}
}

func TestMailbox_ConcurrentPush(t *testing.T) {
	readFD, writeFD, err := newWakeupFD()
	if err != nil {
		t.Fatalf("newWakeupFD: %v", err)
	}
	defer closeWakeupFD(readFD, writeFD)

	m := NewMailbox(writeFD)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = m.Push(func() {})
		}()
	}
	wg.Wait()

	if got := len(m.Drain()); got != n {
		t.Fatalf("Drain() returned %d messages; want %d", got, n)
	}
}
