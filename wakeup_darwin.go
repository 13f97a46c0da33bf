//go:build darwin

package fiberloop

import "golang.org/x/sys/unix"

// newWakeupFD creates a self-pipe used to wake a blocked Poll when the
// mailbox (§4.3) gets a new message, the Darwin half of the teacher's
// createWakeFd/drainWakeUpPipe pair (eventloop/wakeup_darwin.go).
func newWakeupFD() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

// notifyWakeupFD writes one wake-up tick.
func notifyWakeupFD(writeFD int) error {
	_, err := unix.Write(writeFD, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// drainWakeupFD consumes all pending wake-up ticks.
func drainWakeupFD(readFD int) {
	var buf [64]byte
	for {
		_, err := unix.Read(readFD, buf[:])
		if err != nil {
			return
		}
	}
}

// closeWakeupFD releases the wakeup source's descriptors.
func closeWakeupFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
	_ = unix.Close(writeFD)
}
