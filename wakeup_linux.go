//go:build linux

package fiberloop

import "golang.org/x/sys/unix"

// newWakeupFD creates an eventfd used to wake a blocked Poll when the
// mailbox (§4.3) gets a new message, the Linux half of the teacher's
// createWakeFd/drainWakeUpPipe pair (eventloop/wakeup_linux.go).
func newWakeupFD() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

// notifyWakeupFD writes one wake-up tick.
func notifyWakeupFD(writeFD int) error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(writeFD, buf[:])
	if err == unix.EAGAIN {
		// Already pending, the reader hasn't drained the prior tick yet.
		return nil
	}
	return err
}

// drainWakeupFD consumes all pending wake-up ticks.
func drainWakeupFD(readFD int) {
	var buf [8]byte
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
}
