//go:build darwin

package fiberloop

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements Poller on Darwin via kqueue, restructured from
// the teacher's FastPoller (eventloop/poller_darwin.go): the token supplied
// by the caller is carried through Kevent_t.Udata instead of being resolved
// via an inline per-fd callback table, and PollIO becomes Poll, returning a
// batch for the Loop to dispatch against its Slab.
type kqueuePoller struct {
	kq int

	mu        sync.Mutex
	interests map[int]Interests // fd -> currently registered interests
	tokens    map[int]int       // fd -> token
	buf       []unix.Kevent_t
}

func newPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, &PollError{Op: "kqueue", Err: err}
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{
		kq:        kq,
		interests: make(map[int]Interests),
		tokens:    make(map[int]int),
		buf:       make([]unix.Kevent_t, 256),
	}, nil
}

func (p *kqueuePoller) Register(fd int, token int, interests Interests) error {
	p.mu.Lock()
	p.interests[fd] = interests
	p.tokens[fd] = token
	p.mu.Unlock()
	return p.apply(fd, token, 0, interests, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
}

func (p *kqueuePoller) Reregister(fd int, token int, interests Interests) error {
	p.mu.Lock()
	old := p.interests[fd]
	oldToken := p.tokens[fd]
	p.interests[fd] = interests
	p.tokens[fd] = token
	p.mu.Unlock()

	if removed := old &^ interests; removed != 0 {
		if err := p.apply(fd, token, removed, 0, unix.EV_DELETE); err != nil {
			return err
		}
	}
	added := interests &^ old
	if token != oldToken {
		// Re-adding an existing filter updates its Udata, so every kept
		// interest must be re-added to carry the new token.
		added = interests
	}
	if added != 0 {
		if err := p.apply(fd, token, 0, added, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR); err != nil {
			return err
		}
	}
	return nil
}

func (p *kqueuePoller) Deregister(fd int) error {
	p.mu.Lock()
	old := p.interests[fd]
	token := p.tokens[fd]
	delete(p.interests, fd)
	delete(p.tokens, fd)
	p.mu.Unlock()
	return p.apply(fd, token, old, 0, unix.EV_DELETE)
}

// apply submits kevent changes for removeMask (with flags, usually
// EV_DELETE) and addMask (with flags, usually EV_ADD|EV_ENABLE).
func (p *kqueuePoller) apply(fd, token int, removeMask, addMask Interests, flags uint16) error {
	var changes []unix.Kevent_t
	mask := removeMask | addMask
	if mask&InterestRead != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
			Udata:  tokenToUdata(token),
		})
	}
	if mask&InterestWrite != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
			Udata:  tokenToUdata(token),
		})
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return &PollError{Op: "kevent", Err: err}
	}
	return nil
}

func (p *kqueuePoller) Poll(events []Event, timeoutMs int) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1_000_000),
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.buf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, &PollError{Op: "kevent", Err: err}
	}
	count := 0
	for i := 0; i < n && count < len(events); i++ {
		kev := &p.buf[i]
		var ready Interests
		switch kev.Filter {
		case unix.EVFILT_READ:
			ready = InterestRead
		case unix.EVFILT_WRITE:
			ready = InterestWrite
		}
		if kev.Flags&(unix.EV_ERROR|unix.EV_EOF) != 0 {
			ready |= InterestRead | InterestWrite
		}
		events[count] = Event{Token: udataToToken(kev.Udata), Ready: ready}
		count++
	}
	return count, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}

func tokenToUdata(token int) *byte {
	return (*byte)(unsafe.Pointer(uintptr(token)))
}

func udataToToken(udata *byte) int {
	return int(uintptr(unsafe.Pointer(udata)))
}
