//go:build linux

package fiberloop

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller on Linux via epoll, restructured from the
// teacher's FastPoller (eventloop/poller_linux.go): instead of an inline
// per-fd IOCallback, the epoll user-data word carries the caller's Token
// directly, and PollIO becomes Poll, returning a batch the Loop dispatches
// against its Slab.
type epollPoller struct {
	epfd int

	mu      sync.Mutex
	fdByTok map[int]int // token -> fd of the latest Register/Reregister; kept up to date, not read by this poller
	buf     []unix.EpollEvent
}

// newPoller constructs the platform Poller; Linux uses epoll.
func newPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &PollError{Op: "epoll_create1", Err: err}
	}
	return &epollPoller{
		epfd:    epfd,
		fdByTok: make(map[int]int),
		buf:     make([]unix.EpollEvent, 256),
	}, nil
}

func (p *epollPoller) Register(fd int, token int, interests Interests) error {
	ev := &unix.EpollEvent{Events: interestsToEpoll(interests), Fd: int32(token)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return &PollError{Op: "epoll_ctl(add)", Err: err}
	}
	p.mu.Lock()
	p.fdByTok[token] = fd
	p.mu.Unlock()
	return nil
}

func (p *epollPoller) Reregister(fd int, token int, interests Interests) error {
	ev := &unix.EpollEvent{Events: interestsToEpoll(interests), Fd: int32(token)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return &PollError{Op: "epoll_ctl(mod)", Err: err}
	}
	p.mu.Lock()
	p.fdByTok[token] = fd
	p.mu.Unlock()
	return nil
}

func (p *epollPoller) Deregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return &PollError{Op: "epoll_ctl(del)", Err: err}
	}
	p.mu.Lock()
	for tok, f := range p.fdByTok {
		if f == fd {
			delete(p.fdByTok, tok)
		}
	}
	p.mu.Unlock()
	return nil
}

func (p *epollPoller) Poll(events []Event, timeoutMs int) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.buf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, &PollError{Op: "epoll_wait", Err: err}
	}
	count := 0
	for i := 0; i < n && count < len(events); i++ {
		events[count] = Event{
			Token: int(p.buf[i].Fd),
			Ready: epollToInterests(p.buf[i].Events),
		}
		count++
	}
	return count, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func interestsToEpoll(in Interests) uint32 {
	e := uint32(unix.EPOLLET)
	if in&InterestRead != 0 {
		e |= unix.EPOLLIN
	}
	if in&InterestWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToInterests(e uint32) Interests {
	var in Interests
	if e&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		in |= InterestRead
	}
	if e&(unix.EPOLLOUT|unix.EPOLLERR) != 0 {
		in |= InterestWrite
	}
	return in
}
