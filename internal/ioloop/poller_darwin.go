//go:build darwin

package ioloop

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the Darwin backend, grounded on
// joeycumines-go-utilpkg/eventloop/poller_darwin.go's kqueue wrapper.
// Every registration carries EV_CLEAR, kqueue's edge-triggered flag, to
// match §4.7's edge-triggered requirement (the grounding source registers
// level-triggered by default).
type kqueuePoller struct {
	mu    sync.RWMutex
	kq    int
	fds   map[int]fdEntry
	evbuf [128]unix.Kevent_t
}

type fdEntry struct {
	cb     Callback
	events Events
}

func New() Poller { return &kqueuePoller{} }

func (p *kqueuePoller) Init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.fds = make(map[int]fdEntry)
	return nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}

func (p *kqueuePoller) RegisterFD(fd int, events Events, cb Callback) error {
	p.mu.Lock()
	p.fds[fd] = fdEntry{cb: cb, events: events}
	p.mu.Unlock()
	kevs := toKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
	if len(kevs) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, kevs, nil, nil)
	return err
}

func (p *kqueuePoller) ModifyFD(fd int, events Events) error {
	p.mu.Lock()
	old := p.fds[fd]
	p.fds[fd] = fdEntry{cb: old.cb, events: events}
	p.mu.Unlock()
	// Delete whichever filters are no longer wanted, then (re)add the rest.
	delKevs := toKevents(fd, (Read|Write)&^events, unix.EV_DELETE)
	if len(delKevs) > 0 {
		_, _ = unix.Kevent(p.kq, delKevs, nil, nil)
	}
	addKevs := toKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
	if len(addKevs) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, addKevs, nil, nil)
	return err
}

func (p *kqueuePoller) UnregisterFD(fd int) error {
	p.mu.Lock()
	events := p.fds[fd].events
	delete(p.fds, fd)
	p.mu.Unlock()
	kevs := toKevents(fd, events, unix.EV_DELETE)
	if len(kevs) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, kevs, nil, nil)
	return err
}

func (p *kqueuePoller) Poll(timeout time.Duration) (int, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		ts = &unix.Timespec{Sec: int64(timeout / time.Second), Nsec: int64(timeout % time.Second)}
	}
	n, err := unix.Kevent(p.kq, nil, p.evbuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	dispatched := 0
	for i := 0; i < n; i++ {
		fd := int(p.evbuf[i].Ident)
		p.mu.RLock()
		entry, ok := p.fds[fd]
		p.mu.RUnlock()
		if !ok || entry.cb == nil {
			continue
		}
		entry.cb(fromKevent(&p.evbuf[i]))
		dispatched++
	}
	return dispatched, nil
}

func toKevents(fd int, events Events, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if events&Read != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&Write != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}

func fromKevent(kev *unix.Kevent_t) Events {
	var out Events
	switch kev.Filter {
	case unix.EVFILT_READ:
		out |= Read
	case unix.EVFILT_WRITE:
		out |= Write
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		out |= Err
	}
	if kev.Flags&unix.EV_EOF != 0 {
		out |= Hangup
	}
	return out
}
