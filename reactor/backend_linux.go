//go:build linux

// File: reactor/backend_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux poll backend on edge-triggered epoll, with an eventfd for
// cross-thread wakeup. The 64-bit arm token rides in the epoll event data
// (Fd+Pad); token zero is reserved for the wakeup eventfd and can never
// collide with a handle, because the zero handle is invalid.

package reactor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/api"
)

const wakeToken = uint64(0)

type epollBackend struct {
	epfd   int
	wakeFd int
	events []unix.EpollEvent
}

func newDefaultBackend(maxEvents int) (api.PollBackend, error) {
	return newEpollBackend(maxEvents)
}

func newEpollBackend(maxEvents int) (*epollBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: tokenFd(wakeToken), Pad: tokenPad(wakeToken)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, err
	}
	return &epollBackend{
		epfd:   epfd,
		wakeFd: wakeFd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

func tokenFd(token uint64) int32  { return int32(uint32(token >> 32)) }
func tokenPad(token uint64) int32 { return int32(uint32(token)) }

func eventToken(ev *unix.EpollEvent) uint64 {
	return uint64(uint32(ev.Fd))<<32 | uint64(uint32(ev.Pad))
}

func epollFlags(interests api.Interest) uint32 {
	flags := uint32(unix.EPOLLET)
	if interests.Has(api.InterestReadable) {
		flags |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interests.Has(api.InterestWritable) {
		flags |= unix.EPOLLOUT
	}
	return flags
}

func descFd(desc api.Descriptor) (int, error) {
	fd, ok := desc.(api.FdDescriptor)
	if !ok {
		return 0, unix.EINVAL
	}
	return fd.Fd, nil
}

func (b *epollBackend) Arm(desc api.Descriptor, token uint64, interests api.Interest) error {
	fd, err := descFd(desc)
	if err != nil {
		return err
	}
	ev := &unix.EpollEvent{Events: epollFlags(interests), Fd: tokenFd(token), Pad: tokenPad(token)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (b *epollBackend) Rearm(desc api.Descriptor, token uint64, interests api.Interest) error {
	fd, err := descFd(desc)
	if err != nil {
		return err
	}
	ev := &unix.EpollEvent{Events: epollFlags(interests), Fd: tokenFd(token), Pad: tokenPad(token)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (b *epollBackend) Disarm(desc api.Descriptor) error {
	fd, err := descFd(desc)
	if err != nil {
		return err
	}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) Wait(out []api.BackendEvent, timeout time.Duration) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if timeout > 0 && ms == 0 {
			ms = 1
		}
	}
	n, err := unix.EpollWait(b.epfd, b.events, ms)
	if err != nil {
		if err == unix.EINTR {
			// Interrupted wait is transient; report an empty sweep.
			return 0, nil
		}
		return 0, err
	}

	filled := 0
	for i := 0; i < n && filled < len(out); i++ {
		ev := &b.events[i]
		token := eventToken(ev)
		if token == wakeToken {
			b.drainWakeFd()
			continue
		}
		var ready api.Interest
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			ready |= api.InterestReadable
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			ready |= api.InterestWritable
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			ready |= api.InterestError
		}
		out[filled] = api.BackendEvent{Token: token, Ready: ready}
		filled++
	}
	return filled, nil
}

func (b *epollBackend) drainWakeFd() {
	var buf [8]byte
	for {
		if _, err := unix.Read(b.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

func (b *epollBackend) Wakeup() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(b.wakeFd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (b *epollBackend) Close() error {
	unix.Close(b.wakeFd)
	return unix.Close(b.epfd)
}
