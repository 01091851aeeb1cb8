//go:build !windows

package arsenal

import (
	"golang.org/x/sys/unix"
)

// Listener is a non-blocking TCP listener integrated with the scheduler's
// event loop (§4.7): Accept suspends the calling coroutine instead of
// blocking the OS thread.
type Listener struct {
	fd    int
	sched *Scheduler
}

// Conn is a non-blocking TCP connection integrated with the scheduler's
// event loop: Read/Write suspend the calling coroutine on would-block
// instead of blocking the OS thread, the coroutine-runtime equivalent of
// Go's own netpoller-backed net.Conn.
type Conn struct {
	fd    int
	sched *Scheduler
}

// Listen creates a non-blocking TCP listener bound to addr (an IPv4
// dotted-quad) and port. Must be called from within a coroutine.
func Listen(addr [4]byte, port int) (*Listener, error) {
	co := mustCurrent()
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, &IOError{Kind: IOOther, Err: err}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, &IOError{Kind: IOOther, Err: err}
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	sa := &unix.SockaddrInet4{Port: port, Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, &IOError{Kind: IOOther, Err: err}
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, &IOError{Kind: IOOther, Err: err}
	}
	return &Listener{fd: fd, sched: co.sched}, nil
}

// Accept suspends the calling coroutine until an incoming connection is
// ready, then returns it.
func (l *Listener) Accept() (*Conn, error) {
	co := mustCurrent()
	for {
		nfd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK)
		if err == nil {
			return &Conn{fd: nfd, sched: co.sched}, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return nil, &IOError{Kind: IOOther, Err: err}
		}
		if l.sched.poller == nil {
			return nil, &IOError{Kind: IOOther, Err: ErrNoCoroutineContext}
		}
		if cancelErr := l.sched.poller.waitReadable(l.fd, co); cancelErr != nil {
			return nil, cancelErr
		}
	}
}

// Close stops monitoring and closes the listening socket.
func (l *Listener) Close() error {
	if l.sched.poller != nil {
		l.sched.poller.forget(l.fd)
	}
	return unix.Close(l.fd)
}

// Dial opens a non-blocking TCP connection to addr:port, suspending the
// calling coroutine until the connection completes or fails.
func Dial(addr [4]byte, port int) (*Conn, error) {
	co := mustCurrent()
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, &IOError{Kind: IOOther, Err: err}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, &IOError{Kind: IOOther, Err: err}
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: addr}
	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, &IOError{Kind: IOOther, Err: err}
	}
	c := &Conn{fd: fd, sched: co.sched}
	if err == unix.EINPROGRESS {
		if c.sched.poller == nil {
			_ = unix.Close(fd)
			return nil, &IOError{Kind: IOOther, Err: ErrNoCoroutineContext}
		}
		if cancelErr := c.sched.poller.waitWritable(fd, co); cancelErr != nil {
			_ = unix.Close(fd)
			return nil, cancelErr
		}
		if errno, serr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); serr == nil && errno != 0 {
			_ = unix.Close(fd)
			return nil, &IOError{Kind: IOOther, Err: unix.Errno(errno)}
		}
	}
	return c, nil
}

// Read suspends the calling coroutine until at least one byte is
// available, then fills p and returns the count read. Returns an
// *IOError with Kind IOEof when the peer has closed its end.
func (c *Conn) Read(p []byte) (int, error) {
	co := mustCurrent()
	for {
		n, err := unix.Read(c.fd, p)
		if err == nil {
			if n == 0 {
				return 0, &IOError{Kind: IOEof}
			}
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return 0, &IOError{Kind: IOOther, Err: err}
		}
		if c.sched.poller == nil {
			return 0, &IOError{Kind: IOOther, Err: ErrNoCoroutineContext}
		}
		if cancelErr := c.sched.poller.waitReadable(c.fd, co); cancelErr != nil {
			return 0, cancelErr
		}
	}
}

// Write suspends the calling coroutine as needed until all of p has been
// written.
func (c *Conn) Write(p []byte) (int, error) {
	co := mustCurrent()
	total := 0
	for total < len(p) {
		n, err := unix.Write(c.fd, p[total:])
		if err == nil {
			total += n
			continue
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return total, &IOError{Kind: IOOther, Err: err}
		}
		if c.sched.poller == nil {
			return total, &IOError{Kind: IOOther, Err: ErrNoCoroutineContext}
		}
		if cancelErr := c.sched.poller.waitWritable(c.fd, co); cancelErr != nil {
			return total, cancelErr
		}
	}
	return total, nil
}

// Shutdown half- or fully closes the connection per how (unix.SHUT_RD,
// SHUT_WR, or SHUT_RDWR) without releasing the fd.
func (c *Conn) Shutdown(how int) error {
	return unix.Shutdown(c.fd, how)
}

// Close stops monitoring and closes the connection's socket.
func (c *Conn) Close() error {
	if c.sched.poller != nil {
		c.sched.poller.forget(c.fd)
	}
	return unix.Close(c.fd)
}
