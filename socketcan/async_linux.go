//go:build linux

package socketcan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-can-socket/can"
)

// AsyncSocket is a CAN socket registered with the runtime network poller.
// Blocking variants park the goroutine instead of an OS thread, so many
// sockets can be multiplexed cheaply. Every operation comes in three
// flavors: context-aware (Recv), bounded (RecvTimeout) and non-blocking
// (TryRecv). Concurrent use from multiple goroutines is safe; the poller
// serializes waiters per direction.
type AsyncSocket struct {
	file  *os.File
	raw   syscall.RawConn
	iface Interface
}

// BindAsync opens a poller-registered CAN socket bound to the named
// interface.
func BindAsync(name string) (*AsyncSocket, error) {
	ifc, err := InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return BindAsyncInterface(ifc)
}

// BindAsyncInterface opens a poller-registered CAN socket bound to the given
// interface.
func BindAsyncInterface(ifc Interface) (*AsyncSocket, error) {
	fd, err := newRawSocket(true)
	if err != nil {
		return nil, err
	}
	if err := bindToInterface(fd, ifc); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	file := os.NewFile(uintptr(fd), ifc.String())
	raw, err := file.SyscallConn()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("socketcan: register with poller: %w", err)
	}
	return &AsyncSocket{file: file, raw: raw, iface: ifc}, nil
}

// BindAsyncAll opens a poller-registered CAN socket bound to all CAN
// interfaces.
func BindAsyncAll() (*AsyncSocket, error) {
	return BindAsyncInterface(AllInterfaces)
}

// Close releases the socket. Any goroutine parked in a receive or send is
// woken with ErrClosed.
func (s *AsyncSocket) Close() error { return s.file.Close() }

// LocalAddr returns the interface the socket is bound to.
func (s *AsyncSocket) LocalAddr() Interface { return s.iface }

// Send transmits one frame, waiting for transmit-queue space if needed.
// Cancelling the context abandons the wait and returns ctx.Err(); the frame
// is not sent.
func (s *AsyncSocket) Send(ctx context.Context, frame can.Frame) error {
	return s.sendSockaddr(ctx, frame, nil)
}

// SendTo transmits one frame over a particular interface, which is how
// output is directed on a wildcard-bound socket.
func (s *AsyncSocket) SendTo(ctx context.Context, frame can.Frame, ifc Interface) error {
	return s.sendSockaddr(ctx, frame, &unix.SockaddrCAN{Ifindex: ifc.Index})
}

// SendTimeout is Send bounded by a duration; expiry returns ErrTimeout.
func (s *AsyncSocket) SendTimeout(frame can.Frame, d time.Duration) error {
	defer s.clearWriteDeadline()
	if err := s.file.SetWriteDeadline(time.Now().Add(d)); err != nil {
		return s.opErr("send", err)
	}
	return s.Send(context.Background(), frame)
}

// SendToTimeout is SendTo bounded by a duration; expiry returns ErrTimeout.
func (s *AsyncSocket) SendToTimeout(frame can.Frame, ifc Interface, d time.Duration) error {
	defer s.clearWriteDeadline()
	if err := s.file.SetWriteDeadline(time.Now().Add(d)); err != nil {
		return s.opErr("send", err)
	}
	return s.SendTo(context.Background(), frame, ifc)
}

// TrySend attempts to transmit one frame without waiting. ErrWouldBlock
// means the transmit queue had no room right now.
func (s *AsyncSocket) TrySend(frame can.Frame) error {
	return s.trySendSockaddr(frame, nil)
}

// TrySendTo is TrySend directed at a particular interface.
func (s *AsyncSocket) TrySendTo(frame can.Frame, ifc Interface) error {
	return s.trySendSockaddr(frame, &unix.SockaddrCAN{Ifindex: ifc.Index})
}

// Recv waits for one frame. Cancelling the context abandons the wait and
// returns ctx.Err(); the socket stays usable.
func (s *AsyncSocket) Recv(ctx context.Context) (can.Frame, error) {
	frame, _, err := s.recv(ctx, false)
	return frame, err
}

// RecvFrom waits for one frame and reports the interface it arrived on.
func (s *AsyncSocket) RecvFrom(ctx context.Context) (can.Frame, Interface, error) {
	return s.recv(ctx, true)
}

// RecvTimeout is Recv bounded by a duration; expiry returns ErrTimeout.
func (s *AsyncSocket) RecvTimeout(d time.Duration) (can.Frame, error) {
	defer s.clearReadDeadline()
	if err := s.file.SetReadDeadline(time.Now().Add(d)); err != nil {
		return can.Frame{}, s.opErr("recv", err)
	}
	return s.Recv(context.Background())
}

// RecvFromTimeout is RecvFrom bounded by a duration; expiry returns
// ErrTimeout.
func (s *AsyncSocket) RecvFromTimeout(d time.Duration) (can.Frame, Interface, error) {
	defer s.clearReadDeadline()
	if err := s.file.SetReadDeadline(time.Now().Add(d)); err != nil {
		return can.Frame{}, Interface{}, s.opErr("recv", err)
	}
	return s.RecvFrom(context.Background())
}

// TryRecv returns the next pending frame, or ErrWouldBlock when none is
// queued.
func (s *AsyncSocket) TryRecv() (can.Frame, error) {
	frame, _, err := s.tryRecv(false)
	return frame, err
}

// TryRecvFrom is TryRecv with the arrival interface.
func (s *AsyncSocket) TryRecvFrom() (can.Frame, Interface, error) {
	return s.tryRecv(true)
}

// Loopback reports whether frames sent by other sockets on the same
// interface are delivered to this socket.
func (s *AsyncSocket) Loopback() (enabled bool, err error) {
	cerr := s.control(func(fd int) { enabled, err = getLoopback(fd) })
	if cerr != nil {
		return false, cerr
	}
	return enabled, err
}

// SetLoopback enables or disables delivery of frames sent by other local
// sockets on the same interface.
func (s *AsyncSocket) SetLoopback(enable bool) error {
	var err error
	if cerr := s.control(func(fd int) { err = setLoopback(fd, enable) }); cerr != nil {
		return cerr
	}
	return err
}

// ReceiveOwnMessages reports whether this socket's own transmitted frames
// are delivered back to it.
func (s *AsyncSocket) ReceiveOwnMessages() (enabled bool, err error) {
	cerr := s.control(func(fd int) { enabled, err = getRecvOwnMsgs(fd) })
	if cerr != nil {
		return false, cerr
	}
	return enabled, err
}

// SetReceiveOwnMessages enables or disables delivery of this socket's own
// transmitted frames back to it.
func (s *AsyncSocket) SetReceiveOwnMessages(enable bool) error {
	var err error
	if cerr := s.control(func(fd int) { err = setRecvOwnMsgs(fd, enable) }); cerr != nil {
		return cerr
	}
	return err
}

// SetFilters installs the receive filter set; a nil or empty set restores
// the accept-all default.
func (s *AsyncSocket) SetFilters(filters []can.Filter) error {
	var err error
	if cerr := s.control(func(fd int) { err = installFilters(fd, filters) }); cerr != nil {
		return cerr
	}
	return err
}

func (s *AsyncSocket) recv(ctx context.Context, from bool) (can.Frame, Interface, error) {
	stop, err := s.watchContext(ctx, s.file.SetReadDeadline, s.clearReadDeadline)
	if err != nil {
		return can.Frame{}, Interface{}, err
	}
	defer stop()

	var (
		buf   [can.FrameSize]byte
		n     int
		sa    unix.Sockaddr
		opErr error
	)
	rerr := s.raw.Read(func(fd uintptr) bool {
		if from {
			n, sa, opErr = unix.Recvfrom(int(fd), buf[:], 0)
		} else {
			n, opErr = unix.Read(int(fd), buf[:])
		}
		// EAGAIN re-arms the poller wait, EINTR just retries.
		return opErr != unix.EAGAIN
	})
	if rerr != nil {
		return can.Frame{}, Interface{}, s.waitErr(ctx, "recv", rerr)
	}
	if opErr == unix.EINTR {
		return s.recv(ctx, from)
	}
	if opErr != nil {
		return can.Frame{}, Interface{}, fmt.Errorf("socketcan: recv: %w", opErr)
	}
	frame, err := decodeFrame(buf[:], n)
	if err != nil {
		return can.Frame{}, Interface{}, err
	}
	return frame, sockaddrInterface(sa), nil
}

func (s *AsyncSocket) tryRecv(from bool) (can.Frame, Interface, error) {
	var (
		buf   [can.FrameSize]byte
		n     int
		sa    unix.Sockaddr
		opErr error
	)
	cerr := s.control(func(fd int) {
		for {
			if from {
				n, sa, opErr = unix.Recvfrom(fd, buf[:], 0)
			} else {
				n, opErr = unix.Read(fd, buf[:])
			}
			if opErr != unix.EINTR {
				return
			}
		}
	})
	if cerr != nil {
		return can.Frame{}, Interface{}, cerr
	}
	if opErr == unix.EAGAIN {
		return can.Frame{}, Interface{}, ErrWouldBlock
	}
	if opErr != nil {
		return can.Frame{}, Interface{}, fmt.Errorf("socketcan: recv: %w", opErr)
	}
	frame, err := decodeFrame(buf[:], n)
	if err != nil {
		return can.Frame{}, Interface{}, err
	}
	return frame, sockaddrInterface(sa), nil
}

func (s *AsyncSocket) sendSockaddr(ctx context.Context, frame can.Frame, sa unix.Sockaddr) error {
	stop, err := s.watchContext(ctx, s.file.SetWriteDeadline, s.clearWriteDeadline)
	if err != nil {
		return err
	}
	defer stop()

	buf, _ := frame.MarshalBinary()
	var opErr error
	werr := s.raw.Write(func(fd uintptr) bool {
		opErr = rawSend(int(fd), buf, sa)
		return opErr != unix.EAGAIN
	})
	if werr != nil {
		return s.waitErr(ctx, "send", werr)
	}
	switch {
	case opErr == unix.EINTR:
		return s.sendSockaddr(ctx, frame, sa)
	case opErr == unix.ENOBUFS:
		// Writability is not signalled when the interface queue drains,
		// so a full queue surfaces instead of being waited out.
		return ErrTxQueueFull
	case opErr != nil:
		return fmt.Errorf("socketcan: send: %w", opErr)
	}
	return nil
}

func (s *AsyncSocket) trySendSockaddr(frame can.Frame, sa unix.Sockaddr) error {
	buf, _ := frame.MarshalBinary()
	var opErr error
	cerr := s.control(func(fd int) {
		for {
			opErr = rawSend(fd, buf, sa)
			if opErr != unix.EINTR {
				return
			}
		}
	})
	if cerr != nil {
		return cerr
	}
	switch {
	case opErr == unix.EAGAIN:
		return ErrWouldBlock
	case opErr == unix.ENOBUFS:
		return ErrTxQueueFull
	case opErr != nil:
		return fmt.Errorf("socketcan: send: %w", opErr)
	}
	return nil
}

func rawSend(fd int, buf []byte, sa unix.Sockaddr) error {
	if sa != nil {
		return unix.Sendto(fd, buf, 0, sa)
	}
	n, err := unix.Write(fd, buf)
	if err == nil && n != len(buf) {
		return fmt.Errorf("short write (%d)", n)
	}
	return err
}

// watchContext arms a goroutine that yanks the relevant deadline when ctx is
// cancelled, waking any waiter parked in the poller. The returned stop must
// be called exactly once; it also clears the deadline it may have set.
func (s *AsyncSocket) watchContext(ctx context.Context, set func(time.Time) error, clear func()) (func(), error) {
	if ctx == nil || ctx.Done() == nil {
		return func() {}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		select {
		case <-ctx.Done():
			_ = set(time.Unix(0, 0))
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-gone
		if ctx.Err() != nil {
			clear()
		}
	}, nil
}

func (s *AsyncSocket) waitErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}
	return s.opErr(op, err)
}

func (s *AsyncSocket) opErr(op string, err error) error {
	if errors.Is(err, os.ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("socketcan: %s: %w", op, err)
}

func (s *AsyncSocket) control(fn func(fd int)) error {
	if err := s.raw.Control(func(fd uintptr) { fn(int(fd)) }); err != nil {
		return s.opErr("socket option", err)
	}
	return nil
}

func (s *AsyncSocket) clearReadDeadline()  { _ = s.file.SetReadDeadline(time.Time{}) }
func (s *AsyncSocket) clearWriteDeadline() { _ = s.file.SetWriteDeadline(time.Time{}) }
