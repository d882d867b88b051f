//go:build linux

package socketcan

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-can-socket/can"
)

// Socket is a blocking CAN socket bound to one interface (or the wildcard)
// for its whole lifetime. It owns exactly one kernel handle; the handle is
// never duplicated, and Close releases it. A Socket is created in the Bound
// state by one of the Bind constructors and reaches Closed only through
// Close.
//
// Send and Recv block the calling thread. By convention each Socket is
// driven by one goroutine at a time; nothing is synchronized internally.
type Socket struct {
	fd     int
	iface  Interface
	closed atomic.Bool
}

// Bind opens a blocking CAN socket bound to the named interface.
func Bind(name string) (*Socket, error) {
	ifc, err := InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return BindInterface(ifc)
}

// BindInterface opens a blocking CAN socket bound to the given interface.
func BindInterface(ifc Interface) (*Socket, error) {
	fd, err := newRawSocket(false)
	if err != nil {
		return nil, err
	}
	if err := bindToInterface(fd, ifc); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &Socket{fd: fd, iface: ifc}, nil
}

// BindAll opens a blocking CAN socket bound to all CAN interfaces. Use
// RecvFrom to learn which interface a frame arrived on and SendTo to pick
// the interface to send on.
func BindAll() (*Socket, error) {
	return BindInterface(AllInterfaces)
}

// Close releases the kernel handle. Closing an already closed socket is a
// no-op; every other operation afterwards returns ErrClosed.
//
// Close does not interrupt a Recv or Send already blocked in the kernel:
// CAN raw sockets do not implement shutdown(2), so there is no portable way
// to wake a blocked reader. Under the one-goroutine-per-socket convention
// this does not arise; when reads must be cancellable, use AsyncSocket.
func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return unix.Close(s.fd)
}

// LocalAddr returns the interface the socket is bound to. It never blocks.
func (s *Socket) LocalAddr() Interface { return s.iface }

// Send transmits one frame, blocking until the kernel accepts it for
// transmission. Acceptance does not imply the frame made it onto the bus.
// A full interface transmit queue is reported as ErrTxQueueFull.
func (s *Socket) Send(frame can.Frame) error {
	if s.closed.Load() {
		return ErrClosed
	}
	buf, _ := frame.MarshalBinary()
	for {
		n, err := unix.Write(s.fd, buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ENOBUFS:
			return ErrTxQueueFull
		case err != nil:
			return fmt.Errorf("socketcan: send: %w", err)
		case n != len(buf):
			return fmt.Errorf("socketcan: send: short write (%d)", n)
		}
		return nil
	}
}

// SendTo transmits one frame over a particular interface. The interface must
// match the bound interface unless the socket is bound to the wildcard.
func (s *Socket) SendTo(frame can.Frame, ifc Interface) error {
	if s.closed.Load() {
		return ErrClosed
	}
	buf, _ := frame.MarshalBinary()
	sa := &unix.SockaddrCAN{Ifindex: ifc.Index}
	for {
		err := unix.Sendto(s.fd, buf, 0, sa)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ENOBUFS:
			return ErrTxQueueFull
		case err != nil:
			return fmt.Errorf("socketcan: send to %s: %w", ifc, err)
		}
		return nil
	}
}

// Recv blocks until one frame is delivered to the socket.
func (s *Socket) Recv() (can.Frame, error) {
	if s.closed.Load() {
		return can.Frame{}, ErrClosed
	}
	var buf [can.FrameSize]byte
	for {
		n, err := unix.Read(s.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return can.Frame{}, fmt.Errorf("socketcan: recv: %w", err)
		}
		return decodeFrame(buf[:], n)
	}
}

// RecvFrom blocks until one frame is delivered and additionally reports the
// concrete interface it arrived on, which is how frames are attributed on a
// wildcard-bound socket.
func (s *Socket) RecvFrom() (can.Frame, Interface, error) {
	if s.closed.Load() {
		return can.Frame{}, Interface{}, ErrClosed
	}
	var buf [can.FrameSize]byte
	for {
		n, sa, err := unix.Recvfrom(s.fd, buf[:], 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return can.Frame{}, Interface{}, fmt.Errorf("socketcan: recv: %w", err)
		}
		frame, err := decodeFrame(buf[:], n)
		if err != nil {
			return can.Frame{}, Interface{}, err
		}
		return frame, sockaddrInterface(sa), nil
	}
}

// Loopback reports whether frames sent by other sockets on the same
// interface are delivered to this socket. On by default.
func (s *Socket) Loopback() (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	return getLoopback(s.fd)
}

// SetLoopback enables or disables delivery of frames sent by other local
// sockets on the same interface.
func (s *Socket) SetLoopback(enable bool) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return setLoopback(s.fd, enable)
}

// ReceiveOwnMessages reports whether frames sent on this socket are delivered
// back to it. Off by default; delivery also requires loopback and passing
// filters.
func (s *Socket) ReceiveOwnMessages() (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	return getRecvOwnMsgs(s.fd)
}

// SetReceiveOwnMessages enables or disables delivery of this socket's own
// transmitted frames back to it.
func (s *Socket) SetReceiveOwnMessages(enable bool) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return setRecvOwnMsgs(s.fd, enable)
}

// SetFilters installs the receive filter set; a frame is delivered when it
// matches at least one filter. A nil or empty set restores the accept-all
// default rather than blocking all reception.
func (s *Socket) SetFilters(filters []can.Filter) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return installFilters(s.fd, filters)
}

func decodeFrame(buf []byte, n int) (can.Frame, error) {
	if n != can.FrameSize {
		return can.Frame{}, fmt.Errorf("socketcan: short read (%d)", n)
	}
	var frame can.Frame
	if err := frame.UnmarshalBinary(buf); err != nil {
		return can.Frame{}, err
	}
	return frame, nil
}

func sockaddrInterface(sa unix.Sockaddr) Interface {
	if ca, ok := sa.(*unix.SockaddrCAN); ok {
		return interfaceForIndex(ca.Ifindex)
	}
	return Interface{}
}
