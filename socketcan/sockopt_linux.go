//go:build linux

package socketcan

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-can-socket/can"
)

// Raw socket option helpers shared by the blocking and asynchronous sockets.
// Each used kernel option gets a typed accessor pair; callers never see the
// untyped option codes.

func newRawSocket(nonblock bool) (int, error) {
	typ := unix.SOCK_RAW | unix.SOCK_CLOEXEC
	if nonblock {
		typ |= unix.SOCK_NONBLOCK
	}
	fd, err := unix.Socket(unix.AF_CAN, typ, unix.CAN_RAW)
	if err != nil {
		return -1, fmt.Errorf("socketcan: socket(AF_CAN): %w", err)
	}
	// Classical CAN only. Older kernels may not know the FD option; ignore
	// ENOPROTOOPT.
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil {
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return -1, fmt.Errorf("socketcan: disable CAN FD: %w", err)
		}
	}
	return fd, nil
}

func bindToInterface(fd int, ifc Interface) error {
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifc.Index}); err != nil {
		return fmt.Errorf("socketcan: bind(can@%s): %w", ifc, err)
	}
	return nil
}

func getLoopback(fd int) (bool, error) {
	v, err := unix.GetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_LOOPBACK)
	if err != nil {
		return false, fmt.Errorf("socketcan: get loopback: %w", err)
	}
	return v != 0, nil
}

func setLoopback(fd int, enable bool) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_LOOPBACK, boolToInt(enable)); err != nil {
		return fmt.Errorf("socketcan: set loopback: %w", err)
	}
	return nil
}

func getRecvOwnMsgs(fd int) (bool, error) {
	v, err := unix.GetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS)
	if err != nil {
		return false, fmt.Errorf("socketcan: get recv_own_msgs: %w", err)
	}
	return v != 0, nil
}

func setRecvOwnMsgs(fd int, enable bool) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, boolToInt(enable)); err != nil {
		return fmt.Errorf("socketcan: set recv_own_msgs: %w", err)
	}
	return nil
}

// installFilters installs the receive filter set. A nil or empty set restores
// the accept-all default: the kernel treats a zero-length filter list as
// "receive nothing", so the explicit match-anything filter is installed
// instead and the accept-all default is preserved.
func installFilters(fd int, filters []can.Filter) error {
	raw := make([]unix.CanFilter, 0, len(filters)+1)
	for _, f := range filters {
		id, mask := f.Raw()
		raw = append(raw, unix.CanFilter{Id: id, Mask: mask})
	}
	if len(raw) == 0 {
		raw = append(raw, unix.CanFilter{Id: 0, Mask: 0})
	}
	if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, raw); err != nil {
		return fmt.Errorf("socketcan: set filters: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
