package can

import (
	"encoding/binary"
	"fmt"
)

// FrameSize is the size of the Linux can_frame binary layout for classical
// CAN: 4-byte id word, 1-byte DLC, 3 padding bytes, 8 data bytes.
const FrameSize = 16

// Kernel id-word flag bits and value masks, as in <linux/can.h>.
const (
	flagExtended = 0x80000000 // CAN_EFF_FLAG
	flagRemote   = 0x40000000 // CAN_RTR_FLAG
	flagError    = 0x20000000 // CAN_ERR_FLAG
	invertFlag   = 0x20000000 // CAN_INV_FILTER (filter id word only)
	maskStandard = 0x7FF      // CAN_SFF_MASK
	maskExtended = 0x1FFFFFFF // CAN_EFF_MASK
)

// MarshalBinary encodes the frame in the 16-byte can_frame layout used by
// SocketCAN. The id word is little-endian, matching the kernel's host order
// on common Linux targets.
func (f Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, FrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.RawID())
	buf[4] = f.data.length
	if !f.remote {
		copy(buf[8:], f.data.bytes[:f.data.length])
	}
	return buf, nil
}

// UnmarshalBinary decodes a frame from the can_frame layout. Error frames
// (CAN_ERR_FLAG set) are rejected; the raw socket does not deliver them
// unless explicitly subscribed.
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) < FrameSize {
		return fmt.Errorf("can: short can_frame: need %d bytes, got %d", FrameSize, len(b))
	}
	raw := binary.LittleEndian.Uint32(b[0:4])
	dlc := b[4]
	frame, err := FrameFromRaw(raw, dlc, b[8:FrameSize])
	if err != nil {
		return err
	}
	*f = frame
	return nil
}

// FrameFromRaw reconstructs a frame from a kernel-style id word (flags folded
// into the upper bits, see RawID) plus a DLC and payload bytes. Only the
// first dlc bytes of data are read, and none for remote frames. Error frames
// and DLCs above 8 are rejected.
func FrameFromRaw(raw uint32, dlc uint8, data []byte) (Frame, error) {
	if raw&flagError != 0 {
		return Frame{}, fmt.Errorf("can: unexpected error frame (id word 0x%08X)", raw)
	}
	if dlc > MaxDataLen {
		return Frame{}, fmt.Errorf("%w: %d", ErrInvalidLength, dlc)
	}
	var id ID
	if raw&flagExtended != 0 {
		id = ExtendedID(raw & maskExtended).ID()
	} else {
		id = StandardID(raw & maskStandard).ID()
	}
	f := Frame{id: id, remote: raw&flagRemote != 0}
	f.data.length = dlc
	if !f.remote {
		copy(f.data.bytes[:dlc], data[:min(int(dlc), len(data))])
	}
	return f, nil
}
