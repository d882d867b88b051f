package can

import (
	"errors"
	"fmt"
)

// InvalidIDError reports an identifier value outside the range of its frame
// format.
type InvalidIDError struct {
	ID       uint32
	Extended bool
}

func (e *InvalidIDError) Error() string {
	if e.Extended {
		return fmt.Sprintf("can: invalid extended CAN ID 0x%08X, maximum valid value is 0x%08X", e.ID, uint32(MaxExtendedID))
	}
	return fmt.Sprintf("can: invalid standard CAN ID 0x%03X, maximum valid value is 0x%03X", e.ID, uint16(MaxStandardID))
}

// DataTooLongError reports a payload longer than the 8 bytes a classical CAN
// frame can carry.
type DataTooLongError struct {
	Len int
}

func (e *DataTooLongError) Error() string {
	return fmt.Sprintf("can: data too large for CAN frame, expected at most %d bytes, got %d", MaxDataLen, e.Len)
}

// ErrLengthMismatch is returned by conversions that require the requested
// size to equal the logical payload length.
var ErrLengthMismatch = errors.New("can: data length mismatch")

// ErrInvalidLength is returned when a data length code is outside 0..8.
var ErrInvalidLength = errors.New("can: invalid data length")
