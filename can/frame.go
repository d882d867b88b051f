package can

import "fmt"

// Frame is a classical CAN frame: a data frame carrying 0-8 payload bytes,
// or a remote transmission request (RTR) carrying only a requested length.
//
// The fields are unexported: the extended flag is derived from the ID and the
// payload tail past the logical length is always zero, so frames compare
// correctly with == and are usable as map keys. The zero value is a data
// frame with standard ID 0 and no payload.
type Frame struct {
	id     ID
	remote bool
	data   Data
}

// NewFrame constructs a data frame from an identifier and 0-8 payload bytes.
func NewFrame(id ID, data []byte) (Frame, error) {
	d, err := NewData(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{id: id, data: d}, nil
}

// MustFrame is like NewFrame but panics if data is longer than 8 bytes.
func MustFrame(id ID, data []byte) Frame {
	f, err := NewFrame(id, data)
	if err != nil {
		panic(err)
	}
	return f
}

// NewRemoteFrame constructs an RTR frame requesting a data frame of the given
// length. RTR frames carry no payload bytes, only the length.
func NewRemoteFrame(id ID, length uint8) (Frame, error) {
	if length > MaxDataLen {
		return Frame{}, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	return Frame{id: id, remote: true, data: Data{length: length}}, nil
}

// ID returns the frame identifier.
func (f Frame) ID() ID { return f.id }

// IsRemote reports whether the frame is a remote transmission request.
func (f Frame) IsRemote() bool { return f.remote }

// IsExtended reports whether the frame uses the extended frame format.
// Always consistent with the ID.
func (f Frame) IsExtended() bool { return f.id.extended }

// Len returns the data length code: the payload length for data frames, the
// requested length for RTR frames.
func (f Frame) Len() int { return f.data.Len() }

// Data returns the frame payload. For RTR frames the payload bytes are all
// zero; only the length is meaningful.
func (f Frame) Data() Data { return f.data }

// RawID returns the identifier word in the kernel representation, with the
// EFF and RTR flag bits folded in.
func (f Frame) RawID() uint32 {
	raw := f.id.value
	if f.id.extended {
		raw |= flagExtended
	}
	if f.remote {
		raw |= flagRemote
	}
	return raw
}

// String renders the frame in a candump-like form.
func (f Frame) String() string {
	if f.remote {
		return fmt.Sprintf("%s#R%d", f.id, f.data.length)
	}
	return fmt.Sprintf("%s#%s", f.id, f.data)
}
