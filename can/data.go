package can

import "fmt"

// MaxDataLen is the maximum payload length of a classical CAN frame.
const MaxDataLen = 8

// Data is a CAN frame payload: up to 8 bytes with a logical length.
// Every byte past the logical length is zero, on every construction path,
// so comparing two Data values with == compares the payload contents.
// The zero value is an empty payload.
type Data struct {
	length uint8
	bytes  [MaxDataLen]byte
}

// NewData copies b into a payload buffer, failing if b is longer than 8
// bytes. The tail past len(b) is zero.
func NewData(b []byte) (Data, error) {
	if len(b) > MaxDataLen {
		return Data{}, &DataTooLongError{Len: len(b)}
	}
	var d Data
	d.length = uint8(len(b))
	copy(d.bytes[:], b)
	return d, nil
}

// MustData is like NewData but panics if b is too long.
func MustData(b []byte) Data {
	d, err := NewData(b)
	if err != nil {
		panic(err)
	}
	return d
}

// Len returns the logical payload length, 0 to 8.
func (d Data) Len() int { return int(d.length) }

// Bytes returns the logical payload. The slice is backed by a copy of the
// receiver and may be retained by the caller.
func (d Data) Bytes() []byte {
	out := make([]byte, d.length)
	copy(out, d.bytes[:d.length])
	return out
}

// Padded returns the payload zero-extended to 8 bytes.
func (d Data) Padded() [MaxDataLen]byte { return d.bytes }

// Exact returns the payload as a slice of exactly size bytes, failing with
// ErrLengthMismatch if size differs from the logical length.
func (d Data) Exact(size int) ([]byte, error) {
	if size != int(d.length) {
		return nil, fmt.Errorf("%w: have %d, requested %d", ErrLengthMismatch, d.length, size)
	}
	return d.Bytes(), nil
}

// EqualBytes reports whether the payload is content-equivalent to b, treating
// the implicit zero padding as comparable content: Data{1,2} equals [1 2],
// [1 2 0] and [1 2 0 0 0 0 0 0]. Slices longer than 8 bytes never match.
func (d Data) EqualBytes(b []byte) bool {
	if len(b) > MaxDataLen {
		return false
	}
	var other [MaxDataLen]byte
	copy(other[:], b)
	return d.bytes == other
}

// String renders the payload as contiguous hex bytes.
func (d Data) String() string {
	return fmt.Sprintf("%X", d.bytes[:d.length])
}
