package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kstaniek/go-can-socket/can"
	"github.com/kstaniek/go-can-socket/internal/metrics"
)

// Codec encodes/decodes bridge frames. Stateless and safe for concurrent use.
//
// A frame on the wire is: 4-byte big-endian id word (flags in the upper
// bits, as in RawID), 1-byte DLC, then DLC payload bytes. Remote frames
// carry the DLC but no payload.
type Codec struct{}

// ErrInvalidLength is returned when a frame length (DLC) is outside 0..8.
var ErrInvalidLength = errors.New("wire: invalid length")

// ErrTruncatedFrame is returned when the underlying reader ends mid-frame.
var ErrTruncatedFrame = errors.New("wire: truncated frame")

// rtrFlag is CAN_RTR_FLAG, the remote bit of the id word (see can.Frame.RawID).
const rtrFlag = 0x40000000

// Encode packs frames into a single wire packet.
func (c *Codec) Encode(frames []can.Frame) []byte {
	if len(frames) == 0 {
		return nil
	}
	var buf bytes.Buffer
	// Pre-size: worst case per frame = 4(id)+1(len)+8(data)
	buf.Grow(len(frames) * (4 + 1 + 8))
	_, _ = c.EncodeTo(&buf, frames)
	return buf.Bytes()
}

// EncodeTo writes the wire representation of frames to w and returns bytes written.
func (c *Codec) EncodeTo(w io.Writer, frames []can.Frame) (int, error) {
	var total int
	for _, f := range frames {
		var hdr [5]byte
		binary.BigEndian.PutUint32(hdr[:4], f.RawID())
		hdr[4] = byte(f.Len())
		n, err := w.Write(hdr[:])
		total += n
		if err != nil {
			return total, fmt.Errorf("wire encode header: %w", err)
		}
		if f.IsRemote() || f.Len() == 0 {
			continue
		}
		d := f.Data().Padded()
		n, err = w.Write(d[:f.Len()])
		total += n
		if err != nil {
			return total, fmt.Errorf("wire encode data: %w", err)
		}
	}
	return total, nil
}

// Decode reads exactly one frame from r.
// It returns io.EOF if called at a clean frame boundary and no more data is available.
func (c *Codec) Decode(r io.Reader) (can.Frame, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:4]); err != nil {
		return can.Frame{}, err
	}
	raw := binary.BigEndian.Uint32(hdr[:4])
	// Keep the DLC byte even when the read pairs it with an error; the
	// error resurfaces on the next call.
	n, err := r.Read(hdr[4:5])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return can.Frame{}, err
	}
	dlc := hdr[4]
	if dlc > can.MaxDataLen {
		metrics.IncMalformed()
		return can.Frame{}, fmt.Errorf("wire decode: %w (%d)", ErrInvalidLength, dlc)
	}
	var payload [can.MaxDataLen]byte
	if remote := raw&rtrFlag != 0; !remote && dlc > 0 {
		if _, err := io.ReadFull(r, payload[:dlc]); err != nil {
			metrics.IncMalformed()
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return can.Frame{}, fmt.Errorf("wire decode payload: %w", ErrTruncatedFrame)
			}
			return can.Frame{}, fmt.Errorf("wire decode payload: %w", err)
		}
	}
	frame, err := can.FrameFromRaw(raw, dlc, payload[:])
	if err != nil {
		metrics.IncMalformed()
		return can.Frame{}, fmt.Errorf("wire decode: %w", err)
	}
	return frame, nil
}

// DecodeN decodes up to max frames (if max>0) or until EOF (if max<=0) invoking onFrame for each.
// It returns the number of frames decoded and the terminal error (which can be io.EOF).
func (c *Codec) DecodeN(r io.Reader, max int, onFrame func(can.Frame)) (int, error) {
	var n int
	for max <= 0 || n < max {
		fr, err := c.Decode(r)
		if err != nil {
			return n, err
		}
		onFrame(fr)
		n++
	}
	return n, nil
}
