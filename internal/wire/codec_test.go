package wire

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/kstaniek/go-can-socket/can"
)

func mkFrame(id uint32, n int) can.Frame {
	if n < 0 {
		n = 0
	}
	if n > 8 {
		n = 8
	}
	payload := make([]byte, n)
	rand.Read(payload)
	return can.MustFrame(can.MustID(id), payload)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := Codec{}
	remote, err := can.NewRemoteFrame(can.MustID(0x7DF), 3)
	if err != nil {
		t.Fatal(err)
	}
	in := []can.Frame{
		mkFrame(0x1E5A, 8),
		mkFrame(0x1F55, 6),
		mkFrame(0x12345, 0),
		mkFrame(0x123, 2),
		remote,
	}

	wire := codec.Encode(in)
	var out []can.Frame
	br := bytes.NewReader(wire)
	n, err := codec.DecodeN(br, 0, func(f can.Frame) { out = append(out, f) })
	if err != io.EOF && err != nil { // expect EOF at clean end
		t.Fatalf("DecodeN unexpected err: %v", err)
	}
	if n != len(in) {
		t.Fatalf("decoded %d, want %d", n, len(in))
	}
	if len(out) != len(in) {
		t.Fatalf("collected %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("frame %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestCodec_EncodeToMatchesEncode(t *testing.T) {
	codec := Codec{}
	frames := []can.Frame{mkFrame(0x10, 8), mkFrame(0x11, 3)}
	a := codec.Encode(frames)
	var buf bytes.Buffer
	if _, err := codec.EncodeTo(&buf, frames); err != nil {
		t.Fatalf("EncodeTo error: %v", err)
	}
	if !bytes.Equal(a, buf.Bytes()) {
		t.Fatalf("Encode vs EncodeTo mismatch\nenc=% X\nencTo=% X", a, buf.Bytes())
	}
}

func TestCodec_RemoteFrameHasNoPayload(t *testing.T) {
	codec := Codec{}
	fr, err := can.NewRemoteFrame(can.MustID(0x100), 8)
	if err != nil {
		t.Fatal(err)
	}
	wire := codec.Encode([]can.Frame{fr})
	// id word + length byte only
	if len(wire) != 5 {
		t.Fatalf("remote frame encoded to %d bytes, want 5 (% X)", len(wire), wire)
	}
	got, err := codec.Decode(bytes.NewReader(wire))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsRemote() || got.Len() != 8 {
		t.Fatalf("decoded %v, want remote DLC 8", got)
	}
}

func TestCodec_HeaderLengthByte(t *testing.T) {
	codec := Codec{}
	for _, n := range []int{0, 1, 8} {
		wire := codec.Encode([]can.Frame{mkFrame(0x123, n)})
		if len(wire) != 5+n {
			t.Fatalf("DLC %d encoded to %d bytes, want %d (% X)", n, len(wire), 5+n, wire)
		}
		if got := wire[4]; got != byte(n) {
			t.Fatalf("DLC %d: length byte %d", n, got)
		}
	}
}

// eagerEOFReader delivers one byte per Read and pairs io.EOF with the final
// byte instead of a separate zero-byte call.
type eagerEOFReader struct{ data []byte }

func (r *eagerEOFReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	if len(r.data) == 0 {
		return 1, io.EOF
	}
	return 1, nil
}

// TestCodec_DecodeLengthByteWithEOF ensures a DLC byte delivered together
// with an error is still consumed rather than dropped mid-frame.
func TestCodec_DecodeLengthByteWithEOF(t *testing.T) {
	codec := Codec{}
	want := mkFrame(0x456, 0) // 5 bytes on the wire; EOF arrives with the DLC
	got, err := codec.Decode(&eagerEOFReader{data: codec.Encode([]can.Frame{want})})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("decoded %v, want %v", got, want)
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	codec := Codec{}
	// Invalid length ( >8 )
	var bad bytes.Buffer
	bad.Write([]byte{0x80, 0, 0, 1})
	bad.WriteByte(9)
	if _, err := codec.Decode(&bad); err == nil {
		t.Fatalf("expected error for invalid length")
	}

	// Truncated payload
	var trunc bytes.Buffer
	trunc.Write([]byte{0x80, 0, 0, 2})
	trunc.WriteByte(0x05)        // length 5
	trunc.Write([]byte{1, 2, 3}) // only 3 bytes instead of 5
	if _, err := codec.Decode(&trunc); err == nil {
		t.Fatalf("expected truncated error")
	}

	// Error frame id word
	var erf bytes.Buffer
	erf.Write([]byte{0x20, 0, 0, 1})
	erf.WriteByte(0)
	if _, err := codec.Decode(&erf); err == nil {
		t.Fatalf("expected error frame rejection")
	}
}

// TestDecodeN_MultiFrame verifies DecodeN drains multiple frames from a single buffer.
func TestDecodeN_MultiFrame(t *testing.T) {
	c := Codec{}
	in := []can.Frame{mkFrame(0x10, 8), mkFrame(0x11, 5), mkFrame(0x12, 0)}
	buf := bytes.NewReader(c.Encode(in))
	var out []can.Frame
	n, err := c.DecodeN(buf, 0, func(f can.Frame) { out = append(out, f) })
	if err != io.EOF && err != nil { // EOF expected at clean end
		t.Fatalf("DecodeN err=%v", err)
	}
	if n != len(in) || len(out) != len(in) {
		t.Fatalf("decoded %d collected %d want %d", n, len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("frame %d mismatch", i)
		}
	}
}

func BenchmarkCodec_Encode(b *testing.B) {
	codec := Codec{}
	frames := make([]can.Frame, 64)
	for i := range frames {
		frames[i] = mkFrame(uint32(0x100+i), 8)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = codec.Encode(frames)
	}
}

func BenchmarkCodec_EncodeTo(b *testing.B) {
	codec := Codec{}
	frames := make([]can.Frame, 64)
	for i := range frames {
		frames[i] = mkFrame(uint32(0x200+i), 8)
	}
	var buf bytes.Buffer
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_, _ = codec.EncodeTo(&buf, frames)
	}
}

func BenchmarkCodec_DecodeN(b *testing.B) {
	codec := Codec{}
	frames := make([]can.Frame, 64)
	for i := range frames {
		frames[i] = mkFrame(uint32(0x300+i), 8)
	}
	wire := codec.Encode(frames)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r := bytes.NewReader(wire)
		_, _ = codec.DecodeN(r, 0, func(can.Frame) {})
	}
}
