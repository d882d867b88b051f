package slcan

import (
	"bytes"
	"testing"

	"github.com/kstaniek/go-can-socket/can"
)

func f(id uint32, data ...byte) can.Frame {
	return can.MustFrame(can.MustID(id), data)
}

func TestCodec_Encode(t *testing.T) {
	codec := Codec{}
	cases := []struct {
		frame can.Frame
		want  string
	}{
		{f(0x123, 0x01, 0x02), "t12320102\r"},
		{f(0x7FF), "t7FF0\r"},
		{f(0x1ABCDE, 0xDE, 0xAD), "T001ABCDE2DEAD\r"},
	}
	remote, err := can.NewRemoteFrame(can.MustID(0x123), 4)
	if err != nil {
		t.Fatal(err)
	}
	cases = append(cases, struct {
		frame can.Frame
		want  string
	}{remote, "r1234\r"})
	extRemote, err := can.NewRemoteFrame(can.MustID(0x1FFFFFFF), 8)
	if err != nil {
		t.Fatal(err)
	}
	cases = append(cases, struct {
		frame can.Frame
		want  string
	}{extRemote, "R1FFFFFFF8\r"})

	for _, tc := range cases {
		if got := string(codec.Encode(tc.frame)); got != tc.want {
			t.Errorf("Encode(%v) = %q, want %q", tc.frame, got, tc.want)
		}
	}
}

func TestCodec_RoundTrip_Chunked(t *testing.T) {
	codec := Codec{}

	want := []can.Frame{
		f(0x0001E5A, 0x34, 0x7B, 0x70, 0xD7, 0x94, 0x10, 0x0D, 0xF7), // 8B
		f(0x0001F55, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6),             // 6B
		f(0x123, 0x9A, 0xBC),           // standard 2B
		f(0x01ABCDE, 0xDE, 0xAD, 0xBE), // 3B
		f(0x456),                       // DLC=0
	}

	// Build a continuous RX stream, with adapter acks interleaved.
	stream := make([]byte, 0, 512)
	for _, fr := range want {
		stream = append(stream, codec.Encode(fr)...)
		stream = append(stream, 'z', '\r') // transmit confirmation noise
	}

	var buf bytes.Buffer
	got := make([]can.Frame, 0, len(want))

	// Feed in irregular small chunks to stress record alignment & partials.
	chunkSizes := []int{1, 2, 3, 4, 5, 7, 11}
	cs := 0
	for pos := 0; pos < len(stream); {
		n := chunkSizes[cs%len(chunkSizes)]
		cs++
		if pos+n > len(stream) {
			n = len(stream) - pos
		}
		buf.Write(stream[pos : pos+n])
		pos += n

		if err := codec.DecodeStream(&buf, func(fr can.Frame) {
			got = append(got, fr)
		}); err != nil {
			t.Fatalf("DecodeStream error: %v", err)
		}
	}

	if len(got) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d mismatch\n got  %v\n want %v", i, got[i], want[i])
		}
	}
}

func TestCodec_RemoteRoundTrip(t *testing.T) {
	codec := Codec{}
	want, err := can.NewRemoteFrame(can.MustID(0x7DF), 8)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.Write(codec.Encode(want))
	var got []can.Frame
	if err := codec.DecodeStream(&buf, func(fr can.Frame) { got = append(got, fr) }); err != nil {
		t.Fatalf("DecodeStream error: %v", err)
	}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("decoded %v, want [%v]", got, want)
	}
}
