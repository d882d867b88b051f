package slcan

import (
	"bytes"
	"errors"

	"github.com/kstaniek/go-can-socket/can"
	"github.com/kstaniek/go-can-socket/internal/metrics"
)

var errBadHex = errors.New("slcan: bad hex digit")

// Codec translates between can.Frame and the Lawicel slcan ASCII protocol
// spoken by serial CAN adapters.
//
// Record formats (each terminated by CR):
//
//	tIIIL<data>   standard data frame, 3 hex id digits, 1 hex DLC digit
//	TIIIIIIIIL<data>  extended data frame, 8 hex id digits
//	rIIIL         standard remote frame
//	RIIIIIIIIL    extended remote frame
//
// Data is 2 uppercase hex digits per payload byte.
type Codec struct{}

const hexDigits = "0123456789ABCDEF"

// CompactBuffer reclaims consumed prefix capacity when underlying buffer
// grows too large relative to unread bytes. It returns true if compaction
// occurred. Thresholds chosen to avoid excessive copying.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	// If buffer size < 1KB, skip.
	if len(data) < 1024 {
		return false
	}
	// If unread < 25% of capacity, compact.
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

func appendHex(dst []byte, v uint32, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, hexDigits[(v>>(uint(i)*4))&0xF])
	}
	return dst
}

// Encode renders one frame as an slcan transmit record.
func (Codec) Encode(f can.Frame) []byte {
	var kind byte
	idWidth := 3
	if f.IsExtended() {
		idWidth = 8
		kind = 'T'
		if f.IsRemote() {
			kind = 'R'
		}
	} else {
		kind = 't'
		if f.IsRemote() {
			kind = 'r'
		}
	}
	rec := make([]byte, 0, 1+idWidth+1+2*can.MaxDataLen+1)
	rec = append(rec, kind)
	rec = appendHex(rec, f.ID().Value(), idWidth)
	rec = append(rec, hexDigits[f.Len()])
	if !f.IsRemote() {
		for _, b := range f.Data().Bytes() {
			rec = appendHex(rec, uint32(b), 2)
		}
	}
	return append(rec, '\r')
}

func hexVal(b byte) (uint32, bool) {
	switch {
	case b >= '0' && b <= '9':
		return uint32(b - '0'), true
	case b >= 'A' && b <= 'F':
		return uint32(b-'A') + 10, true
	case b >= 'a' && b <= 'f':
		return uint32(b-'a') + 10, true
	}
	return 0, false
}

func parseHex(b []byte) (uint32, bool) {
	var v uint32
	for _, c := range b {
		d, ok := hexVal(c)
		if !ok {
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}

func recordStart(b byte) bool {
	return b == 't' || b == 'T' || b == 'r' || b == 'R'
}

// DecodeStream consumes complete records from in and emits frames via out.
// Adapter status bytes (CR acks, BEL errors, z/Z transmit confirmations) are
// skipped; malformed records are counted and resynced past.
func (Codec) DecodeStream(in *bytes.Buffer, out func(can.Frame)) error {
	for {
		_ = CompactBuffer(in)
		data := in.Bytes()
		if len(data) == 0 {
			return nil
		}

		// align to a record start byte
		i := 0
		for i < len(data) && !recordStart(data[i]) {
			i++
		}
		if i > 0 {
			in.Next(i)
			continue
		}

		kind := data[0]
		extended := kind == 'T' || kind == 'R'
		remote := kind == 'r' || kind == 'R'
		idWidth := 3
		if extended {
			idWidth = 8
		}

		// need kind + id + dlc before the record length is known
		if len(data) < 1+idWidth+1 {
			return nil
		}
		idVal, idOK := parseHex(data[1 : 1+idWidth])
		dlc, dlcOK := hexVal(data[1+idWidth])
		if !idOK || !dlcOK || dlc > can.MaxDataLen {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}
		payloadLen := 0
		if !remote {
			payloadLen = 2 * int(dlc)
		}
		total := 1 + idWidth + 1 + payloadLen + 1
		if len(data) < total {
			return nil
		}
		if data[total-1] != '\r' {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		frame, err := buildFrame(extended, remote, idVal, uint8(dlc), data[1+idWidth+1:total-1])
		if err != nil {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}
		out(frame)
		metrics.IncSlcanRx()
		in.Next(total)
	}
}

func buildFrame(extended, remote bool, idVal uint32, dlc uint8, hexPayload []byte) (can.Frame, error) {
	var id can.ID
	if extended {
		eid, err := can.NewExtendedID(idVal)
		if err != nil {
			return can.Frame{}, err
		}
		id = eid.ID()
	} else {
		sid, err := can.NewStandardID(uint16(idVal))
		if err != nil {
			return can.Frame{}, err
		}
		id = sid.ID()
	}
	if remote {
		return can.NewRemoteFrame(id, dlc)
	}
	payload := make([]byte, dlc)
	for i := range payload {
		v, ok := parseHex(hexPayload[2*i : 2*i+2])
		if !ok {
			return can.Frame{}, errBadHex
		}
		payload[i] = byte(v)
	}
	return can.NewFrame(id, payload)
}
