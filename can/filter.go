package can

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter is a CAN receive filter: an id/mask pair with an optional inversion,
// using the kernel CAN_RAW filter semantics. A frame matches when its raw id
// word agrees with the filter id on every bit selected by the mask, XOR'd
// with the inversion.
//
// A filter built by NewFilter has a zero mask and matches every frame;
// the Match* methods add restrictions. Each method returns a new filter and
// leaves the receiver unchanged.
//
// Match evaluates the filter purely in user space and yields the identical
// result the kernel produces for the same raw pair, so filtering can be
// reasoned about or simulated without a socket.
type Filter struct {
	id     uint32
	mask   uint32
	invert bool
}

// NewFilter creates a pass-all filter carrying the given ID. The mask is
// zero; restrict what matches with the Match* methods.
func NewFilter(id ID) Filter {
	raw := id.value
	if id.extended {
		raw |= flagExtended
	}
	return Filter{id: raw}
}

// MatchIDValue restricts the filter to frames with the same numeric ID value.
// Standard and extended frames with that value both still match; add
// MatchFrameFormat to distinguish them.
func (f Filter) MatchIDValue() Filter {
	f.mask |= maskExtended
	return f
}

// MatchIDMask restricts the filter to frames where
// frame.id & mask == filter.id & mask. Only the lower 29 bits of mask are
// used.
func (f Filter) MatchIDMask(mask uint32) Filter {
	f.mask |= mask & maskExtended
	return f
}

// MatchFrameFormat restricts the filter to the frame format (standard or
// extended) of the ID it was constructed with.
func (f Filter) MatchFrameFormat() Filter {
	f.mask |= flagExtended
	return f
}

// MatchExactID restricts the filter to exact ID matches, including the frame
// format. Equivalent to MatchIDValue followed by MatchFrameFormat.
func (f Filter) MatchExactID() Filter {
	f.mask |= maskExtended | flagExtended
	return f
}

// MatchRemoteOnly restricts the filter to RTR frames.
func (f Filter) MatchRemoteOnly() Filter {
	f.id |= flagRemote
	f.mask |= flagRemote
	return f
}

// MatchDataOnly restricts the filter to data frames, overriding any earlier
// MatchRemoteOnly.
func (f Filter) MatchDataOnly() Filter {
	f.id &^= flagRemote
	f.mask |= flagRemote
	return f
}

// Inverted makes the filter inverted or non-inverted. An inverted filter
// matches exactly the frames its non-inverted form rejects.
func (f Filter) Inverted(inverted bool) Filter {
	f.invert = inverted
	return f
}

// IsInverted reports whether the filter is inverted.
func (f Filter) IsInverted() bool { return f.invert }

// Match reports whether the frame passes the filter. It is pure: no side
// effects, and the same frame always yields the same result.
func (f Filter) Match(fr Frame) bool {
	matched := fr.RawID()&f.mask == f.id&f.mask
	return matched != f.invert
}

// Raw returns the filter in the kernel can_filter form: the id word (with
// CAN_INV_FILTER folded in when inverted) and the mask.
func (f Filter) Raw() (id, mask uint32) {
	id = f.id
	if f.invert {
		id |= invertFlag
	}
	return id, f.mask
}

// ParseFilter parses a filter spec of the form "[~]id[/mask]".
//
// The id accepts the same notations as ParseID. Without a mask the filter
// requires an exact ID match (value and frame format); with a mask only the
// selected id bits are compared. A leading '~' inverts the filter.
func ParseFilter(s string) (Filter, error) {
	spec := strings.TrimSpace(s)
	invert := false
	if strings.HasPrefix(spec, "~") {
		invert = true
		spec = spec[1:]
	}
	idPart, maskPart, hasMask := strings.Cut(spec, "/")
	id, err := ParseID(idPart)
	if err != nil {
		return Filter{}, fmt.Errorf("can: parse filter %q: %w", s, err)
	}
	f := NewFilter(id)
	if hasMask {
		mask, err := strconv.ParseUint(maskPart, 0, 32)
		if err != nil {
			return Filter{}, fmt.Errorf("can: parse filter mask %q: %w", s, err)
		}
		f = f.MatchIDMask(uint32(mask))
	} else {
		f = f.MatchExactID()
	}
	return f.Inverted(invert), nil
}
