package can

import (
	"fmt"
	"strconv"
)

// Identifier range limits.
const (
	// MaxStandardID is the highest valid standard (11-bit) CAN ID.
	MaxStandardID StandardID = 0x7FF
	// MaxExtendedID is the highest valid extended (29-bit) CAN ID.
	MaxExtendedID ExtendedID = 0x1FFFFFFF
)

// StandardID is an 11-bit CAN identifier.
//
// The type is an unsigned integer, so a negative literal is rejected by the
// compiler. Values produced by NewStandardID or MustStandardID are always in
// range; direct conversions should be validated with Validate.
type StandardID uint16

// ExtendedID is a 29-bit CAN identifier.
//
// The type is an unsigned integer, so a negative literal is rejected by the
// compiler. Values produced by NewExtendedID or MustExtendedID are always in
// range; direct conversions should be validated with Validate.
type ExtendedID uint32

// NewStandardID returns a standard CAN ID, failing if v exceeds 0x7FF.
func NewStandardID(v uint16) (StandardID, error) {
	if v > uint16(MaxStandardID) {
		return 0, &InvalidIDError{ID: uint32(v)}
	}
	return StandardID(v), nil
}

// MustStandardID is like NewStandardID but panics on an out-of-range value.
// Intended for identifier literals in variable initialization.
func MustStandardID(v uint16) StandardID {
	id, err := NewStandardID(v)
	if err != nil {
		panic(err)
	}
	return id
}

// Validate returns an error if the value is outside the 11-bit range.
func (id StandardID) Validate() error {
	if id > MaxStandardID {
		return &InvalidIDError{ID: uint32(id)}
	}
	return nil
}

// ID widens the standard ID into the union type.
func (id StandardID) ID() ID { return ID{value: uint32(id)} }

func (id StandardID) String() string { return fmt.Sprintf("0x%03X", uint16(id)) }

// NewExtendedID returns an extended CAN ID, failing if v exceeds 0x1FFFFFFF.
func NewExtendedID(v uint32) (ExtendedID, error) {
	if v > uint32(MaxExtendedID) {
		return 0, &InvalidIDError{ID: v, Extended: true}
	}
	return ExtendedID(v), nil
}

// MustExtendedID is like NewExtendedID but panics on an out-of-range value.
// Intended for identifier literals in variable initialization.
func MustExtendedID(v uint32) ExtendedID {
	id, err := NewExtendedID(v)
	if err != nil {
		panic(err)
	}
	return id
}

// Validate returns an error if the value is outside the 29-bit range.
func (id ExtendedID) Validate() error {
	if id > MaxExtendedID {
		return &InvalidIDError{ID: uint32(id), Extended: true}
	}
	return nil
}

// ID widens the extended ID into the union type.
func (id ExtendedID) ID() ID { return ID{value: uint32(id), extended: true} }

func (id ExtendedID) String() string { return fmt.Sprintf("0x%08X", uint32(id)) }

// ID is a CAN identifier of either frame format. The frame format is part of
// the identity: standard 0x123 and extended 0x123 are distinct IDs. The zero
// value is the standard ID 0.
//
// The fields are unexported so the format flag can never disagree with the
// value range; construct IDs through NewID, the typed ID methods, or MustID.
type ID struct {
	value    uint32
	extended bool
}

// NewID returns a standard ID when v fits in 11 bits and an extended ID
// otherwise, failing if v exceeds the 29-bit range.
func NewID(v uint32) (ID, error) {
	if v <= uint32(MaxStandardID) {
		return ID{value: v}, nil
	}
	id, err := NewExtendedID(v)
	if err != nil {
		return ID{}, err
	}
	return id.ID(), nil
}

// MustID is like NewID but panics on an out-of-range value.
func MustID(v uint32) ID {
	id, err := NewID(v)
	if err != nil {
		panic(err)
	}
	return id
}

// IsExtended reports whether the ID uses the extended (29-bit) frame format.
func (id ID) IsExtended() bool { return id.extended }

// Value returns the numeric identifier value.
func (id ID) Value() uint32 { return id.value }

// AsStandard returns the standard form of the ID if it is a standard ID.
func (id ID) AsStandard() (StandardID, bool) {
	if id.extended {
		return 0, false
	}
	return StandardID(id.value), true
}

// AsExtended returns the extended form of the ID if it is an extended ID.
func (id ID) AsExtended() (ExtendedID, bool) {
	if !id.extended {
		return 0, false
	}
	return ExtendedID(id.value), true
}

// ToExtended converts the ID to the extended frame format, widening a
// standard value.
func (id ID) ToExtended() ExtendedID { return ExtendedID(id.value) }

// ToStandard converts the ID to the standard frame format, failing if the
// value does not fit in 11 bits.
func (id ID) ToStandard() (StandardID, error) {
	if id.value > uint32(MaxStandardID) {
		return 0, &InvalidIDError{ID: id.value}
	}
	return StandardID(id.value), nil
}

// Compare defines the total order used for sorting and ordering-dependent
// consumers: all standard IDs order before all extended IDs, and within a
// frame format IDs order by numeric value. Returns -1, 0 or 1.
func (id ID) Compare(other ID) int {
	if id.extended != other.extended {
		if other.extended {
			return -1
		}
		return 1
	}
	switch {
	case id.value < other.value:
		return -1
	case id.value > other.value:
		return 1
	}
	return 0
}

func (id ID) String() string {
	if id.extended {
		return ExtendedID(id.value).String()
	}
	return StandardID(id.value).String()
}

// ParseStandardID parses a standard CAN ID from decimal or prefixed
// (0x, 0o, 0b) notation.
func ParseStandardID(s string) (StandardID, error) {
	v, err := parseIDNumber(s)
	if err != nil {
		return 0, err
	}
	if v > uint32(MaxStandardID) {
		return 0, &InvalidIDError{ID: v}
	}
	return StandardID(v), nil
}

// ParseExtendedID parses an extended CAN ID from decimal or prefixed
// (0x, 0o, 0b) notation.
func ParseExtendedID(s string) (ExtendedID, error) {
	v, err := parseIDNumber(s)
	if err != nil {
		return 0, err
	}
	return NewExtendedID(v)
}

// ParseID parses a CAN ID from decimal or prefixed (0x, 0o, 0b) notation,
// selecting the standard frame format when the value fits.
func ParseID(s string) (ID, error) {
	v, err := parseIDNumber(s)
	if err != nil {
		return ID{}, err
	}
	return NewID(v)
}

func parseIDNumber(s string) (uint32, error) {
	// Base 0 accepts 0x/0o/0b prefixes and plain decimal.
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("can: parse ID %q: %w", s, err)
	}
	return uint32(v), nil
}
