// Package egptype implements the Type System: TypeDef, the packed UID
// bitfield, and the TypeRegistry (spec §3.1, §4.3).
package egptype

import (
	"fmt"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
)

// UID bit layout (spec §3.1). The canonical bit-dict layout from
// original_source/egppy/egppy/c_graph/end_point/types_def/types_def.py is not
// present in the retrieved source (only code+build-config files were kept,
// and the bit_dict config module itself wasn't retrieved); the concrete bit
// widths below are this port's resolution of the spec's description,
// documented in DESIGN.md as an explicit Open-Question decision. They
// satisfy every invariant §3.1 states: tt∈[0,7], io is 1 bit, fx is 3 bits
// present only when io=0, x is 6 bits and y is 4 bits present only when
// io=1, and tt=0 implies every other field is zero/absent. next_xuid's
// documented uint16 return type (§4.3) fixes the flat xuid field at 16
// bits, matching the "(max_existing_xuid & 0xFFFF) + 1" half-space formula
// the spec gives for next_xuid.
const (
	ttBits  = 3
	ioBits  = 1
	fxBits  = 3
	xBits   = 6
	yBits   = 4
	xuidBits = 16

	ttShift   = 20
	ioShift   = 19
	fxShift   = 16
	xuidShift = 0
	xShift    = 10
	yShift    = 6

	ttMask   = (1 << ttBits) - 1
	ioMask   = (1 << ioBits) - 1
	fxMask   = (1 << fxBits) - 1
	xuidMask = (1 << xuidBits) - 1
	xMask    = (1 << xBits) - 1
	yMask    = (1 << yBits) - 1
)

// MaxXUID is the largest value next_xuid can allocate within a single
// template-type half-space before returning egperr.ErrUIDExhausted.
const MaxXUID = xuidMask

// IOForm selects between the UID's two sub-layouts.
type IOForm int

const (
	// FXForm is the output/function-variant form: tt, fx, and a flat xuid.
	FXForm IOForm = 0
	// InputForm is the input-wildcard form: tt, and an (x, y) pair.
	InputForm IOForm = 1
)

// BitfieldUID decomposes a packed 32-bit type UID (spec §3.1).
type BitfieldUID struct {
	TT   uint8  // template arity, 0-7
	IO   IOForm // FXForm or InputForm
	FX   uint8  // function variant, 0-7 (FXForm only)
	XUID uint16 // flat sub-identifier (FXForm only)
	X    uint8  // 0-63 (InputForm only)
	Y    uint8  // 0-15 (InputForm only)
}

// Pack encodes b into a signed 32-bit UID.
func (b BitfieldUID) Pack() (int32, error) {
	if b.TT > ttMask {
		return 0, fmt.Errorf("egptype: tt %d exceeds %d bits: %w", b.TT, ttBits, egperr.ErrOutOfBounds)
	}
	if b.TT == 0 {
		if b.IO != FXForm || b.FX != 0 || b.XUID != 0 || b.X != 0 || b.Y != 0 {
			return 0, fmt.Errorf("egptype: tt=0 requires io/fx/x/y/xuid to be zero: %w", egperr.ErrInvariantViolation)
		}
		return 0, nil
	}

	u := uint32(b.TT&ttMask) << ttShift
	u |= uint32(b.IO&ioMask) << ioShift

	switch b.IO {
	case FXForm:
		if b.FX > fxMask {
			return 0, fmt.Errorf("egptype: fx %d exceeds %d bits: %w", b.FX, fxBits, egperr.ErrOutOfBounds)
		}
		if b.X != 0 || b.Y != 0 {
			return 0, fmt.Errorf("egptype: x/y must be absent in FXForm: %w", egperr.ErrInvariantViolation)
		}
		u |= uint32(b.FX&fxMask) << fxShift
		u |= uint32(b.XUID&xuidMask) << xuidShift
	case InputForm:
		if b.X > xMask {
			return 0, fmt.Errorf("egptype: x %d exceeds %d bits: %w", b.X, xBits, egperr.ErrOutOfBounds)
		}
		if b.Y > yMask {
			return 0, fmt.Errorf("egptype: y %d exceeds %d bits: %w", b.Y, yBits, egperr.ErrOutOfBounds)
		}
		if b.FX != 0 || b.XUID != 0 {
			return 0, fmt.Errorf("egptype: fx/xuid must be absent in InputForm: %w", egperr.ErrInvariantViolation)
		}
		u |= uint32(b.X&xMask) << xShift
		u |= uint32(b.Y&yMask) << yShift
	default:
		return 0, fmt.Errorf("egptype: invalid io form %d: %w", b.IO, egperr.ErrOutOfBounds)
	}

	return int32(u), nil
}

// Unpack decomposes a signed 32-bit UID into its bitfield. uid must be in
// [-2^31, 2^31-1], which is automatically true for any int32.
func Unpack(uid int32) BitfieldUID {
	u := uint32(uid)
	tt := uint8((u >> ttShift) & ttMask)
	if tt == 0 {
		return BitfieldUID{}
	}
	io := IOForm((u >> ioShift) & ioMask)
	b := BitfieldUID{TT: tt, IO: io}
	switch io {
	case FXForm:
		b.FX = uint8((u >> fxShift) & fxMask)
		b.XUID = uint16((u >> xuidShift) & xuidMask)
	case InputForm:
		b.X = uint8((u >> xShift) & xMask)
		b.Y = uint8((u >> yShift) & yMask)
	}
	return b
}
