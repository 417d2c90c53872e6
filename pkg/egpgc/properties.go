// Package egpgc implements the Genetic Code (GGC) record: the
// content-addressed, signed unit that pairs a FrozenCGraph with its
// provenance and behavioural properties (spec §3.3, §4.2).
//
// Grounded on original_source/egppy/egppy/genetic_code/ggc_dict.py (field
// set and verify() invariants) and egpcommon/egpcommon/properties.py
// (PropertiesBD bitfield), rendered as a Go struct with an explicit
// constructor instead of the original's dynamic dict-of-dicts.
package egpgc

import (
	"fmt"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
	"github.com/erasmus-gp/egpcore/pkg/egpgraph"
)

// GCType distinguishes an atomic codon from a composite (multi-codon) GC.
type GCType uint8

const (
	Codon     GCType = 0
	Composite GCType = 1
)

// Properties is the packed behavioural/structural property set carried
// alongside every GeneticCode (spec §3.3): its GCType, the Kind of its
// connection graph, and four independent behavioural flags.
type Properties struct {
	GCType         GCType
	GraphType      egpgraph.Kind
	Constant       bool // output depends only on constant inputs
	Deterministic  bool // same inputs always produce the same outputs
	SideEffects    bool // execution has effects beyond its outputs
	StaticCreation bool // instances may be created at compile/load time
}

const (
	gcTypeBits    = 1
	graphTypeBits = 3

	gcTypeShift    = 0
	graphTypeShift = gcTypeBits

	gcTypeMask    = (1 << gcTypeBits) - 1
	graphTypeMask = (1 << graphTypeBits) - 1

	shiftConstant      = graphTypeShift + graphTypeBits
	shiftDeterministic = shiftConstant + 1
	shiftSideEffects   = shiftDeterministic + 1
	shiftStaticCreate  = shiftSideEffects + 1
)

// Pack encodes p into its bitfield representation (spec §3.3).
func (p Properties) Pack() (uint32, error) {
	if int(p.GraphType) > graphTypeMask {
		return 0, fmt.Errorf("egpgc: graph type %d exceeds %d bits: %w", p.GraphType, graphTypeBits, egperr.ErrOutOfBounds)
	}
	var u uint32
	u |= uint32(p.GCType&gcTypeMask) << gcTypeShift
	u |= uint32(p.GraphType) << graphTypeShift
	if p.Constant {
		u |= 1 << shiftConstant
	}
	if p.Deterministic {
		u |= 1 << shiftDeterministic
	}
	if p.SideEffects {
		u |= 1 << shiftSideEffects
	}
	if p.StaticCreation {
		u |= 1 << shiftStaticCreate
	}
	return u, nil
}

// UnpackProperties decodes a bitfield produced by Properties.Pack.
func UnpackProperties(u uint32) Properties {
	return Properties{
		GCType:         GCType((u >> gcTypeShift) & gcTypeMask),
		GraphType:      egpgraph.Kind((u >> graphTypeShift) & graphTypeMask),
		Constant:       u&(1<<shiftConstant) != 0,
		Deterministic:  u&(1<<shiftDeterministic) != 0,
		SideEffects:    u&(1<<shiftSideEffects) != 0,
		StaticCreation: u&(1<<shiftStaticCreate) != 0,
	}
}

// Valid checks the bitfield's structural validity (spec §3.3): a codon's
// graph type must be PRIMITIVE.
func (p Properties) Valid() error {
	if p.GCType == Codon && p.GraphType != egpgraph.KindPrimitive {
		return fmt.Errorf("egpgc: a codon's graph type must be PRIMITIVE, got %s: %w", p.GraphType, egperr.ErrInvariantViolation)
	}
	return nil
}
