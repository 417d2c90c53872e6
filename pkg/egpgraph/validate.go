package egpgraph

import (
	"fmt"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
	"github.com/erasmus-gp/egpcore/pkg/egplog"
)

var log = egplog.Logger("egpgraph")

// Verify checks the cheap, always-applicable structural invariants from
// c_graph_abc.py's "Common Rules" against a frozen graph: paired rows (As
// iff Ad, Bs iff Bd; Sd implies Ss and Td; Wd implies Ws and Xd), the
// single-endpoint rule for Fd/Ld/Wd/Ls/Ws, row self-connection, and that
// every connection is permitted by the graph's Kind (spec §4.4.5, §8).
// Gated by egplog's VERIFY level in callers that run it on a hot path; the
// function itself always runs when called directly.
func Verify(f *FrozenCGraph) error {
	has := func(row Row, cls Class) bool { return f.Contains(Key(row, cls)) }

	if has(RowA, ClassDst) != has(RowA, ClassSrc) {
		return fmt.Errorf("egpgraph: As and Ad must both exist or neither: %w", egperr.ErrGraphShape)
	}
	if has(RowB, ClassDst) != has(RowB, ClassSrc) {
		return fmt.Errorf("egpgraph: Bs and Bd must both exist or neither: %w", egperr.ErrGraphShape)
	}
	if has(RowS, ClassDst) && (!has(RowS, ClassSrc) || !has(RowT, ClassDst)) {
		return fmt.Errorf("egpgraph: Sd requires Ss and Td: %w", egperr.ErrGraphShape)
	}
	if has(RowW, ClassDst) && (!has(RowW, ClassSrc) || !has(RowX, ClassDst)) {
		return fmt.Errorf("egpgraph: Wd requires Ws and Xd: %w", egperr.ErrGraphShape)
	}

	for _, singleton := range []Row{RowF, RowL, RowW} {
		if n := f.Len(Key(singleton, ClassDst)); n > 1 {
			return fmt.Errorf("egpgraph: %s must have at most 1 endpoint, has %d: %w", Key(singleton, ClassDst), n, egperr.ErrGraphShape)
		}
	}
	for _, singleton := range []Row{RowL, RowW} {
		if n := f.Len(Key(singleton, ClassSrc)); n > 1 {
			return fmt.Errorf("egpgraph: %s must have at most 1 endpoint, has %d: %w", Key(singleton, ClassSrc), n, egperr.ErrGraphShape)
		}
	}

	if has(RowP, ClassDst) && has(RowO, ClassDst) {
		if f.Len(Key(RowP, ClassDst)) != f.Len(Key(RowO, ClassDst)) {
			return fmt.Errorf("egpgraph: Pd must match Od's interface: %w", egperr.ErrGraphShape)
		}
	}

	for _, key := range f.Keys() {
		col := f.cols[key]
		if col.cls != ClassDst {
			continue
		}
		for i, refs := range col.refs {
			if len(refs) != 1 {
				return fmt.Errorf("egpgraph: destination %s%d has %d references, want 1: %w", col.row, i, len(refs), egperr.ErrGraphShape)
			}
			ref := refs[0]
			if ref.Row == col.row {
				return fmt.Errorf("egpgraph: %s cannot connect to itself's row: %w", col.row, egperr.ErrGraphShape)
			}
			if !CanConnect(f.kind, ref.Row, col.row) {
				return fmt.Errorf("egpgraph: %s cannot connect to %s in a %s graph: %w", ref.Row, col.row, f.kind, egperr.ErrGraphShape)
			}
		}
	}

	if egplog.IsVerifyEnabled() {
		log.WithField("kind", f.kind.String()).Debug("graph passed verify-level checks")
	}
	return nil
}

// Consistency performs the expensive, optional check beyond Verify: that
// every destination endpoint's type is compatible with the source endpoint
// it references (spec §4.4.5, §8), and that the referenced source endpoint
// exists. It returns nil without checking anything unless
// egplog.IsConsistencyEnabled() is true, since a full type-compatibility
// check requires walking the type registry's ancestor closures. It does not
// check that source endpoints' references are mirrored by the destinations
// they name, and does not recompute the graph's hash.
func Consistency(f *FrozenCGraph, compatible TypeCompatible) error {
	if !egplog.IsConsistencyEnabled() {
		return nil
	}
	for _, key := range f.Keys() {
		col := f.cols[key]
		if col.cls != ClassDst {
			continue
		}
		for i, refs := range col.refs {
			ref := refs[0]
			srcCol, ok := f.cols[Key(ref.Row, ClassSrc)]
			if !ok || int(ref.Idx) >= len(srcCol.types) {
				return fmt.Errorf("egpgraph: dangling reference %s%d -> %s%d: %w", col.row, i, ref.Row, ref.Idx, egperr.ErrInvariantViolation)
			}
			srcType := srcCol.types[ref.Idx]
			dstType := col.types[i]
			if !compatible(srcType, dstType) {
				return fmt.Errorf("egpgraph: %s%d (type %d) incompatible with %s%d (type %d): %w",
					ref.Row, ref.Idx, srcType, col.row, i, dstType, egperr.ErrTypeInconsistency)
			}
		}
	}
	return nil
}
