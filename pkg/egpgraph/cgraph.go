package egpgraph

import (
	"fmt"
	"sort"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
)

// CGraph is a mutable Connection Graph (spec §3.2, §4.4). It may be stable
// or unstable, allowing incremental construction. Freezing does not flip a
// flag on a CGraph (spec §9's Freezable protocol is a type-state
// transition, not an in-place one): Freeze takes an independent,
// always-stable snapshot as a *FrozenCGraph, leaving the original CGraph
// free to keep mutating.
type CGraph struct {
	kind   Kind
	ifaces map[string]*Interface
}

// NewCGraph constructs an empty mutable graph of the given kind.
func NewCGraph(kind Kind) *CGraph {
	return &CGraph{kind: kind, ifaces: make(map[string]*Interface)}
}

// Kind returns the graph's structural kind.
func (g *CGraph) Kind() Kind { return g.kind }

// Get returns the interface at key ("Is", "Ad", ...), if it exists.
func (g *CGraph) Get(key string) (*Interface, bool) {
	iface, ok := g.ifaces[key]
	return iface, ok
}

// Set installs iface at key, replacing any existing interface there.
func (g *CGraph) Set(key string, iface *Interface) error {
	g.ifaces[key] = iface
	return nil
}

// Delete removes the interface at key.
func (g *CGraph) Delete(key string) error {
	delete(g.ifaces, key)
	return nil
}

// Keys returns the graph's interface keys, sorted for deterministic iteration.
func (g *CGraph) Keys() []string {
	keys := make([]string, 0, len(g.ifaces))
	for k := range g.ifaces {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Connect directs srcRow[srcIdx] to dstRow[dstIdx], replacing any existing
// connection into the destination endpoint (spec §3.2, §4.4.2). Both
// interfaces must already exist.
func (g *CGraph) Connect(srcRow Row, srcIdx uint8, dstRow Row, dstIdx uint8) error {
	srcIface, ok := g.Get(Key(srcRow, ClassSrc))
	if !ok {
		return fmt.Errorf("egpgraph: no source interface %s: %w", Key(srcRow, ClassSrc), egperr.ErrNotFound)
	}
	dstIface, ok := g.Get(Key(dstRow, ClassDst))
	if !ok {
		return fmt.Errorf("egpgraph: no destination interface %s: %w", Key(dstRow, ClassDst), egperr.ErrNotFound)
	}
	srcEp, err := srcIface.Get(srcIdx)
	if err != nil {
		return err
	}
	dstEp, err := dstIface.Get(dstIdx)
	if err != nil {
		return err
	}
	if !CanConnect(g.kind, srcRow, dstRow) {
		return fmt.Errorf("egpgraph: %s cannot connect to %s in a %s graph: %w", srcRow, dstRow, g.kind, egperr.ErrGraphShape)
	}

	// Replace any existing connection into dstEp.
	if old, ok := dstEp.singleRef(); ok {
		if oldIface, ok := g.Get(Key(old.Row, ClassSrc)); ok {
			if oldEp, err := oldIface.Get(old.Idx); err == nil {
				oldEp.removeRef(EndpointRef{Row: dstRow, Idx: dstIdx})
			}
		}
	}
	dstEp.Refs = []EndpointRef{{Row: srcRow, Idx: srcIdx}}
	srcEp.addRef(EndpointRef{Row: dstRow, Idx: dstIdx})
	return nil
}

// IsStable reports whether every destination endpoint in the graph has
// exactly one reference (spec §3.2).
func (g *CGraph) IsStable() bool {
	for _, iface := range g.ifaces {
		if iface.Cls != ClassDst {
			continue
		}
		if len(iface.Unconnected()) > 0 {
			return false
		}
	}
	return true
}

// TypeCompatible decides whether a source endpoint's type may feed a
// destination endpoint's type. Callers inject this (typically backed by
// egptype.Registry.Ancestors, since "compatible" means "is-a" along the
// type hierarchy) rather than egpgraph depending on egptype directly.
type TypeCompatible func(srcType, dstType int32) bool

// ExactTypeMatch is the trivial TypeCompatible: the two UIDs must be equal.
func ExactTypeMatch(srcType, dstType int32) bool { return srcType == dstType }

// ConnectAll connects every unconnected destination endpoint to a randomly
// chosen, row- and type-compatible source endpoint (spec §4.4.3). If
// ifLocked is true, the I (input) source interface is never extended with
// new endpoints to supply an otherwise-unmatchable destination; if false,
// a new Is endpoint of the needed type may be appended, but only where I is
// a valid source row for the destination's row. pick selects among multiple
// compatible candidates (inject a seeded RNG for determinism; pick(n) must
// return a value in [0, n)).
//
// ConnectAll never fails because stabilisation is impossible (spec §7): a
// destination endpoint with no compatible source — whether because
// ifLocked forbids extending Is, or because I isn't a valid source for its
// row, or because the graph (e.g. EMPTY) simply has no sources at all — is
// left unconnected rather than raising an error.
func (g *CGraph) ConnectAll(ifLocked bool, compatible TypeCompatible, pick func(n int) int) error {
	if compatible == nil {
		compatible = ExactTypeMatch
	}

	for _, dstKey := range g.Keys() {
		dstIface, ok := g.Get(dstKey)
		if !ok || dstIface.Cls != ClassDst {
			continue
		}
		for _, dstIdx := range dstIface.Unconnected() {
			dstEp, err := dstIface.Get(dstIdx)
			if err != nil {
				return err
			}
			g.connectOne(dstEp, ifLocked, compatible, pick)
		}
	}
	return nil
}

func (g *CGraph) connectOne(dstEp *Endpoint, ifLocked bool, compatible TypeCompatible, pick func(int) int) {
	candidates := make([]*Endpoint, 0, 4)
	for _, srcRow := range ValidSrcRows(g.kind, dstEp.Row) {
		srcIface, ok := g.Get(Key(srcRow, ClassSrc))
		if !ok {
			continue
		}
		for _, srcEp := range srcIface.Endpoints() {
			if compatible(srcEp.Type, dstEp.Type) {
				candidates = append(candidates, srcEp)
			}
		}
	}

	if len(candidates) == 0 {
		if ifLocked || !CanConnect(g.kind, RowI, dstEp.Row) {
			return
		}
		isIface, ok := g.Get(Key(RowI, ClassSrc))
		if !ok {
			return
		}
		idx, err := isIface.Append(dstEp.Type)
		if err != nil {
			return
		}
		srcEp, err := isIface.Get(idx)
		if err != nil {
			return
		}
		candidates = append(candidates, srcEp)
	}

	chosen := candidates[0]
	if len(candidates) > 1 && pick != nil {
		chosen = candidates[pick(len(candidates))]
	}
	// CanConnect has already been verified for every candidate (either via
	// ValidSrcRows above, or the RowI check just above), so Connect cannot
	// fail here; any error is swallowed under the same never-raises
	// guarantee.
	_ = g.Connect(chosen.Row, chosen.Idx, dstEp.Row, dstEp.Idx)
}

// Stabilize connects every remaining unconnected destination endpoint,
// using a deterministic first-candidate choice (spec §4.4.3's connect_all
// with a fixed, not random, selection — suitable for tests and for callers
// that don't need ConnectAll's randomised distribution).
func (g *CGraph) Stabilize(ifLocked bool, compatible TypeCompatible) error {
	return g.ConnectAll(ifLocked, compatible, nil)
}
