package egpgraph

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
)

// FrozenCGraph is an immutable, always-stable Connection Graph (spec §3.2,
// §4.4.4). Endpoint data is stored column-oriented (parallel slices per
// interface rather than one struct per endpoint) to keep a frozen graph's
// memory footprint compact, since a genetic code's graph is read far more
// often than it is constructed.
type FrozenCGraph struct {
	kind Kind
	keys []string // sorted interface keys, fixed at construction
	cols map[string]column
	hash [32]byte
}

type column struct {
	row   Row
	cls   Class
	types []int32
	// refs[i] is endpoint i's reference list: for a destination endpoint,
	// exactly one EndpointRef; for a source endpoint, zero or more.
	refs [][]EndpointRef
}

// Frozen satisfies egpdedup.Freezable: a FrozenCGraph is always frozen.
func (f *FrozenCGraph) Frozen() bool { return f != nil }

// Freeze converts a stable mutable CGraph into a FrozenCGraph. Returns
// egperr.ErrGraphShape if cg is not stable.
func Freeze(cg *CGraph) (*FrozenCGraph, error) {
	if !cg.IsStable() {
		return nil, fmt.Errorf("egpgraph: cannot freeze an unstable graph: %w", egperr.ErrGraphShape)
	}

	f := &FrozenCGraph{kind: cg.kind, cols: make(map[string]column, len(cg.ifaces))}
	for key, iface := range cg.ifaces {
		col := column{row: iface.Row, cls: iface.Cls}
		for _, ep := range iface.Endpoints() {
			col.types = append(col.types, ep.Type)
			col.refs = append(col.refs, append([]EndpointRef(nil), ep.Refs...))
		}
		f.cols[key] = col
		f.keys = append(f.keys, key)
	}
	sort.Strings(f.keys)
	f.hash = f.computeHash()
	return f, nil
}

// Kind returns the graph's structural kind.
func (f *FrozenCGraph) Kind() Kind { return f.kind }

// Keys returns the graph's interface keys in a fixed, sorted order.
func (f *FrozenCGraph) Keys() []string { return append([]string(nil), f.keys...) }

// Contains reports whether key names an interface present in the graph.
func (f *FrozenCGraph) Contains(key string) bool {
	_, ok := f.cols[key]
	return ok
}

// Len returns the number of endpoints in the interface at key, or -1 if key
// is absent.
func (f *FrozenCGraph) Len(key string) int {
	col, ok := f.cols[key]
	if !ok {
		return -1
	}
	return len(col.types)
}

// Endpoint returns endpoint idx of the interface at key.
func (f *FrozenCGraph) Endpoint(key string, idx uint8) (*Endpoint, error) {
	col, ok := f.cols[key]
	if !ok {
		return nil, fmt.Errorf("egpgraph: no interface %s: %w", key, egperr.ErrNotFound)
	}
	if int(idx) >= len(col.types) {
		return nil, fmt.Errorf("egpgraph: index %d out of range: %w", idx, egperr.ErrIndexOutOfRange)
	}
	return &Endpoint{
		Row:  col.row,
		Idx:  idx,
		Cls:  col.cls,
		Type: col.types[idx],
		Refs: append([]EndpointRef(nil), col.refs[idx]...),
	}, nil
}

// Hash returns the graph's precomputed content hash, stable for the life of
// the FrozenCGraph (spec §4.4.4: frozen graphs use a persistent hash rather
// than recomputing on every call).
func (f *FrozenCGraph) Hash() [32]byte { return f.hash }

func (f *FrozenCGraph) computeHash() [32]byte {
	h := sha256.New()
	var buf [8]byte
	for _, key := range f.keys {
		h.Write([]byte(key))
		col := f.cols[key]
		for i, t := range col.types {
			binary.BigEndian.PutUint32(buf[:4], uint32(t))
			h.Write(buf[:4])
			for _, ref := range col.refs[i] {
				h.Write([]byte{byte(ref.Row), ref.Idx})
			}
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// IsStable always returns true: a FrozenCGraph is stable by construction.
func (f *FrozenCGraph) IsStable() bool { return true }
