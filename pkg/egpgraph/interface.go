package egpgraph

import (
	"fmt"
	"sort"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
)

// Interface is an ordered collection of endpoints sharing the same row and
// class (spec §3.2). An interface with zero endpoints still exists and is
// distinct from a non-existent (absent) interface — callers distinguish the
// two by checking CGraph.Get's ok return, not len(iface) == 0.
type Interface struct {
	Row Row
	Cls Class
	eps []*Endpoint
}

// NewInterface constructs an empty interface for row/cls.
func NewInterface(row Row, cls Class) *Interface {
	return &Interface{Row: row, Cls: cls}
}

// Len returns the number of endpoints.
func (i *Interface) Len() int { return len(i.eps) }

// Get returns the endpoint at idx.
func (i *Interface) Get(idx uint8) (*Endpoint, error) {
	if int(idx) >= len(i.eps) {
		return nil, fmt.Errorf("egpgraph: index %d out of range (len %d): %w", idx, len(i.eps), egperr.ErrIndexOutOfRange)
	}
	return i.eps[idx], nil
}

// Append adds a new endpoint of the given type to the end of the interface,
// returning its index. Fails once MaxEndpoints is reached.
func (i *Interface) Append(typeUID int32) (uint8, error) {
	if len(i.eps) >= MaxEndpoints {
		return 0, fmt.Errorf("egpgraph: interface %s already has %d endpoints: %w", Key(i.Row, i.Cls), MaxEndpoints, egperr.ErrOutOfBounds)
	}
	idx := uint8(len(i.eps))
	i.eps = append(i.eps, &Endpoint{Row: i.Row, Idx: idx, Cls: i.Cls, Type: typeUID})
	return idx, nil
}

// Extend appends multiple endpoints of the given types, returning their indices.
func (i *Interface) Extend(typeUIDs []int32) ([]uint8, error) {
	idxs := make([]uint8, 0, len(typeUIDs))
	for _, t := range typeUIDs {
		idx, err := i.Append(t)
		if err != nil {
			return nil, err
		}
		idxs = append(idxs, idx)
	}
	return idxs, nil
}

// Set replaces the endpoint at idx's type, clearing any existing references
// (a type change invalidates prior connections).
func (i *Interface) Set(idx uint8, typeUID int32) error {
	ep, err := i.Get(idx)
	if err != nil {
		return err
	}
	ep.Type = typeUID
	ep.Refs = nil
	return nil
}

// Delete removes the endpoint at idx, shifting subsequent endpoints down and
// renumbering their Idx fields (removal changes the interface's index
// space, so any external references to shifted endpoints must be
// re-resolved by the caller; neither Interface.Delete nor CGraph.Delete
// updates references held by other interfaces).
func (i *Interface) Delete(idx uint8) error {
	if _, err := i.Get(idx); err != nil {
		return err
	}
	i.eps = append(i.eps[:idx], i.eps[idx+1:]...)
	for newIdx := int(idx); newIdx < len(i.eps); newIdx++ {
		i.eps[newIdx].Idx = uint8(newIdx)
	}
	return nil
}

// Concat appends another interface's endpoints (of the same row/class) to
// this one, returning the index each appended endpoint now occupies.
func (i *Interface) Concat(other *Interface) ([]uint8, error) {
	if other.Row != i.Row || other.Cls != i.Cls {
		return nil, fmt.Errorf("egpgraph: cannot concat %s into %s: %w", Key(other.Row, other.Cls), Key(i.Row, i.Cls), egperr.ErrInvariantViolation)
	}
	idxs := make([]uint8, 0, len(other.eps))
	for _, ep := range other.eps {
		idx, err := i.Append(ep.Type)
		if err != nil {
			return nil, err
		}
		idxs = append(idxs, idx)
	}
	return idxs, nil
}

// TypesAndIndices returns the sorted set of distinct type UIDs present among
// the interface's endpoints, plus a parallel-to-endpoints index array where
// indices[n] is the position of endpoint n's type within that sorted set
// (spec §3.2). This is the compact per-interface type signature used to
// compare interfaces for type compatibility without repeating full type UIDs
// per endpoint.
func (i *Interface) TypesAndIndices() (types []int32, indices []byte) {
	seen := make(map[int32]struct{}, len(i.eps))
	for _, ep := range i.eps {
		seen[ep.Type] = struct{}{}
	}
	types = make([]int32, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Slice(types, func(a, b int) bool { return types[a] < types[b] })

	pos := make(map[int32]byte, len(types))
	for n, t := range types {
		pos[t] = byte(n)
	}

	indices = make([]byte, len(i.eps))
	for n, ep := range i.eps {
		indices[n] = pos[ep.Type]
	}
	return types, indices
}

// Endpoints returns the interface's endpoints in order.
func (i *Interface) Endpoints() []*Endpoint { return i.eps }

// Unconnected returns the indices of endpoints with no reference. For a
// destination interface these are the endpoints with no source; for a
// source interface, the endpoints that feed no destination.
func (i *Interface) Unconnected() []uint8 {
	var out []uint8
	for _, ep := range i.eps {
		if !ep.Connected() {
			out = append(out, ep.Idx)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
