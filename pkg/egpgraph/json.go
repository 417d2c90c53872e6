package egpgraph

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
)

// EndpointJSON is one entry of a destination interface's JSON array: the
// source row it is fed from, the source endpoint's index, and the
// endpoint's type name (spec §4.4.6, §6.5). It marshals as a 3-element
// JSON array, not an object, matching json_cgraph.py's wire format.
type EndpointJSON struct {
	SrcRow string
	SrcIdx int
	Type   string
}

func (e EndpointJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{e.SrcRow, e.SrcIdx, e.Type})
}

func (e *EndpointJSON) UnmarshalJSON(data []byte) error {
	var arr [3]json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("egpgraph: decoding endpoint triple: %w", err)
	}
	if err := json.Unmarshal(arr[0], &e.SrcRow); err != nil {
		return fmt.Errorf("egpgraph: endpoint src_row must be a string: %w", err)
	}
	if err := json.Unmarshal(arr[1], &e.SrcIdx); err != nil {
		return fmt.Errorf("egpgraph: endpoint src_idx must be an int: %w", err)
	}
	if err := json.Unmarshal(arr[2], &e.Type); err != nil {
		return fmt.Errorf("egpgraph: endpoint type must be a string: %w", err)
	}
	return nil
}

// JSONCGraph is the on-the-wire connection graph format (spec §4.4.6,
// §6.5): destination row -> ordered list of source references. It
// represents only stable graphs; the row character alone in each key
// implies the destination class, and the presence/absence of rows lets
// Classify infer the graph's Kind without an explicit "kind" field.
type JSONCGraph map[string][]EndpointJSON

// TypeResolver maps a type name to its registry UID (spec §3.1); callers
// typically back this with egptype.Registry.Get.
type TypeResolver func(name string) (int32, error)

// TypeNamer maps a type UID back to its name, the inverse of TypeResolver.
type TypeNamer func(uid int32) (string, error)

// ToInterfaces converts a JSONCGraph into the set of named interfaces
// needed to build a CGraph (spec §4.4.6), porting
// json_cgraph_to_interfaces: destination interfaces come directly from the
// JSON; source interfaces and their endpoints are reconstructed from the
// destination endpoints' references, deduplicating by (src_row, src_idx)
// and checking type consistency across every reference into the same
// source endpoint.
func ToInterfaces(jcg JSONCGraph, resolve TypeResolver) (map[string]*Interface, error) {
	dstIfaces := make(map[string]*Interface, len(jcg))
	srcEps := make(map[Row]map[int]*Endpoint)

	for dstRowStr, entries := range jcg {
		if len(dstRowStr) != 1 {
			return nil, fmt.Errorf("egpgraph: invalid destination row key %q: %w", dstRowStr, egperr.ErrGraphShape)
		}
		dstRow := Row(dstRowStr[0])
		dstIface := NewInterface(dstRow, ClassDst)

		for i, entry := range entries {
			if entry.SrcIdx < 0 || entry.SrcIdx > MaxEndpoints {
				return nil, fmt.Errorf("egpgraph: src_idx %d out of range: %w", entry.SrcIdx, egperr.ErrIndexOutOfRange)
			}
			typeUID, err := resolve(entry.Type)
			if err != nil {
				return nil, fmt.Errorf("egpgraph: type %q: %w", entry.Type, err)
			}
			if len(entry.SrcRow) != 1 {
				return nil, fmt.Errorf("egpgraph: invalid source row %q: %w", entry.SrcRow, egperr.ErrGraphShape)
			}
			srcRow := Row(entry.SrcRow[0])

			dstEp := &Endpoint{Row: dstRow, Idx: uint8(i), Cls: ClassDst, Type: typeUID,
				Refs: []EndpointRef{{Row: srcRow, Idx: uint8(entry.SrcIdx)}}}
			dstIface.eps = append(dstIface.eps, dstEp)

			if srcEps[srcRow] == nil {
				srcEps[srcRow] = make(map[int]*Endpoint)
			}
			if existing, ok := srcEps[srcRow][entry.SrcIdx]; ok {
				if existing.Type != typeUID {
					return nil, fmt.Errorf("egpgraph: type inconsistency for source %s%d: %w", srcRow, entry.SrcIdx, egperr.ErrTypeInconsistency)
				}
				existing.addRef(EndpointRef{Row: dstRow, Idx: uint8(i)})
			} else {
				srcEps[srcRow][entry.SrcIdx] = &Endpoint{Row: srcRow, Idx: uint8(entry.SrcIdx), Cls: ClassSrc, Type: typeUID,
					Refs: []EndpointRef{{Row: dstRow, Idx: uint8(i)}}}
			}
		}
		dstIfaces[Key(dstRow, ClassDst)] = dstIface
	}

	out := make(map[string]*Interface, len(dstIfaces)+len(srcEps))
	for k, v := range dstIfaces {
		out[k] = v
	}
	for srcRow, byIdx := range srcEps {
		iface := NewInterface(srcRow, ClassSrc)
		idxs := make([]int, 0, len(byIdx))
		for idx := range byIdx {
			idxs = append(idxs, idx)
		}
		sort.Ints(idxs)
		for _, idx := range idxs {
			iface.eps = append(iface.eps, byIdx[idx])
		}
		out[Key(srcRow, ClassSrc)] = iface
	}

	fillImpliedInterfaces(out)
	return out, nil
}

// fillImpliedInterfaces adds the zero-endpoint interfaces whose existence
// is implied by the rules in c_graph_abc.py but which carry no endpoints of
// their own in this particular graph (e.g. Is always exists; Ad exists iff
// As does, and vice versa).
func fillImpliedInterfaces(ifaces map[string]*Interface) {
	ensure := func(row Row, cls Class) {
		key := Key(row, cls)
		if _, ok := ifaces[key]; !ok {
			ifaces[key] = NewInterface(row, cls)
		}
	}
	ensure(RowI, ClassSrc)
	_, hasAd := ifaces[Key(RowA, ClassDst)]
	_, hasAs := ifaces[Key(RowA, ClassSrc)]
	if hasAd || hasAs {
		ensure(RowA, ClassDst)
		ensure(RowA, ClassSrc)
	}
	_, hasBd := ifaces[Key(RowB, ClassDst)]
	_, hasBs := ifaces[Key(RowB, ClassSrc)]
	if hasBd || hasBs {
		ensure(RowB, ClassDst)
		ensure(RowB, ClassSrc)
	}
	ensure(RowO, ClassDst)
	_, hasF := ifaces[Key(RowF, ClassDst)]
	_, hasL := ifaces[Key(RowL, ClassDst)]
	_, hasS := ifaces[Key(RowS, ClassDst)]
	_, hasW := ifaces[Key(RowW, ClassDst)]
	if _, hasP := ifaces[Key(RowP, ClassDst)]; !hasP && (hasF || hasL || hasS || hasW) {
		ensure(RowP, ClassDst)
	}
}

// ToJSON converts a frozen, stable graph back into JSONCGraph form (spec
// §4.4.6), adding a synthetic "U" destination row for every source endpoint
// that has no destination reference of its own (json_cgraph.py: "Ud only
// exists in JSON Connection Graph representations and only if there are
// unconnected source endpoints").
func ToJSON(f *FrozenCGraph, name TypeNamer) (JSONCGraph, error) {
	out := make(JSONCGraph)
	var unconnectedSources []EndpointJSON

	for _, key := range f.Keys() {
		col := f.cols[key]
		if col.cls == ClassSrc {
			for i := range col.types {
				if len(col.refs[i]) == 0 {
					typeName, err := name(col.types[i])
					if err != nil {
						return nil, err
					}
					unconnectedSources = append(unconnectedSources, EndpointJSON{
						SrcRow: string(col.row), SrcIdx: i, Type: typeName,
					})
				}
			}
			continue
		}

		entries := make([]EndpointJSON, len(col.types))
		for i, t := range col.types {
			if len(col.refs[i]) != 1 {
				return nil, fmt.Errorf("egpgraph: destination endpoint %s%d is not stable: %w", col.row, i, egperr.ErrGraphShape)
			}
			ref := col.refs[i][0]
			typeName, err := name(t)
			if err != nil {
				return nil, err
			}
			entries[i] = EndpointJSON{SrcRow: string(ref.Row), SrcIdx: int(ref.Idx), Type: typeName}
		}
		out[string(col.row)] = entries
	}

	if len(unconnectedSources) > 0 {
		out[string(RowU)] = unconnectedSources
	}
	return out, nil
}
