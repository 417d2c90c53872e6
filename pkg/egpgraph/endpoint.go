package egpgraph

import "fmt"

// EndpointRef points at one endpoint of the opposite class: a destination
// endpoint's ref points at the single source endpoint feeding it, and a
// source endpoint's refs list every destination endpoint it feeds (spec
// §3.2). References are always held in both directions so reference
// consistency can be verified cheaply (c_graph_abc.py's "References must be
// consistent" rule).
type EndpointRef struct {
	Row Row
	Idx uint8
}

func (r EndpointRef) String() string { return fmt.Sprintf("%s%d", string(r.Row), r.Idx) }

// Endpoint is one element of an Interface (spec §3.2).
type Endpoint struct {
	Row  Row
	Idx  uint8
	Cls  Class
	Type int32 // egptype.TypeDef UID
	Refs []EndpointRef
}

// Key returns the endpoint's owning interface key, e.g. "Ad".
func (e *Endpoint) Key() string { return Key(e.Row, e.Cls) }

// Connected reports whether the endpoint has at least one reference. A
// destination endpoint is stable only when Connected is true; a source
// endpoint may have zero, one, or many references.
func (e *Endpoint) Connected() bool { return len(e.Refs) > 0 }

// singleRef returns the destination endpoint's sole source reference. Only
// meaningful for Cls == ClassDst; destination endpoints have exactly one
// reference once stable (spec §3.2: "Destination endpoints must have 1 and
// only 1 connection to it to be stable").
func (e *Endpoint) singleRef() (EndpointRef, bool) {
	if len(e.Refs) == 0 {
		return EndpointRef{}, false
	}
	return e.Refs[0], true
}

// addRef appends ref unless an identical reference is already present. It
// does not check the endpoint's class; callers use it on source endpoints
// only, and CGraph.Connect sets a destination's single reference directly.
func (e *Endpoint) addRef(ref EndpointRef) {
	for _, existing := range e.Refs {
		if existing == ref {
			return
		}
	}
	e.Refs = append(e.Refs, ref)
}

func (e *Endpoint) removeRef(ref EndpointRef) {
	out := e.Refs[:0]
	for _, existing := range e.Refs {
		if existing != ref {
			out = append(out, existing)
		}
	}
	e.Refs = out
}
