package egpgc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
	"github.com/erasmus-gp/egpcore/pkg/egpgraph"
	"github.com/erasmus-gp/egpcore/pkg/egptype"
	"github.com/erasmus-gp/egpcore/pkg/egpsign"
)

// Signature is the 32-byte content-address of a GeneticCode (spec §3.3).
type Signature [32]byte

// EGPEpoch is the earliest permitted "created" timestamp (spec §3.3, ported
// from original_source/egpcommon/egpcommon/common.py's EGP_EPOCH: the
// project's inception date).
var EGPEpoch = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

// GeneticCode is the immutable GGC record (spec §3.3): a connection graph,
// two optional sub-GC references (GCA/GCB), provenance (ancestry, parent
// GC, creator, timestamp), behavioural Properties, and a canonical content
// signature. Constructed only via New; there is no mutable builder phase,
// matching the teacher's preference for validating constructors over
// piecemeal setters (pkg/storage/types.go's NewNode-style functions).
type GeneticCode struct {
	signature Signature
	cgraph    *egpgraph.FrozenCGraph
	properties Properties

	ancestorA Signature
	ancestorB Signature
	gca       *Signature
	gcb       *Signature
	pgc       *Signature

	imports []egptype.ImportDef
	inline  string
	code    string

	created time.Time
	updated time.Time
	creator uuid.UUID

	codeDepth     int32
	generation    int64
	numCodes      int32
	numCodons     int32
	descendants   int32
	lostDescendants int64
	referenceCount  int64
}

// Frozen satisfies egpdedup.Freezable: a GeneticCode is always frozen.
func (g *GeneticCode) Frozen() bool { return g != nil }

// Fields groups GeneticCode's constructor arguments (spec §3.3); New
// validates every invariant c_graph_abc.py's GGCDict.verify() checks before
// computing the canonical signature.
type Fields struct {
	CGraph     *egpgraph.FrozenCGraph
	Properties Properties

	AncestorA Signature
	AncestorB Signature
	GCA       *Signature
	GCB       *Signature
	PGC       *Signature

	Imports []egptype.ImportDef
	Inline  string
	Code    string

	Created time.Time
	Updated time.Time
	Creator uuid.UUID

	CodeDepth       int32
	Generation      int64
	NumCodes        int32
	NumCodons       int32
	Descendants     int32
	LostDescendants int64
	ReferenceCount  int64
}

// New validates f and constructs a GeneticCode, computing its canonical
// content signature over the field order defined in spec §3.3/§4.2.
func New(f Fields, namer egpgraph.TypeNamer) (*GeneticCode, error) {
	if f.CGraph == nil {
		return nil, fmt.Errorf("egpgc: cgraph is required: %w", egperr.ErrMissingField)
	}
	if err := f.Properties.Valid(); err != nil {
		return nil, err
	}
	if f.Properties.GraphType != f.CGraph.Kind() {
		return nil, fmt.Errorf("egpgc: properties graph type %s does not match cgraph kind %s: %w",
			f.Properties.GraphType, f.CGraph.Kind(), egperr.ErrInvariantViolation)
	}
	if f.Properties.GCType == Codon && f.CGraph.Kind() != egpgraph.KindPrimitive {
		return nil, fmt.Errorf("egpgc: a codon must have a PRIMITIVE graph: %w", egperr.ErrInvariantViolation)
	}

	if f.CodeDepth < 1 {
		return nil, fmt.Errorf("egpgc: code_depth must be >= 1, got %d: %w", f.CodeDepth, egperr.ErrOutOfBounds)
	}
	if f.CodeDepth == 1 && f.GCA != nil {
		return nil, fmt.Errorf("egpgc: a code_depth of 1 is a codon and must have no GCA: %w", egperr.ErrInvariantViolation)
	}
	if f.CodeDepth > 1 && f.GCA == nil {
		return nil, fmt.Errorf("egpgc: a code_depth > 1 requires a GCA: %w", egperr.ErrInvariantViolation)
	}
	if f.Generation == 1 && f.GCA != nil {
		return nil, fmt.Errorf("egpgc: generation 1 is a codon and must have no GCA: %w", egperr.ErrInvariantViolation)
	}
	if f.Generation < 0 {
		return nil, fmt.Errorf("egpgc: generation must be >= 0: %w", egperr.ErrOutOfBounds)
	}
	if f.NumCodes < f.CodeDepth {
		return nil, fmt.Errorf("egpgc: num_codes must be >= code_depth: %w", egperr.ErrInvariantViolation)
	}
	if f.NumCodons < 0 {
		return nil, fmt.Errorf("egpgc: num_codons must be >= 0: %w", egperr.ErrOutOfBounds)
	}
	if f.Descendants < 0 {
		return nil, fmt.Errorf("egpgc: descendants must be >= 0: %w", egperr.ErrOutOfBounds)
	}
	if f.LostDescendants < 0 || f.LostDescendants > int64(f.Descendants) {
		return nil, fmt.Errorf("egpgc: 0 <= lost_descendants <= descendants required: %w", egperr.ErrOutOfBounds)
	}
	if f.ReferenceCount < 0 {
		return nil, fmt.Errorf("egpgc: reference_count must be >= 0: %w", egperr.ErrOutOfBounds)
	}
	if f.LostDescendants > f.ReferenceCount {
		return nil, fmt.Errorf("egpgc: lost_descendants must be <= reference_count: %w", egperr.ErrInvariantViolation)
	}
	if f.Created.After(time.Now().UTC()) {
		return nil, fmt.Errorf("egpgc: created cannot be in the future: %w", egperr.ErrOutOfBounds)
	}
	if f.Created.Before(EGPEpoch) {
		return nil, fmt.Errorf("egpgc: created must be >= %s: %w", EGPEpoch, egperr.ErrOutOfBounds)
	}
	if f.Updated.After(time.Now().UTC()) {
		return nil, fmt.Errorf("egpgc: updated cannot be in the future: %w", egperr.ErrOutOfBounds)
	}
	if f.Updated.Before(EGPEpoch) {
		return nil, fmt.Errorf("egpgc: updated must be >= %s: %w", EGPEpoch, egperr.ErrOutOfBounds)
	}
	if f.Updated.Before(f.Created) {
		return nil, fmt.Errorf("egpgc: updated must be >= created: %w", egperr.ErrInvariantViolation)
	}
	if f.Creator == uuid.Nil {
		return nil, fmt.Errorf("egpgc: creator is required: %w", egperr.ErrMissingField)
	}

	g := &GeneticCode{
		cgraph:     f.CGraph,
		properties: f.Properties,
		ancestorA:  f.AncestorA,
		ancestorB:  f.AncestorB,
		gca:        f.GCA,
		gcb:        f.GCB,
		pgc:        f.PGC,
		imports:    append([]egptype.ImportDef(nil), f.Imports...),
		inline:     f.Inline,
		code:       f.Code,
		created:    f.Created.UTC(),
		updated:    f.Updated.UTC(),
		creator:    f.Creator,
		codeDepth:  f.CodeDepth,
		generation: f.Generation,
		numCodes:   f.NumCodes,
		numCodons:  f.NumCodons,
		descendants: f.Descendants,
		lostDescendants: f.LostDescendants,
		referenceCount:  f.ReferenceCount,
	}

	sig, err := g.computeSignature(namer)
	if err != nil {
		return nil, err
	}
	g.signature = sig
	return g, nil
}

// computeSignature reproduces ggc_dict.py's sha256_signature field order:
// ancestor_a, ancestor_b, gca, gcb, cgraph (as JSON), pgc, imports, inline,
// code, created (unix seconds), creator (UUID bytes).
func (g *GeneticCode) computeSignature(namer egpgraph.TypeNamer) (Signature, error) {
	cgraphJSON, err := egpgraph.ToJSON(g.cgraph, namer)
	if err != nil {
		return Signature{}, fmt.Errorf("egpgc: serialising cgraph for signature: %w", err)
	}
	cgraphBytes, err := json.Marshal(cgraphJSON)
	if err != nil {
		return Signature{}, fmt.Errorf("egpgc: encoding cgraph json: %w", err)
	}
	importsBytes, err := json.Marshal(g.imports)
	if err != nil {
		return Signature{}, fmt.Errorf("egpgc: encoding imports: %w", err)
	}

	var createdBuf [8]byte
	binary.BigEndian.PutUint64(createdBuf[:], uint64(g.created.Unix()))

	creatorBytes, err := g.creator.MarshalBinary()
	if err != nil {
		return Signature{}, fmt.Errorf("egpgc: encoding creator: %w", err)
	}

	return Signature(egpsign.ContentSignature(
		g.ancestorA[:],
		g.ancestorB[:],
		optionalSigBytes(g.gca),
		optionalSigBytes(g.gcb),
		cgraphBytes,
		optionalSigBytes(g.pgc),
		importsBytes,
		[]byte(g.inline),
		[]byte(g.code),
		createdBuf[:],
		creatorBytes,
	)), nil
}

func optionalSigBytes(s *Signature) []byte {
	if s == nil {
		return nil
	}
	return s[:]
}

// Signature returns the GeneticCode's canonical content signature.
func (g *GeneticCode) Signature() Signature { return g.signature }

// CGraph returns the genetic code's frozen connection graph.
func (g *GeneticCode) CGraph() *egpgraph.FrozenCGraph { return g.cgraph }

// Properties returns the genetic code's behavioural/structural properties.
func (g *GeneticCode) Properties() Properties { return g.properties }

// GCA returns the signature of the first sub-genetic-code, if any.
func (g *GeneticCode) GCA() *Signature { return g.gca }

// GCB returns the signature of the second sub-genetic-code, if any.
func (g *GeneticCode) GCB() *Signature { return g.gcb }

// PGC returns the signature of the parent genetic code that produced this
// one through evolution, if any.
func (g *GeneticCode) PGC() *Signature { return g.pgc }

// CodeDepth returns the genetic code's depth (1 for a codon).
func (g *GeneticCode) CodeDepth() int32 { return g.codeDepth }

// Generation returns the number of evolutionary generations behind this code.
func (g *GeneticCode) Generation() int64 { return g.generation }

// Created returns the genetic code's creation timestamp, always UTC.
func (g *GeneticCode) Created() time.Time { return g.created }

// Updated returns the timestamp of the genetic code's last modification,
// always UTC and >= Created (spec §3.3).
func (g *GeneticCode) Updated() time.Time { return g.updated }

// Creator returns the UUID of the agent that created this genetic code.
func (g *GeneticCode) Creator() uuid.UUID { return g.creator }

// IsCodon reports whether this genetic code is an atomic codon.
func (g *GeneticCode) IsCodon() bool { return g.properties.GCType == Codon }

// Verify re-checks a subset of the invariants New enforced at construction
// time (properties and graph kind, code_depth 1 without GCA,
// lost_descendants <= reference_count, updated bounds), plus the
// signature's length and the graph's structural Verify (spec §3.3, §8).
// Safe to call repeatedly; exists
// primarily so a caller loading a GeneticCode from storage can re-validate
// without reconstructing it.
func (g *GeneticCode) Verify() error {
	if err := g.properties.Valid(); err != nil {
		return err
	}
	if g.properties.GraphType != g.cgraph.Kind() {
		return fmt.Errorf("egpgc: properties graph type %s does not match cgraph kind %s: %w",
			g.properties.GraphType, g.cgraph.Kind(), egperr.ErrInvariantViolation)
	}
	if len(g.signature) != 32 {
		return fmt.Errorf("egpgc: signature must be 32 bytes: %w", egperr.ErrInvariantViolation)
	}
	if g.codeDepth == 1 && g.gca != nil {
		return fmt.Errorf("egpgc: code_depth 1 must have no GCA: %w", egperr.ErrInvariantViolation)
	}
	if g.lostDescendants > g.referenceCount {
		return fmt.Errorf("egpgc: lost_descendants must be <= reference_count: %w", egperr.ErrInvariantViolation)
	}
	if g.updated.Before(g.created) {
		return fmt.Errorf("egpgc: updated must be >= created: %w", egperr.ErrInvariantViolation)
	}
	if g.updated.Before(EGPEpoch) {
		return fmt.Errorf("egpgc: updated must be >= %s: %w", EGPEpoch, egperr.ErrOutOfBounds)
	}
	return egpgraph.Verify(g.cgraph)
}

// wireGC is the wire representation of a GeneticCode (spec §6.5).
type wireGC struct {
	Signature       string            `json:"signature"`
	CGraph          egpgraph.JSONCGraph `json:"cgraph"`
	GCType          GCType            `json:"gc_type"`
	GraphType       string            `json:"graph_type"`
	Constant        bool              `json:"constant"`
	Deterministic   bool              `json:"deterministic"`
	SideEffects     bool              `json:"side_effects"`
	StaticCreation  bool              `json:"static_creation"`
	AncestorA       string            `json:"ancestor_a"`
	AncestorB       string            `json:"ancestor_b"`
	GCA             string            `json:"gca,omitempty"`
	GCB             string            `json:"gcb,omitempty"`
	PGC             string            `json:"pgc,omitempty"`
	Imports         []egptype.ImportDef `json:"imports,omitempty"`
	Inline          string            `json:"inline,omitempty"`
	Code            string            `json:"code,omitempty"`
	Created         time.Time         `json:"created"`
	Updated         time.Time         `json:"updated"`
	Creator         string            `json:"creator"`
	CodeDepth       int32             `json:"code_depth"`
	Generation      int64             `json:"generation"`
	NumCodes        int32             `json:"num_codes"`
	NumCodons       int32             `json:"num_codons"`
	Descendants     int32             `json:"descendants"`
	LostDescendants int64             `json:"lost_descendants"`
	ReferenceCount  int64             `json:"reference_count"`
}

// ToJSON renders the genetic code to its wire format (spec §6.5).
func (g *GeneticCode) ToJSON(namer egpgraph.TypeNamer) ([]byte, error) {
	cgraphJSON, err := egpgraph.ToJSON(g.cgraph, namer)
	if err != nil {
		return nil, err
	}
	w := wireGC{
		Signature:       fmt.Sprintf("%x", g.signature[:]),
		CGraph:          cgraphJSON,
		GCType:          g.properties.GCType,
		GraphType:       g.properties.GraphType.String(),
		Constant:        g.properties.Constant,
		Deterministic:   g.properties.Deterministic,
		SideEffects:     g.properties.SideEffects,
		StaticCreation:  g.properties.StaticCreation,
		AncestorA:       fmt.Sprintf("%x", g.ancestorA[:]),
		AncestorB:       fmt.Sprintf("%x", g.ancestorB[:]),
		Imports:         g.imports,
		Inline:          g.inline,
		Code:            g.code,
		Created:         g.created,
		Updated:         g.updated,
		Creator:         g.creator.String(),
		CodeDepth:       g.codeDepth,
		Generation:      g.generation,
		NumCodes:        g.numCodes,
		NumCodons:       g.numCodons,
		Descendants:     g.descendants,
		LostDescendants: g.lostDescendants,
		ReferenceCount:  g.referenceCount,
	}
	if g.gca != nil {
		w.GCA = fmt.Sprintf("%x", g.gca[:])
	}
	if g.gcb != nil {
		w.GCB = fmt.Sprintf("%x", g.gcb[:])
	}
	if g.pgc != nil {
		w.PGC = fmt.Sprintf("%x", g.pgc[:])
	}
	return json.Marshal(w)
}
