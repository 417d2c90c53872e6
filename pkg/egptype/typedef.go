package egptype

import (
	"fmt"
	"unicode"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
)

// ImportDef describes one import needed to instantiate a TypeDef's default
// expression (spec §3.1): a module path, a symbol name, and an optional
// alias.
type ImportDef struct {
	Module string
	Symbol string
	Alias  string // empty when unaliased
}

// DedupeImports removes duplicate ImportDefs, preserving first-seen order
// (spec §3.1: "imports: ordered list of ImportDef ... deduplicated").
func DedupeImports(imports []ImportDef) []ImportDef {
	seen := make(map[ImportDef]bool, len(imports))
	out := make([]ImportDef, 0, len(imports))
	for _, imp := range imports {
		if seen[imp] {
			continue
		}
		seen[imp] = true
		out = append(out, imp)
	}
	return out
}

// TypeDef is an immutable, named type in the EGP type hierarchy (spec §3.1).
// Values are constructed via NewTypeDef and never mutate afterward;
// TypeDef implements egpdedup.Freezable by always reporting true, since a
// TypeDef is immutable from the moment it is constructed (its builder step
// lives in NewTypeDef's validation, not as a separate mutable phase).
type TypeDef struct {
	name     string
	uid      int32
	depth    int32
	abstract bool
	def      string // optional default expression; "" means absent
	hasDef   bool
	imports  []ImportDef
	parents  []int32
	children []int32
}

// Frozen satisfies egpdedup.Freezable: a constructed TypeDef is always frozen.
func (t *TypeDef) Frozen() bool { return t != nil }

// NewTypeDef validates and constructs a TypeDef. parents/children are type
// UIDs (not TypeDef pointers), per spec §3.1 (names are resolved at registry
// load time; TypeDef itself only ever stores UIDs so instances can be cached
// and reused independently of each other, per original_source's types_def.py).
func NewTypeDef(name string, uid int32, depth int32, abstract bool, def string, hasDef bool, imports []ImportDef, parents, children []int32) (*TypeDef, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if depth < 0 {
		return nil, fmt.Errorf("egptype: depth must be >= 0, got %d: %w", depth, egperr.ErrOutOfBounds)
	}
	if hasDef {
		if err := validateDefault(def); err != nil {
			return nil, err
		}
	}

	td := &TypeDef{
		name:     name,
		uid:      uid,
		depth:    depth,
		abstract: abstract,
		def:      def,
		hasDef:   hasDef,
		imports:  append([]ImportDef(nil), DedupeImports(imports)...),
		parents:  append([]int32(nil), parents...),
		children: append([]int32(nil), children...),
	}
	return td, nil
}

func validateName(name string) error {
	if len(name) < 1 || len(name) > 64 {
		return fmt.Errorf("egptype: name length must be 1-64, got %d: %w", len(name), egperr.ErrOutOfBounds)
	}
	return validatePrintable("name", name)
}

func validateDefault(def string) error {
	if len(def) < 1 || len(def) > 64 {
		return fmt.Errorf("egptype: default length must be 1-64, got %d: %w", len(def), egperr.ErrOutOfBounds)
	}
	return validatePrintable("default", def)
}

func validatePrintable(field, s string) error {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("egptype: %s must be printable, found %q: %w", field, r, egperr.ErrOutOfBounds)
		}
	}
	return nil
}

// Name returns the type's unique printable name.
func (t *TypeDef) Name() string { return t.name }

// UID returns the type's packed 32-bit identifier. Equality of TypeDefs is
// equality of UID (spec §3.1).
func (t *TypeDef) UID() int32 { return t.uid }

// Depth returns the type's depth in the inheritance DAG ("object" = 0).
func (t *TypeDef) Depth() int32 { return t.depth }

// Abstract reports whether the type is abstract.
func (t *TypeDef) Abstract() bool { return t.abstract }

// Default returns the optional default-instantiation expression and whether
// it is present.
func (t *TypeDef) Default() (string, bool) { return t.def, t.hasDef }

// Imports returns the type's deduplicated import list.
func (t *TypeDef) Imports() []ImportDef { return append([]ImportDef(nil), t.imports...) }

// Parents returns the UIDs of the type's direct parents (multiple
// inheritance permitted; empty only for root types).
func (t *TypeDef) Parents() []int32 { return append([]int32(nil), t.parents...) }

// Children returns the UIDs of the type's direct descendants (the reverse
// index of Parents, constructed at registry load time).
func (t *TypeDef) Children() []int32 { return append([]int32(nil), t.children...) }

// Equal reports whether t and other have the same UID (spec §3.1: "equality
// of TypeDefs is equality of UID").
func (t *TypeDef) Equal(other *TypeDef) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.uid == other.uid
}

func (t *TypeDef) String() string { return t.name }
