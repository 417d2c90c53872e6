package egpdedup

// Freezable is the "freezable" protocol described in spec §9: a mutable
// builder-style value that transitions one-way into an immutable state.
// Rather than modelling freezing as an in-place flag, callers should prefer
// two distinct types (a builder and its frozen product) wherever practical;
// Freezable exists so generic infrastructure (Deduplicator) can still accept
// either shape and reject a value that claims to be freezable but isn't
// frozen yet, surfacing the caller bug described in §4.1.
type Freezable interface {
	// Frozen reports whether the value is in its immutable state.
	Frozen() bool
}

// IsFrozen reports whether v satisfies Freezable and, if so, whether it is
// frozen. Values that don't implement Freezable are treated as always
// frozen (plain immutable values like strings, ints, or value structs never
// need the check).
func IsFrozen(v any) bool {
	f, ok := v.(Freezable)
	if !ok {
		return true
	}
	return f.Frozen()
}
