// Package egperr defines the sentinel error taxonomy shared by every EGP
// core package. Callers use errors.Is/errors.As against these sentinels;
// packages wrap them with fmt.Errorf("...: %w", ...) for context.
package egperr

import "errors"

var (
	// ErrInvalidSignature indicates a cryptographic signature check failed.
	ErrInvalidSignature = errors.New("egp: invalid signature")

	// ErrHashMismatch indicates a file body differs from its recorded hash.
	ErrHashMismatch = errors.New("egp: file hash mismatch")

	// ErrNotFound indicates a lookup by key (type, interface, file) failed.
	ErrNotFound = errors.New("egp: not found")

	// ErrBadAlgorithm indicates an unsupported or unrecognised signing algorithm.
	ErrBadAlgorithm = errors.New("egp: unsupported algorithm")

	// ErrMissingField indicates signature sidecar metadata is incomplete.
	ErrMissingField = errors.New("egp: missing field")

	// ErrInvariantViolation indicates an internal structural assertion failed
	// (bidirectional refs, frozen mutation, deduplicator given an unfrozen
	// freezable value). These are caller bugs, not recoverable data errors.
	ErrInvariantViolation = errors.New("egp: invariant violation")

	// ErrGraphShape indicates classifier preconditions were unmet (e.g. a
	// graph kind requiring row O or A lacks it).
	ErrGraphShape = errors.New("egp: invalid graph shape")

	// ErrTypeInconsistency indicates conflicting types were assigned to the
	// same (src_row, src_idx) pair while building a connection graph from JSON.
	ErrTypeInconsistency = errors.New("egp: type inconsistency")

	// ErrIndexOutOfRange indicates an interface index or byte-range value is
	// out of bounds.
	ErrIndexOutOfRange = errors.New("egp: index out of range")

	// ErrOutOfBounds indicates a UID or other ranged value exceeded its
	// documented bounds.
	ErrOutOfBounds = errors.New("egp: out of bounds")

	// ErrUIDExhausted indicates no further XUIDs remain in a template-type
	// half-space.
	ErrUIDExhausted = errors.New("egp: uid space exhausted")

	// ErrTooLarge indicates a file exceeded the configured maximum size.
	ErrTooLarge = errors.New("egp: file too large")

	// ErrFrozenGraph indicates a mutation was attempted on a frozen
	// connection graph or other frozen value.
	ErrFrozenGraph = errors.New("egp: graph is frozen")
)
