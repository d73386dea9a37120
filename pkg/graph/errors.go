package graph

import "github.com/pkg/errors"

// Construction errors.
var (
	ErrSelfLoop        = errors.New("graph: edge from a vertex to itself")
	ErrPayloadTooLarge = errors.New("graph: payload exceeds 30 bits")
	ErrFixedArity      = errors.New("graph: wrong number of fixed edge fields")
	ErrMetaArity       = errors.New("graph: wrong number of meta fields")
	ErrInvalidSize     = errors.New("graph: size must be positive")
)

// Format errors.
var (
	ErrUnknownVersion = errors.New("graph: unknown serialization version, re-export the graph with a compatible version")
	ErrCorrupt        = errors.New("graph: corrupt serialized graph")
)

// Invariant violations and unsupported operations.
var (
	ErrReadOnly     = errors.New("graph: graph is read-only")
	ErrOutOfRange   = errors.New("graph: id out of range")
	ErrNotSupported = errors.New("graph: updating packed edge data in place is not supported")
)
