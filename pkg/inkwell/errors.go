package inkwell

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNodeNotFound indicates no node revision matched the requested
	// identity and revision selector. It maps to a not-found outcome,
	// never a server fault.
	ErrNodeNotFound = errors.New("node does not exist")

	// ErrPersistence indicates an attempt to persist a revision with no
	// addressable content. It signals a programming or integration
	// fault and must never be coerced into a not-found response.
	ErrPersistence = errors.New("cannot persist revision without content")
)

// NodeError wraps a failure of a node operation with the node address
// and operation name.
type NodeError struct {
	URI string
	Op  string
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node operation %s failed for %s: %v", e.Op, e.URI, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
