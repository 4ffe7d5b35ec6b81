package chatgraph

import (
	"errors"
	"fmt"
)

// Structural errors raised while expanding an item.
var (
	ErrEmptyItem          = errors.New("chatgraph: item has no nodes")
	ErrMissingSystemRoot  = errors.New("chatgraph: first node must be a system node")
	ErrEmptyContinuation  = errors.New("chatgraph: user node has no outgoing edges")
	ErrIndexOutOfRange    = errors.New("chatgraph: edge points past the end of the node list")
	ErrRoleOrderViolation = errors.New("chatgraph: role order violation")
	ErrCycleDetected      = errors.New("chatgraph: cycle detected, graph is not acyclic")
	ErrUnknownRole        = errors.New("chatgraph: unknown role")
)

// GraphError pins a structural error to the item and node that caused it.
// HasTarget is set when the error concerns the edge from Index to Target
// rather than the node itself. Target may then be any int, including a
// negative one.
type GraphError struct {
	Item      string
	Index     int
	Target    int
	HasTarget bool
	Err       error
}

func (e *GraphError) Error() string {
	if e.HasTarget {
		return fmt.Sprintf("item %q: node %d -> %d: %v", e.Item, e.Index, e.Target, e.Err)
	}
	return fmt.Sprintf("item %q: node %d: %v", e.Item, e.Index, e.Err)
}

func (e *GraphError) Unwrap() error { return e.Err }

// IsStructural reports whether err was raised by graph validation rather than
// by storage or transport.
func IsStructural(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge)
}
