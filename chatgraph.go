// Package chatgraph models branching dialogue datasets as node graphs and
// expands them into the linear conversations they encode.
package chatgraph

import (
	"encoding/json"
	"fmt"
)

// Role is the speaker of a single turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// UnmarshalText rejects roles outside the closed set.
func (r *Role) UnmarshalText(b []byte) error {
	v := Role(b)
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, string(b))
	}
	*r = v
	return nil
}

// Position and Size are presentation metadata. They carry no meaning for
// traversal and are passed through unchanged.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is one turn in a dialogue graph.
// To holds the outgoing edges as indices into the owning Item's Nodes.
type Node struct {
	Role     Role     `json:"role"`
	Position Position `json:"nodePosition"`
	Size     Size     `json:"nodeSize"`
	Positive string   `json:"positive"`
	Negative string   `json:"negative"`
	To       []int    `json:"to"`
}

// MarshalJSON always writes "to" as an array so clients never see null.
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	p := plain(n)
	if p.To == nil {
		p.To = []int{}
	}
	return json.Marshal(p)
}

// Item is one branching conversation. Nodes[0] is the root and must be a
// system node whenever the item is non-empty.
type Item struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodeItems"`
}

// Dataset is a named, ordered collection of items.
type Dataset struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
	Items     []Item `json:"items"`
}

// Find returns the index of the item called name, or -1.
func (d *Dataset) Find(name string) int {
	for i := range d.Items {
		if d.Items[i].Name == name {
			return i
		}
	}
	return -1
}

// ItemNames lists item names in dataset order.
func (d *Dataset) ItemNames() []string {
	names := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		names = append(names, it.Name)
	}
	return names
}

// Turn is one entry of a flattened conversation.
type Turn struct {
	Role Role
	Text string
}

// Interaction is a single linear conversation taken from one path through an
// item. Turns alternate user and assistant and always end with the assistant
// turn that produced it.
type Interaction struct {
	System string
	Turns  []Turn
}
