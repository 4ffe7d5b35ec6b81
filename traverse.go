package chatgraph

// Emission selects which assistant nodes produce an Interaction.
type Emission int

const (
	// EmitEveryAssistant emits at every reachable assistant node, including
	// ones that continue further. Every assistant turn is a training sample.
	EmitEveryAssistant Emission = iota
	// EmitLeaves emits only at assistant nodes without outgoing edges, so a
	// linear item yields exactly one Interaction.
	EmitLeaves
)

// Expand returns every linear conversation encoded by item, in depth-first
// order. Each reachable assistant node yields one Interaction ending with its
// text, whether or not it has further continuations, so a branching item
// produces conversations of different lengths, some of them prefixes of
// others.
//
// Any structural problem aborts the whole item and is returned as a
// *GraphError.
func Expand(item Item) ([]Interaction, error) {
	return ExpandWith(item, EmitEveryAssistant)
}

// ExpandWith is Expand with an explicit emission policy.
func ExpandWith(item Item, policy Emission) ([]Interaction, error) {
	var out []Interaction
	err := walk(item, policy, func(in Interaction) {
		out = append(out, in)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Validate runs the same checks as Expand without collecting results.
func Validate(item Item) error {
	return walk(item, EmitEveryAssistant, func(Interaction) {})
}

// Count returns how many conversations item expands to under policy.
func Count(item Item, policy Emission) (int, error) {
	n := 0
	err := walk(item, policy, func(Interaction) { n++ })
	return n, err
}

type walker struct {
	name   string
	nodes  []Node
	policy Emission
	emit   func(Interaction)
}

func walk(item Item, policy Emission, emit func(Interaction)) error {
	nodes := item.Nodes
	if len(nodes) == 0 {
		return &GraphError{Item: item.Name, Index: 0, Err: ErrEmptyItem}
	}
	if nodes[0].Role != RoleSystem {
		return &GraphError{Item: item.Name, Index: 0, Err: ErrMissingSystemRoot}
	}
	if at, ok := findCycle(nodes); ok {
		return &GraphError{Item: item.Name, Index: at, Err: ErrCycleDetected}
	}

	w := &walker{name: item.Name, nodes: nodes, policy: policy, emit: emit}
	root := Interaction{System: nodes[0].Positive}
	for _, j := range nodes[0].To {
		if err := w.bounds(0, j); err != nil {
			return err
		}
		if err := w.visit(j, root); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) visit(at int, ctx Interaction) error {
	n := w.nodes[at]
	switch n.Role {
	case RoleUser:
		if len(n.To) == 0 {
			return w.fail(at, ErrEmptyContinuation)
		}
		next := ctx.with(RoleUser, n.Positive)
		for _, j := range n.To {
			if err := w.bounds(at, j); err != nil {
				return err
			}
			if w.nodes[j].Role != RoleAssistant {
				return w.failEdge(at, j, ErrRoleOrderViolation)
			}
			if err := w.visit(j, next); err != nil {
				return err
			}
		}
	case RoleAssistant:
		next := ctx.with(RoleAssistant, n.Positive)
		if w.policy == EmitEveryAssistant || len(n.To) == 0 {
			w.emit(next)
		}
		for _, j := range n.To {
			if err := w.bounds(at, j); err != nil {
				return err
			}
			if err := w.visit(j, next); err != nil {
				return err
			}
		}
	case RoleTool:
		// Tool turns have no flat representation yet; the path continues
		// through them with the context untouched.
		for _, j := range n.To {
			if err := w.bounds(at, j); err != nil {
				return err
			}
			if err := w.visit(j, ctx); err != nil {
				return err
			}
		}
	case RoleSystem:
		return w.fail(at, ErrRoleOrderViolation)
	default:
		return w.fail(at, ErrUnknownRole)
	}
	return nil
}

func (w *walker) bounds(from, to int) error {
	if to < 0 || to >= len(w.nodes) {
		return w.failEdge(from, to, ErrIndexOutOfRange)
	}
	return nil
}

func (w *walker) fail(at int, err error) error {
	return &GraphError{Item: w.name, Index: at, Err: err}
}

func (w *walker) failEdge(at, target int, err error) error {
	return &GraphError{Item: w.name, Index: at, Target: target, HasTarget: true, Err: err}
}

// with returns a copy of in extended by one turn. The capped slice forces
// append to allocate, so the receiver's backing array is never written and
// sibling branches cannot observe each other.
func (in Interaction) with(role Role, text string) Interaction {
	turns := in.Turns[:len(in.Turns):len(in.Turns)]
	return Interaction{
		System: in.System,
		Turns:  append(turns, Turn{Role: role, Text: text}),
	}
}

// findCycle reports the node at which a DFS from the root first re-enters a
// node still on the stack. Nodes the root cannot reach are never expanded, so
// a cycle among them is not an error. Edges out of range are ignored here;
// the walk reports them with better context.
func findCycle(nodes []Node) (int, bool) {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make([]uint8, len(nodes))
	at := -1

	var dfs func(i int) bool
	dfs = func(i int) bool {
		state[i] = visiting
		for _, next := range nodes[i].To {
			if next < 0 || next >= len(nodes) {
				continue
			}
			switch state[next] {
			case visiting:
				at = i
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[i] = visited
		return false
	}

	if dfs(0) {
		return at, true
	}
	return -1, false
}
