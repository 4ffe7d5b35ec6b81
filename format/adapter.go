// Package format converts dialogue items to and from flat training-record
// files. Each supported format is an Adapter; both share the traversal in
// the chatgraph package for export and build linear chains on import.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meikuraledutech/chatgraph"
)

// EncodeOptions controls the shape of an exported file.
type EncodeOptions struct {
	// Lines writes one record per line instead of an indented JSON array.
	Lines bool
	// LeavesOnly emits a record only for assistant turns that end a path.
	LeavesOnly bool
}

func (o EncodeOptions) emission() chatgraph.Emission {
	if o.LeavesOnly {
		return chatgraph.EmitLeaves
	}
	return chatgraph.EmitEveryAssistant
}

// Extension is the file extension matching the options.
func (o EncodeOptions) Extension() string {
	if o.Lines {
		return ".jsonl"
	}
	return ".json"
}

// Adapter converts between dialogue items and one flat record format.
type Adapter interface {
	// Name is the short identifier, also used as the import name prefix.
	Name() string
	DisplayName() string
	Description() string

	// Encode expands every item and serializes the resulting records.
	// A structural error in any item fails the whole call.
	Encode(items []chatgraph.Item, opts EncodeOptions) ([]byte, error)

	// Decode parses a JSON or JSON Lines document into unnamed linear items.
	Decode(raw []byte) ([]chatgraph.Item, error)
}

// Layout of imported chains.
const (
	nodeSpacing = 350
	nodeWidth   = 256
	nodeHeight  = 64
)

// chain builds a linear item one turn at a time, each node pointing at the
// next one.
type chain struct {
	nodes []chatgraph.Node
}

func newChain(system string) *chain {
	c := &chain{}
	c.push(chatgraph.RoleSystem, system)
	return c
}

func (c *chain) push(role chatgraph.Role, text string) {
	k := len(c.nodes)
	if k > 0 {
		c.nodes[k-1].To = []int{k}
	}
	c.nodes = append(c.nodes, chatgraph.Node{
		Role:     role,
		Position: chatgraph.Position{X: float64(k * nodeSpacing), Y: 0},
		Size:     chatgraph.Size{Width: nodeWidth, Height: nodeHeight},
		Positive: text,
		Negative: "",
		To:       []int{},
	})
}

func (c *chain) item() chatgraph.Item {
	return chatgraph.Item{Nodes: c.nodes}
}

// expandAll expands items concurrently and returns the interactions in item
// order. When several items are broken the one with the lowest index is
// reported.
func expandAll(items []chatgraph.Item, policy chatgraph.Emission) ([]chatgraph.Interaction, error) {
	results := make([][]chatgraph.Interaction, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range items {
		g.Go(func() error {
			results[i], errs[i] = chatgraph.ExpandWith(items[i], policy)
			return nil
		})
	}
	_ = g.Wait()

	var out []chatgraph.Interaction
	for i := range items {
		if errs[i] != nil {
			return nil, errs[i]
		}
		out = append(out, results[i]...)
	}
	return out, nil
}

// writeRecords serializes records as an indented array or as JSON Lines.
// HTML characters are left unescaped.
func writeRecords[T any](records []T, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if opts.Lines {
		for i, r := range records {
			if err := enc.Encode(r); err != nil {
				return nil, fmt.Errorf("format: encode record %d: %w", i, err)
			}
		}
		return buf.Bytes(), nil
	}

	if records == nil {
		records = []T{}
	}
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("format: encode records: %w", err)
	}
	return buf.Bytes(), nil
}
