package chatgraph_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/chatgraph"
)

func node(role chatgraph.Role, text string, to ...int) chatgraph.Node {
	if to == nil {
		to = []int{}
	}
	return chatgraph.Node{Role: role, Positive: text, To: to}
}

func sys(text string, to ...int) chatgraph.Node  { return node(chatgraph.RoleSystem, text, to...) }
func usr(text string, to ...int) chatgraph.Node  { return node(chatgraph.RoleUser, text, to...) }
func asst(text string, to ...int) chatgraph.Node { return node(chatgraph.RoleAssistant, text, to...) }

func turn(role chatgraph.Role, text string) chatgraph.Turn {
	return chatgraph.Turn{Role: role, Text: text}
}

func TestExpandSingleExchange(t *testing.T) {
	item := chatgraph.Item{Name: "greet", Nodes: []chatgraph.Node{
		sys("help", 1),
		usr("hi", 2),
		asst("hello"),
	}}

	got, err := chatgraph.Expand(item)
	require.NoError(t, err)

	want := []chatgraph.Interaction{{
		System: "help",
		Turns: []chatgraph.Turn{
			turn(chatgraph.RoleUser, "hi"),
			turn(chatgraph.RoleAssistant, "hello"),
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Expand mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandLinearEmitsEveryAssistantTurn(t *testing.T) {
	item := chatgraph.Item{Name: "chain", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("u1", 2),
		asst("a1", 3),
		usr("u2", 4),
		asst("a2"),
	}}

	got, err := chatgraph.Expand(item)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []chatgraph.Turn{
		turn(chatgraph.RoleUser, "u1"),
		turn(chatgraph.RoleAssistant, "a1"),
	}, got[0].Turns)
	assert.Equal(t, []chatgraph.Turn{
		turn(chatgraph.RoleUser, "u1"),
		turn(chatgraph.RoleAssistant, "a1"),
		turn(chatgraph.RoleUser, "u2"),
		turn(chatgraph.RoleAssistant, "a2"),
	}, got[1].Turns)
}

func TestExpandLeavesOnlyLinearEmitsOnce(t *testing.T) {
	item := chatgraph.Item{Name: "chain", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("u1", 2),
		asst("a1", 3),
		usr("u2", 4),
		asst("a2"),
	}}

	got, err := chatgraph.ExpandWith(item, chatgraph.EmitLeaves)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []chatgraph.Turn{
		turn(chatgraph.RoleUser, "u1"),
		turn(chatgraph.RoleAssistant, "a1"),
		turn(chatgraph.RoleUser, "u2"),
		turn(chatgraph.RoleAssistant, "a2"),
	}, got[0].Turns)

	n, err := chatgraph.Count(item, chatgraph.EmitEveryAssistant)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExpandSingleExchangeEmitsOnceUnderBothPolicies(t *testing.T) {
	item := chatgraph.Item{Name: "one", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("q", 2),
		asst("a"),
	}}

	for _, p := range []chatgraph.Emission{chatgraph.EmitEveryAssistant, chatgraph.EmitLeaves} {
		n, err := chatgraph.Count(item, p)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
}

func TestExpandBranchingUserNode(t *testing.T) {
	item := chatgraph.Item{Name: "fork", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("q", 2, 3),
		asst("left"),
		asst("right"),
	}}

	got, err := chatgraph.Expand(item)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, in := range got {
		assert.Equal(t, "s", in.System)
		require.Len(t, in.Turns, 2)
		assert.Equal(t, turn(chatgraph.RoleUser, "q"), in.Turns[0])
	}
	assert.Equal(t, "left", got[0].Turns[1].Text)
	assert.Equal(t, "right", got[1].Turns[1].Text)
}

func TestExpandSiblingBranchesDoNotShareHistory(t *testing.T) {
	// Assistant 2 fans out to two user turns; the deeper conversations must
	// each see only their own branch.
	item := chatgraph.Item{Name: "fan", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("q", 2),
		asst("a", 3, 5),
		usr("left q", 4),
		asst("left a"),
		usr("right q", 6),
		asst("right a"),
	}}

	got, err := chatgraph.Expand(item)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []chatgraph.Turn{
		turn(chatgraph.RoleUser, "q"),
		turn(chatgraph.RoleAssistant, "a"),
	}, got[0].Turns)
	assert.Equal(t, []chatgraph.Turn{
		turn(chatgraph.RoleUser, "q"),
		turn(chatgraph.RoleAssistant, "a"),
		turn(chatgraph.RoleUser, "left q"),
		turn(chatgraph.RoleAssistant, "left a"),
	}, got[1].Turns)
	assert.Equal(t, []chatgraph.Turn{
		turn(chatgraph.RoleUser, "q"),
		turn(chatgraph.RoleAssistant, "a"),
		turn(chatgraph.RoleUser, "right q"),
		turn(chatgraph.RoleAssistant, "right a"),
	}, got[2].Turns)
}

func TestExpandSharedSuccessor(t *testing.T) {
	// Two user phrasings converge on the same answer.
	item := chatgraph.Item{Name: "merge", Nodes: []chatgraph.Node{
		sys("s", 1, 2),
		usr("hey", 3),
		usr("hello", 3),
		asst("hi there"),
	}}

	got, err := chatgraph.Expand(item)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hey", got[0].Turns[0].Text)
	assert.Equal(t, "hello", got[1].Turns[0].Text)
	assert.Equal(t, "hi there", got[1].Turns[1].Text)
}

func TestExpandToolNodePassesThrough(t *testing.T) {
	item := chatgraph.Item{Name: "tool", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("q", 2),
		asst("calling", 3),
		node(chatgraph.RoleTool, "result", 4),
		usr("thanks", 5),
		asst("welcome"),
	}}

	got, err := chatgraph.Expand(item)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got[1].Turns, 4)
	for _, tr := range got[1].Turns {
		assert.NotEqual(t, chatgraph.RoleTool, tr.Role)
	}
}

func TestExpandNegativeIsIgnored(t *testing.T) {
	item := chatgraph.Item{Name: "neg", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("q", 2),
		{Role: chatgraph.RoleAssistant, Positive: "good", Negative: "bad"},
	}}

	got, err := chatgraph.Expand(item)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].Turns[1].Text)
}

func TestExpandStructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []chatgraph.Node
		want   error
		index  int
		target int
		edge   bool
	}{
		{
			name:  "empty item",
			nodes: nil,
			want:  chatgraph.ErrEmptyItem,
			index: 0,
		},
		{
			name:  "root is not system",
			nodes: []chatgraph.Node{usr("q", 1), asst("a")},
			want:  chatgraph.ErrMissingSystemRoot,
			index: 0,
		},
		{
			name:  "user without continuation",
			nodes: []chatgraph.Node{sys("s", 1), usr("q")},
			want:  chatgraph.ErrEmptyContinuation,
			index: 1,
		},
		{
			name:   "edge equal to node count",
			nodes:  []chatgraph.Node{sys("s", 1), usr("q", 2)},
			want:   chatgraph.ErrIndexOutOfRange,
			index:  1,
			target: 2,
			edge:   true,
		},
		{
			name:   "negative edge",
			nodes:  []chatgraph.Node{sys("s", -1)},
			want:   chatgraph.ErrIndexOutOfRange,
			index:  0,
			target: -1,
			edge:   true,
		},
		{
			name:   "assistant edge out of range",
			nodes:  []chatgraph.Node{sys("s", 1), usr("q", 2), asst("a", 7)},
			want:   chatgraph.ErrIndexOutOfRange,
			index:  2,
			target: 7,
			edge:   true,
		},
		{
			name:   "user followed by user",
			nodes:  []chatgraph.Node{sys("s", 1), usr("q", 2), usr("q2", 3), asst("a")},
			want:   chatgraph.ErrRoleOrderViolation,
			index:  1,
			target: 2,
			edge:   true,
		},
		{
			name:  "system reached through an edge",
			nodes: []chatgraph.Node{sys("s", 1), sys("again")},
			want:  chatgraph.ErrRoleOrderViolation,
			index: 1,
		},
		{
			name:  "cycle",
			nodes: []chatgraph.Node{sys("s", 1), usr("q", 2), asst("a", 1)},
			want:  chatgraph.ErrCycleDetected,
			index: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chatgraph.Expand(chatgraph.Item{Name: "bad", Nodes: tt.nodes})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, chatgraph.IsStructural(err))

			var ge *chatgraph.GraphError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, "bad", ge.Item)
			assert.Equal(t, tt.index, ge.Index)
			assert.Equal(t, tt.edge, ge.HasTarget)
			if tt.edge {
				assert.Equal(t, tt.target, ge.Target)
				assert.Contains(t, ge.Error(), fmt.Sprintf("-> %d", tt.target))
			}

			assert.ErrorIs(t, chatgraph.Validate(chatgraph.Item{Name: "bad", Nodes: tt.nodes}), tt.want)
		})
	}
}

func TestExpandIgnoresUnreachableCycle(t *testing.T) {
	// Nodes 3 and 4 point at each other but nothing reaches them from the root.
	item := chatgraph.Item{Name: "draft", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("q", 2),
		asst("a"),
		usr("orphan", 4),
		asst("loop", 3),
	}}

	got, err := chatgraph.Expand(item)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Turns[1].Text)
	require.NoError(t, chatgraph.Validate(item))
}

func TestExpandEmptyContinuationNeverTruncates(t *testing.T) {
	// The earlier assistant turn is valid on its own, but the dangling user
	// turn after it fails the whole item.
	item := chatgraph.Item{Name: "dangling", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("q", 2),
		asst("a", 3),
		usr("nowhere"),
	}}

	got, err := chatgraph.Expand(item)
	assert.ErrorIs(t, err, chatgraph.ErrEmptyContinuation)
	assert.Nil(t, got)
}

func TestExpandRootWithoutEdges(t *testing.T) {
	got, err := chatgraph.Expand(chatgraph.Item{Name: "root", Nodes: []chatgraph.Node{sys("only")}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpandConcurrent(t *testing.T) {
	item := chatgraph.Item{Name: "fork", Nodes: []chatgraph.Node{
		sys("s", 1),
		usr("q", 2, 3),
		asst("a", 4),
		asst("b"),
		usr("q2", 5),
		asst("c"),
	}}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := chatgraph.Expand(item)
			assert.NoError(t, err)
			assert.Len(t, got, 3)
		}()
	}
	wg.Wait()
}

func TestRoleUnmarshalRejectsUnknown(t *testing.T) {
	var r chatgraph.Role
	require.NoError(t, r.UnmarshalText([]byte("assistant")))
	assert.Equal(t, chatgraph.RoleAssistant, r)

	err := r.UnmarshalText([]byte("narrator"))
	assert.ErrorIs(t, err, chatgraph.ErrUnknownRole)
}
