// Package storetest is a conformance suite shared by every chatgraph.Store
// implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/chatgraph"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) chatgraph.Store) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("DuplicateDataset", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("Missing", func(t *testing.T) { testMissing(t, newStore(t)) })
	t.Run("AppendAndReplace", func(t *testing.T) { testAppendAndReplace(t, newStore(t)) })
	t.Run("ListAndDelete", func(t *testing.T) { testListAndDelete(t, newStore(t)) })
}

// Item returns a small valid item for fixtures.
func Item(name string) chatgraph.Item {
	return chatgraph.Item{Name: name, Nodes: []chatgraph.Node{
		{Role: chatgraph.RoleSystem, Positive: "s", To: []int{1}, Size: chatgraph.Size{Width: 256, Height: 64}},
		{Role: chatgraph.RoleUser, Positive: "q", To: []int{2}, Position: chatgraph.Position{X: 350}},
		{Role: chatgraph.RoleAssistant, Positive: "a", Negative: "rejected", To: []int{}, Position: chatgraph.Position{X: 700, Y: 12.5}},
	}}
}

func testCreateAndGet(t *testing.T, s chatgraph.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateDataset(ctx, &chatgraph.Dataset{
		Name:      "ds",
		Timestamp: 42,
		Items:     []chatgraph.Item{Item("one")},
	}))

	got, err := s.GetDataset(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, "ds", got.Name)
	assert.Equal(t, int64(42), got.Timestamp)
	require.Len(t, got.Items, 1)
	assert.Equal(t, Item("one"), got.Items[0])
}

func testDuplicate(t *testing.T, s chatgraph.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateDataset(ctx, &chatgraph.Dataset{Name: "ds"}))
	err := s.CreateDataset(ctx, &chatgraph.Dataset{Name: "ds"})
	assert.ErrorIs(t, err, chatgraph.ErrDatasetExists)
}

func testMissing(t *testing.T, s chatgraph.Store) {
	ctx := context.Background()
	_, err := s.GetDataset(ctx, "nope")
	assert.ErrorIs(t, err, chatgraph.ErrNotFound)
	assert.ErrorIs(t, s.AppendItems(ctx, "nope", []chatgraph.Item{Item("x")}), chatgraph.ErrNotFound)
	assert.ErrorIs(t, s.ReplaceItems(ctx, "nope", 1, nil), chatgraph.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDataset(ctx, "nope"), chatgraph.ErrNotFound)
}

func testAppendAndReplace(t *testing.T, s chatgraph.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateDataset(ctx, &chatgraph.Dataset{Name: "ds", Timestamp: 1}))

	require.NoError(t, s.AppendItems(ctx, "ds", []chatgraph.Item{Item("a"), Item("b")}))
	require.NoError(t, s.AppendItems(ctx, "ds", []chatgraph.Item{Item("c")}))

	got, err := s.GetDataset(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got.ItemNames())
	assert.Equal(t, int64(1), got.Timestamp)

	require.NoError(t, s.ReplaceItems(ctx, "ds", 7, []chatgraph.Item{Item("z")}))
	got, err = s.GetDataset(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, got.ItemNames())
	assert.Equal(t, int64(7), got.Timestamp)

	require.NoError(t, s.ReplaceItems(ctx, "ds", 8, nil))
	got, err = s.GetDataset(ctx, "ds")
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func testListAndDelete(t *testing.T, s chatgraph.Store) {
	ctx := context.Background()
	for _, n := range []string{"b", "a", "c"} {
		require.NoError(t, s.CreateDataset(ctx, &chatgraph.Dataset{Name: n}))
	}

	names, err := s.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	require.NoError(t, s.DeleteDataset(ctx, "b"))
	names, err = s.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names)
}
