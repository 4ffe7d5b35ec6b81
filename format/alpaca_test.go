package format

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/chatgraph"
)

func linear(name, system string, texts ...string) chatgraph.Item {
	ch := newChain(system)
	for i, t := range texts {
		role := chatgraph.RoleUser
		if i%2 == 1 {
			role = chatgraph.RoleAssistant
		}
		ch.push(role, t)
	}
	it := ch.item()
	it.Name = name
	return it
}

func roles(it chatgraph.Item) []chatgraph.Role {
	out := make([]chatgraph.Role, len(it.Nodes))
	for i, n := range it.Nodes {
		out[i] = n.Role
	}
	return out
}

func texts(it chatgraph.Item) []string {
	out := make([]string, len(it.Nodes))
	for i, n := range it.Nodes {
		out[i] = n.Positive
	}
	return out
}

func TestAlpacaDecodeBuildsLinearChain(t *testing.T) {
	raw := `[{
		"instruction": "and now?",
		"output": "done",
		"system": "be brief",
		"history": [["first", "ok"], {"human_instruction": "second", "assistant_response": "sure"}]
	}]`

	items, err := Alpaca{}.Decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, items, 1)
	it := items[0]

	assert.Equal(t, []chatgraph.Role{
		chatgraph.RoleSystem,
		chatgraph.RoleUser, chatgraph.RoleAssistant,
		chatgraph.RoleUser, chatgraph.RoleAssistant,
		chatgraph.RoleUser, chatgraph.RoleAssistant,
	}, roles(it))
	assert.Equal(t, []string{"be brief", "first", "ok", "second", "sure", "and now?", "done"}, texts(it))

	for i, n := range it.Nodes {
		assert.Equal(t, float64(i*nodeSpacing), n.Position.X, "node %d x", i)
		assert.Equal(t, chatgraph.Size{Width: nodeWidth, Height: nodeHeight}, n.Size)
		if i < len(it.Nodes)-1 {
			assert.Equal(t, []int{i + 1}, n.To)
		} else {
			assert.Empty(t, n.To)
		}
	}
	require.NoError(t, chatgraph.Validate(it))
}

func TestAlpacaDecodeDefaults(t *testing.T) {
	items, err := Alpaca{}.Decode([]byte(`{"instruction": "q", "input": "details", "output": "a", "system": null, "history": null}`))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, []string{"", "q\ndetails", "a"}, texts(items[0]))
}

func TestAlpacaDecodeHistoryShapesAgree(t *testing.T) {
	pairs, err := Alpaca{}.Decode([]byte(`{"instruction":"q","output":"a","history":[["h","r"]]}`))
	require.NoError(t, err)
	objects, err := Alpaca{}.Decode([]byte(`{"instruction":"q","output":"a","history":[{"human_instruction":"h","assistant_response":"r"}]}`))
	require.NoError(t, err)
	legacy, err := Alpaca{}.Decode([]byte(`{"instruction":"q","output":"a","history":[{"human_instruction":"h","model_response":"r"}]}`))
	require.NoError(t, err)

	if diff := cmp.Diff(pairs, objects); diff != "" {
		t.Fatalf("pair vs object history (-pair +object):\n%s", diff)
	}
	if diff := cmp.Diff(pairs, legacy); diff != "" {
		t.Fatalf("pair vs legacy history (-pair +legacy):\n%s", diff)
	}
}

func TestAlpacaDecodeJSONLines(t *testing.T) {
	raw := "{\"instruction\":\"a\",\"output\":\"b\"}\n{\"instruction\":\"c\",\"output\":\"d\"}\n"
	items, err := Alpaca{}.Decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[1].Nodes[1].Positive)
}

func TestAlpacaDecodeReportsEveryProblem(t *testing.T) {
	raw := `[
		{"output": "x"},
		{"instruction": 1, "output": "y", "history": [["only one"], {"human_instruction": "h"}]},
		"not an object",
		{"instruction": "fine", "output": "fine"}
	]`

	_, err := Alpaca{}.Decode([]byte(raw))
	require.ErrorIs(t, err, ErrSchemaValidation)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{
		"Field '0.instruction': field required",
		"Field '1.instruction': input should be a valid string",
		"Field '1.history.0': history entry must have exactly 2 elements",
		"Field '1.history.1.assistant_response': field required",
		"Field '2': input should be a valid object",
	}, se.Details())
}

func TestAlpacaDecodeUnrecognized(t *testing.T) {
	_, err := Alpaca{}.Decode([]byte("instruction: hi"))
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestAlpacaEncodeSingleExchange(t *testing.T) {
	item := chatgraph.Item{Name: "greet", Nodes: []chatgraph.Node{
		{Role: chatgraph.RoleSystem, Positive: "help", To: []int{1}},
		{Role: chatgraph.RoleUser, Positive: "hi", To: []int{2}},
		{Role: chatgraph.RoleAssistant, Positive: "hello"},
	}}

	out, err := Alpaca{}.Encode([]chatgraph.Item{item}, EncodeOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"instruction":"hi","input":"","output":"hello","system":"help","history":[]}]`, string(out))
	assert.True(t, strings.HasPrefix(string(out), "[\n  {"), "expected indented output, got %s", out)
}

func TestAlpacaEncodeHistory(t *testing.T) {
	item := linear("chain", "s", "u1", "a1", "u2", "a2")

	out, err := Alpaca{}.Encode([]chatgraph.Item{item}, EncodeOptions{})
	require.NoError(t, err)

	var got []AlpacaRecord
	require.NoError(t, json.Unmarshal(out, &got))
	want := []AlpacaRecord{
		{Instruction: "u1", Output: "a1", System: "s", History: [][2]string{}},
		{Instruction: "u2", Output: "a2", System: "s", History: [][2]string{{"u1", "a1"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	out, err = Alpaca{}.Encode([]chatgraph.Item{item}, EncodeOptions{LeavesOnly: true})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].Output)
}

func TestAlpacaEncodeLinesAndEscaping(t *testing.T) {
	items := []chatgraph.Item{
		linear("a", "", "<b>bold</b>", "& more"),
		linear("b", "", "q", "a"),
	}

	out, err := Alpaca{}.Encode(items, EncodeOptions{Lines: true})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "<b>bold</b>")
	assert.Contains(t, lines[0], "& more")
	assert.JSONEq(t, `{"instruction":"q","input":"","output":"a","system":"","history":[]}`, lines[1])
}

func TestAlpacaEncodeFailsWholeExport(t *testing.T) {
	items := []chatgraph.Item{
		linear("good", "s", "q", "a"),
		{Name: "broken", Nodes: []chatgraph.Node{
			{Role: chatgraph.RoleSystem, To: []int{1}},
			{Role: chatgraph.RoleUser, Positive: "dangling"},
		}},
		{Name: "also broken", Nodes: []chatgraph.Node{
			{Role: chatgraph.RoleSystem, To: []int{5}},
		}},
	}

	out, err := Alpaca{}.Encode(items, EncodeOptions{})
	assert.Nil(t, out)
	require.ErrorIs(t, err, chatgraph.ErrEmptyContinuation)

	var ge *chatgraph.GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "broken", ge.Item)
}

func TestAlpacaEncodeEmptyDataset(t *testing.T) {
	out, err := Alpaca{}.Encode(nil, EncodeOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))
}

func TestAlpacaRoundTrip(t *testing.T) {
	item := linear("chain", "sys", "u1", "a1", "u2", "a2", "u3", "a3")

	out, err := Alpaca{}.Encode([]chatgraph.Item{item}, EncodeOptions{LeavesOnly: true})
	require.NoError(t, err)

	back, err := Alpaca{}.Decode(out)
	require.NoError(t, err)
	require.Len(t, back, 1)

	assert.Equal(t, roles(item), roles(back[0]))
	assert.Equal(t, texts(item), texts(back[0]))
}
