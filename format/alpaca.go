package format

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/meikuraledutech/chatgraph"
)

// AlpacaRecord is one Alpaca training sample. History holds the
// [instruction, response] pairs that precede the final exchange.
type AlpacaRecord struct {
	Instruction string      `json:"instruction"`
	Input       string      `json:"input"`
	Output      string      `json:"output"`
	System      string      `json:"system"`
	History     [][2]string `json:"history"`
}

// Alpaca reads and writes Alpaca-style instruction records.
type Alpaca struct{}

func (Alpaca) Name() string        { return "alpaca" }
func (Alpaca) DisplayName() string { return "Alpaca" }
func (Alpaca) Description() string {
	return "Alpaca instruction records with system prompt and history, as a json or jsonl file."
}

// ToAlpaca projects an interaction onto the Alpaca shape. Turns are paired
// user-then-assistant; the final pair becomes instruction and output.
func ToAlpaca(in chatgraph.Interaction) AlpacaRecord {
	var (
		pairs   [][2]string
		pending string
	)
	for _, t := range in.Turns {
		switch t.Role {
		case chatgraph.RoleUser:
			pending = t.Text
		case chatgraph.RoleAssistant:
			pairs = append(pairs, [2]string{pending, t.Text})
			pending = ""
		}
	}

	rec := AlpacaRecord{System: in.System, History: [][2]string{}}
	if len(pairs) == 0 {
		return rec
	}
	last := pairs[len(pairs)-1]
	rec.Instruction = last[0]
	rec.Output = last[1]
	rec.History = append(rec.History, pairs[:len(pairs)-1]...)
	return rec
}

func (a Alpaca) Encode(items []chatgraph.Item, opts EncodeOptions) ([]byte, error) {
	interactions, err := expandAll(items, opts.emission())
	if err != nil {
		return nil, err
	}
	records := make([]AlpacaRecord, len(interactions))
	for i, in := range interactions {
		records[i] = ToAlpaca(in)
	}
	return writeRecords(records, opts)
}

func (a Alpaca) Decode(raw []byte) ([]chatgraph.Item, error) {
	records, err := ParseRecords(raw)
	if err != nil {
		return nil, err
	}

	var c checker
	items := make([]chatgraph.Item, 0, len(records))
	for i, r := range records {
		if it, ok := decodeAlpaca(&c, r, strconv.Itoa(i)); ok {
			items = append(items, it)
		}
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeAlpaca(c *checker, raw json.RawMessage, path string) (chatgraph.Item, bool) {
	obj, ok := c.object(raw, path)
	if !ok {
		return chatgraph.Item{}, false
	}

	instruction, ok1 := c.str(obj, "instruction", path, true)
	input, ok2 := c.str(obj, "input", path, false)
	output, ok3 := c.str(obj, "output", path, true)
	system, ok4 := c.str(obj, "system", path, false)
	history, ok5 := decodeHistory(c, obj["history"], join(path, "history"))
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return chatgraph.Item{}, false
	}

	ch := newChain(system)
	for _, h := range history {
		ch.push(chatgraph.RoleUser, h[0])
		ch.push(chatgraph.RoleAssistant, h[1])
	}
	if input != "" {
		instruction += "\n" + input
	}
	ch.push(chatgraph.RoleUser, instruction)
	ch.push(chatgraph.RoleAssistant, output)
	return ch.item(), true
}

// decodeHistory accepts a missing or null history, or a list whose entries
// are either [instruction, response] pairs or objects with named fields.
func decodeHistory(c *checker, raw json.RawMessage, path string) ([][2]string, bool) {
	if isNull(raw) {
		return nil, true
	}
	entries, ok := c.list(raw, path)
	if !ok {
		return nil, false
	}

	out := make([][2]string, 0, len(entries))
	valid := true
	for i, e := range entries {
		p := index(path, i)
		pair, ok := decodeRound(c, e, p)
		if !ok {
			valid = false
			continue
		}
		out = append(out, pair)
	}
	return out, valid
}

func decodeRound(c *checker, raw json.RawMessage, path string) ([2]string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		arr, ok := c.list(raw, path)
		if !ok {
			return [2]string{}, false
		}
		if len(arr) != 2 {
			c.add(path, "history entry must have exactly 2 elements")
			return [2]string{}, false
		}
		human, ok1 := c.value(arr[0], index(path, 0))
		assistant, ok2 := c.value(arr[1], index(path, 1))
		return [2]string{human, assistant}, ok1 && ok2
	}

	obj, ok := c.object(raw, path)
	if !ok {
		return [2]string{}, false
	}
	human, ok1 := c.str(obj, "human_instruction", path, true)
	key := "assistant_response"
	if _, has := obj[key]; !has {
		if _, legacy := obj["model_response"]; legacy {
			key = "model_response"
		}
	}
	assistant, ok2 := c.str(obj, key, path, true)
	return [2]string{human, assistant}, ok1 && ok2
}
