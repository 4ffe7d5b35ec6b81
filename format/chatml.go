package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/meikuraledutech/chatgraph"
)

// ChatMLMessage is one message of a ChatML conversation.
type ChatMLMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMLRecord is the exported form of one conversation.
type ChatMLRecord struct {
	Conversation []ChatMLMessage `json:"conversation"`
}

// ChatML reads and writes role/content message lists.
type ChatML struct{}

func (ChatML) Name() string        { return "chatml" }
func (ChatML) DisplayName() string { return "ChatML" }
func (ChatML) Description() string {
	return "ChatML conversations (role/content message lists), as a json or jsonl file."
}

// ToChatML converts an interaction into a message list led by the system
// prompt.
func ToChatML(in chatgraph.Interaction) ChatMLRecord {
	msgs := make([]ChatMLMessage, 0, len(in.Turns)+1)
	msgs = append(msgs, ChatMLMessage{Role: string(chatgraph.RoleSystem), Content: in.System})
	for _, t := range in.Turns {
		msgs = append(msgs, ChatMLMessage{Role: string(t.Role), Content: t.Text})
	}
	return ChatMLRecord{Conversation: msgs}
}

func (m ChatML) Encode(items []chatgraph.Item, opts EncodeOptions) ([]byte, error) {
	interactions, err := expandAll(items, opts.emission())
	if err != nil {
		return nil, err
	}
	records := make([]ChatMLRecord, len(interactions))
	for i, in := range interactions {
		records[i] = ToChatML(in)
	}
	return writeRecords(records, opts)
}

// Decode accepts records that are either a bare message array or an object
// holding the array under "conversation" (or "messages").
func (m ChatML) Decode(raw []byte) ([]chatgraph.Item, error) {
	records, err := ParseRecords(raw)
	if err != nil {
		return nil, err
	}

	var c checker
	items := make([]chatgraph.Item, 0, len(records))
	for i, r := range records {
		if it, ok := decodeChatML(&c, r, strconv.Itoa(i)); ok {
			items = append(items, it)
		}
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeChatML(c *checker, raw json.RawMessage, path string) (chatgraph.Item, bool) {
	msgsRaw, msgsPath, ok := conversationOf(c, raw, path)
	if !ok {
		return chatgraph.Item{}, false
	}
	entries, ok := c.list(msgsRaw, msgsPath)
	if !ok {
		return chatgraph.Item{}, false
	}

	msgs := make([]ChatMLMessage, 0, len(entries))
	valid := true
	for i, e := range entries {
		p := index(msgsPath, i)
		obj, ok := c.object(e, p)
		if !ok {
			valid = false
			continue
		}
		role, ok1 := c.str(obj, "role", p, true)
		content, ok2 := c.str(obj, "content", p, true)
		if !ok1 || !ok2 {
			valid = false
			continue
		}
		switch chatgraph.Role(role) {
		case chatgraph.RoleSystem:
			if i != 0 {
				c.add(join(p, "role"), "system message must be the first message in the conversation")
				valid = false
				continue
			}
		case chatgraph.RoleUser, chatgraph.RoleAssistant:
		default:
			c.add(join(p, "role"), "input should be 'system', 'user' or 'assistant'")
			valid = false
			continue
		}
		msgs = append(msgs, ChatMLMessage{Role: role, Content: content})
	}
	if !valid {
		return chatgraph.Item{}, false
	}

	system := ""
	if len(msgs) > 0 && msgs[0].Role == string(chatgraph.RoleSystem) {
		system = msgs[0].Content
		msgs = msgs[1:]
	}
	if !alternates(c, msgs, msgsPath, len(entries)-len(msgs)) {
		return chatgraph.Item{}, false
	}

	ch := newChain(system)
	for _, msg := range msgs {
		ch.push(chatgraph.Role(msg.Role), msg.Content)
	}
	return ch.item(), true
}

// conversationOf locates the message array of a record.
func conversationOf(c *checker, raw json.RawMessage, path string) (json.RawMessage, string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return raw, path, true
	}
	obj, ok := c.object(raw, path)
	if !ok {
		return nil, "", false
	}
	for _, key := range []string{"conversation", "messages"} {
		if v, has := obj[key]; has {
			return v, join(path, key), true
		}
	}
	c.add(join(path, "conversation"), msgRequired)
	return nil, "", false
}

// alternates checks that msgs run user, assistant, user, ... and end with an
// assistant message. offset maps msgs back to positions in the source list.
func alternates(c *checker, msgs []ChatMLMessage, path string, offset int) bool {
	if len(msgs) == 0 {
		c.add(path, "conversation must contain at least one user and assistant exchange")
		return false
	}
	ok := true
	for i, msg := range msgs {
		want := chatgraph.RoleUser
		if i%2 == 1 {
			want = chatgraph.RoleAssistant
		}
		if chatgraph.Role(msg.Role) != want {
			c.add(join(index(path, i+offset), "role"), fmt.Sprintf("expected %s message", want))
			ok = false
		}
	}
	if ok && chatgraph.Role(msgs[len(msgs)-1].Role) != chatgraph.RoleAssistant {
		c.add(path, "conversation must end with an assistant message")
		ok = false
	}
	return ok
}
